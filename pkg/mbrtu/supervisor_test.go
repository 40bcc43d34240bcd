// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import (
	"testing"
	"time"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
)

const testSlaveID = 2

func newTestSupervisor() (*Supervisor, *regmap.Store) {
	store := regmap.NewStore()
	return NewSupervisor(testSlaveID, store, time.Hour), store
}

// buildRequest assembles a checksum-valid fixed-size request frame.
func buildRequest(slave, function byte, addr, value uint16) []byte {
	return AppendChecksum([]byte{slave, function,
		byte(addr >> 8), byte(addr & 0xFF),
		byte(value >> 8), byte(value & 0xFF)})
}

// buildMultiWrite assembles a checksum-valid write-multiple request.
func buildMultiWrite(slave byte, addr uint16, values []uint16) []byte {
	frame := []byte{slave, FuncWriteMultiple,
		byte(addr >> 8), byte(addr & 0xFF),
		byte(len(values) >> 8), byte(len(values) & 0xFF),
		byte(2 * len(values))}
	for _, v := range values {
		frame = append(frame, byte(v>>8), byte(v&0xFF))
	}
	return AppendChecksum(frame)
}

func poll(t *testing.T, s *Supervisor, frame []byte) []byte {
	t.Helper()
	s.Feed(frame)
	return s.Poll(time.Now())
}

func TestWriteSingleThenReadBack(t *testing.T) {
	s, _ := newTestSupervisor()
	addr := regmap.ChannelAddr(0, regmap.OffStartStop)

	resp := poll(t, s, buildRequest(testSlaveID, FuncWriteSingle, addr, 1))
	if resp == nil {
		t.Fatal("no response to valid write")
	}
	if resp[1] != FuncWriteSingle {
		t.Fatalf("expected echo response, got function 0x%02X", resp[1])
	}

	resp = poll(t, s, buildRequest(testSlaveID, FuncReadHolding, addr, 1))
	if resp == nil {
		t.Fatal("no response to valid read")
	}
	// [id, fc, count, hi, lo, crc, crc]
	if resp[2] != 2 {
		t.Fatalf("expected 2 data bytes, got %d", resp[2])
	}
	if got := word(resp[3], resp[4]); got != 1 {
		t.Errorf("read back %d, expected 1", got)
	}
	if !checkTrailer(resp) {
		t.Error("response carries an invalid checksum")
	}
}

func TestAmplitudeClampVisibleOnWire(t *testing.T) {
	s, _ := newTestSupervisor()
	addr := regmap.ChannelAddr(1, regmap.OffAmplitudeSetpoint)

	if resp := poll(t, s, buildRequest(testSlaveID, FuncWriteSingle, addr, 150)); resp == nil {
		t.Fatal("clamped amplitude write must still be answered")
	}
	resp := poll(t, s, buildRequest(testSlaveID, FuncReadHolding, addr, 1))
	if got := word(resp[3], resp[4]); got != regmap.AmplitudeMax {
		t.Errorf("amplitude round-tripped to %d, expected clamp to %d", got, regmap.AmplitudeMax)
	}
}

func TestCorruptedCRCDroppedSilently(t *testing.T) {
	s, _ := newTestSupervisor()
	frame := buildRequest(testSlaveID, FuncReadHolding, 0x0000, 1)
	frame[len(frame)-1] ^= 0x01

	if resp := poll(t, s, frame); resp != nil {
		t.Fatalf("corrupted frame must not be answered, got % X", resp)
	}
	if got := s.Stats().CRCErrors; got != 1 {
		t.Errorf("CRC error counter = %d, expected exactly 1", got)
	}
	if got := s.Stats().ResponsesSent; got != 0 {
		t.Errorf("responses sent = %d, expected 0", got)
	}
}

func TestExceptionResponses(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		expected byte
	}{
		{
			name:     "unsupported function",
			frame:    buildRequest(testSlaveID, 0x05, 0x0000, 0xFF00),
			expected: ExcIllegalFunction,
		},
		{
			name:     "unmapped address",
			frame:    buildRequest(testSlaveID, FuncReadHolding, 0x0500, 1),
			expected: ExcIllegalAddress,
		},
		{
			name:     "write to read-only status block",
			frame:    buildRequest(testSlaveID, FuncWriteSingle, regmap.AddrActiveMask, 1),
			expected: ExcIllegalAddress,
		},
		{
			name:     "boolean register rejects 2",
			frame:    buildRequest(testSlaveID, FuncWriteSingle, regmap.AddrEmergencyStop, 2),
			expected: ExcIllegalValue,
		},
		{
			name:     "zero quantity read",
			frame:    buildRequest(testSlaveID, FuncReadHolding, 0x0000, 0),
			expected: ExcIllegalValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSupervisor()
			resp := poll(t, s, tt.frame)
			if resp == nil {
				t.Fatal("expected an exception response")
			}
			if resp[1]&0x80 == 0 {
				t.Fatalf("function byte 0x%02X missing exception bit", resp[1])
			}
			if resp[2] != tt.expected {
				t.Errorf("exception code = %d, expected %d", resp[2], tt.expected)
			}
			if !checkTrailer(resp) {
				t.Error("exception response carries an invalid checksum")
			}
		})
	}
}

func TestExceptionsDoNotMutate(t *testing.T) {
	s, store := newTestSupervisor()
	addr := regmap.ChannelAddr(0, regmap.OffStartStop)

	poll(t, s, buildRequest(testSlaveID, FuncWriteSingle, addr, 2)) // illegal value
	if got := store.Get(addr); got != 0 {
		t.Errorf("rejected write mutated register to %d", got)
	}
	if ev := store.TakeWrites(); len(ev) != 0 {
		t.Errorf("rejected write produced %d pending events", len(ev))
	}
}

func TestWriteMultiple(t *testing.T) {
	s, store := newTestSupervisor()
	base := regmap.ChannelAddr(2, regmap.OffStartStop)

	resp := poll(t, s, buildMultiWrite(testSlaveID, base, []uint16{1, 80, 0}))
	if resp == nil {
		t.Fatal("no response to valid multi-write")
	}
	if resp[1] != FuncWriteMultiple {
		t.Fatalf("expected write-multiple echo, got 0x%02X", resp[1])
	}
	if got := store.Get(base); got != 1 {
		t.Errorf("StartStop = %d, expected 1", got)
	}
	if got := store.Get(base + regmap.OffAmplitudeSetpoint); got != 80 {
		t.Errorf("amplitude = %d, expected 80", got)
	}
}

func TestOtherSlaveIgnored(t *testing.T) {
	s, _ := newTestSupervisor()
	if resp := poll(t, s, buildRequest(testSlaveID+1, FuncReadHolding, 0x0000, 1)); resp != nil {
		t.Fatalf("answered a frame for another slave: % X", resp)
	}
	if got := s.Stats().RequestsReceived; got != 0 {
		t.Errorf("foreign frame counted as request (%d)", got)
	}
}

func TestOneFramePerPoll(t *testing.T) {
	s, _ := newTestSupervisor()
	s.Feed(buildRequest(testSlaveID, FuncReadHolding, 0x0000, 1))
	s.Feed(buildRequest(testSlaveID, FuncReadHolding, 0x0001, 1))

	if resp := s.Poll(time.Now()); resp == nil {
		t.Fatal("first poll returned nothing")
	}
	if resp := s.Poll(time.Now()); resp == nil {
		t.Fatal("second frame lost")
	}
	if got := s.Stats().ResponsesSent; got != 2 {
		t.Errorf("responses sent = %d, expected 2", got)
	}
}

func TestAssemblerResyncAfterGarbage(t *testing.T) {
	s, _ := newTestSupervisor()

	// Eight garbage bytes form one complete bad frame (the function byte
	// deliberately avoids the variable-length write-multiple code), then
	// a valid request follows.
	garbage := []byte{0x99, 0x03, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}
	s.Feed(garbage)
	s.Feed(buildRequest(testSlaveID, FuncReadHolding, 0x0000, 1))

	var resp []byte
	for i := 0; i < 4 && resp == nil; i++ {
		resp = s.Poll(time.Now())
	}
	if resp == nil {
		t.Fatal("assembler failed to resynchronize after garbage")
	}
	if s.Stats().CRCErrors == 0 {
		t.Error("garbage frame not counted as CRC error")
	}
}

func TestLinkIdle(t *testing.T) {
	store := regmap.NewStore()
	s := NewSupervisor(testSlaveID, store, 50*time.Millisecond)

	now := time.Now()
	if s.LinkIdle(now) {
		t.Error("link reported idle immediately after construction")
	}
	if !s.LinkIdle(now.Add(time.Second)) {
		t.Error("link not reported idle after timeout elapsed")
	}

	s.Feed(buildRequest(testSlaveID, FuncReadHolding, 0x0000, 1))
	later := now.Add(2 * time.Second)
	if s.Poll(later) == nil {
		t.Fatal("valid frame not answered")
	}
	if s.LinkIdle(later) {
		t.Error("link idle right after a successful exchange")
	}
}
