// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import "testing"

func TestChecksum_Empty(t *testing.T) {
	crc := Checksum([]byte{})
	if crc != crcInitial {
		t.Errorf("CRC of empty data should be initial value, got 0x%04X", crc)
	}
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint16
	}{
		{
			name:     "ASCII '123456789'",
			data:     []byte("123456789"),
			expected: 0x4B37, // Standard CRC-16/MODBUS check value
		},
		{
			name:     "read holding request body",
			data:     []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01},
			expected: 0x0A84, // wire order 84 0A
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crc := Checksum(tt.data)
			if crc != tt.expected {
				t.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", tt.expected, crc)
			}
		})
	}
}

func TestAppendChecksum_LittleEndianTrailer(t *testing.T) {
	frame := AppendChecksum([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01})
	if len(frame) != 8 {
		t.Fatalf("expected 8-byte frame, got %d", len(frame))
	}
	if frame[6] != 0x84 || frame[7] != 0x0A {
		t.Errorf("trailer bytes: expected 84 0A, got %02X %02X", frame[6], frame[7])
	}
	if !checkTrailer(frame) {
		t.Error("checkTrailer rejected a frame built by AppendChecksum")
	}
}

func TestCheckTrailer_RejectsCorruption(t *testing.T) {
	frame := AppendChecksum([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01})
	frame[len(frame)-1] ^= 0xFF
	if checkTrailer(frame) {
		t.Error("checkTrailer accepted a corrupted trailer")
	}
}
