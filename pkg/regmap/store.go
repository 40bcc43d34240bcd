// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package regmap

import "errors"

// Protocol-visible access errors. The dispatcher maps these onto Modbus
// exception codes; they never escape the protocol layer.
var (
	ErrIllegalAddress = errors.New("regmap: illegal register address")
	ErrIllegalValue   = errors.New("regmap: illegal register value")
)

// addressSpaceSize covers every defined block with room to spare; addresses
// are validated through ClassOf before the table is ever indexed.
const addressSpaceSize = ChannelBlockBase + ChannelCount*ChannelBlockStride

// WriteEvent records one accepted control-register write. Events are
// drained by the control loop once per tick; the write itself never
// synchronously changes channel state.
type WriteEvent struct {
	Addr    uint16
	Value   uint16
	Channel int    // -1 for global-block writes
	Offset  uint16 // offset within the owning block
}

// Store is the flat register table: the single source of truth for all
// externally visible state and externally writable control inputs. It is
// touched only from the cooperative tick goroutine, so it carries no lock.
type Store struct {
	regs    [addressSpaceSize]uint16
	pending []WriteEvent
}

// NewStore returns a zeroed register table with amplitude setpoints at
// their lower bound.
func NewStore() *Store {
	s := &Store{}
	for ch := 0; ch < ChannelCount; ch++ {
		s.regs[ChannelAddr(ch, OffAmplitudeSetpoint)] = AmplitudeMin
	}
	return s
}

// Read returns the value of a single mapped register.
func (s *Store) Read(addr uint16) (uint16, error) {
	if ClassOf(addr) == ClassUnmapped {
		return 0, ErrIllegalAddress
	}
	return s.regs[addr], nil
}

// ReadRange returns qty consecutive registers starting at addr. The whole
// range must be mapped; reads never mutate state.
func (s *Store) ReadRange(addr uint16, qty uint16) ([]uint16, error) {
	if qty == 0 || int(addr)+int(qty) > addressSpaceSize {
		return nil, ErrIllegalAddress
	}
	for a := addr; a < addr+qty; a++ {
		if ClassOf(a) == ClassUnmapped {
			return nil, ErrIllegalAddress
		}
	}
	out := make([]uint16, qty)
	copy(out, s.regs[addr:addr+qty])
	return out, nil
}

// Write applies one protocol write under the register's class policy:
// boolean registers reject values outside {0,1}, amplitude setpoints clamp
// into [AmplitudeMin, AmplitudeMax], status registers reject the write as
// an illegal address, and diagnostic registers discard it silently.
func (s *Store) Write(addr uint16, value uint16) error {
	if err := s.checkWrite(addr, value); err != nil {
		return err
	}
	s.apply(addr, value)
	return nil
}

// WriteRange applies a multi-register write. Validation runs over the full
// range before any register changes, so a rejected write mutates nothing.
func (s *Store) WriteRange(addr uint16, values []uint16) error {
	if len(values) == 0 || int(addr)+len(values) > addressSpaceSize {
		return ErrIllegalAddress
	}
	for i, v := range values {
		if err := s.checkWrite(addr+uint16(i), v); err != nil {
			return err
		}
	}
	for i, v := range values {
		s.apply(addr+uint16(i), v)
	}
	return nil
}

func (s *Store) checkWrite(addr uint16, value uint16) error {
	switch ClassOf(addr) {
	case ClassUnmapped, ClassStatus:
		return ErrIllegalAddress
	case ClassBool:
		if value > 1 {
			return ErrIllegalValue
		}
	case ClassAmplitude, ClassControl, ClassDiag:
		// full range, clamped, or discarded
	}
	return nil
}

func (s *Store) apply(addr uint16, value uint16) {
	switch ClassOf(addr) {
	case ClassDiag:
		return
	case ClassAmplitude:
		if value < AmplitudeMin {
			value = AmplitudeMin
		} else if value > AmplitudeMax {
			value = AmplitudeMax
		}
	}
	s.regs[addr] = value
	s.pending = append(s.pending, WriteEvent{
		Addr:    addr,
		Value:   value,
		Channel: ChannelOf(addr),
		Offset:  s.blockOffset(addr),
	})
}

func (s *Store) blockOffset(addr uint16) uint16 {
	if ch := ChannelOf(addr); ch >= 0 {
		return (addr - ChannelBlockBase) % ChannelBlockStride
	}
	return addr
}

// TakeWrites drains the control writes accepted since the previous call.
// Called exactly once per tick by the control loop.
func (s *Store) TakeWrites() []WriteEvent {
	ev := s.pending
	s.pending = nil
	return ev
}

// Set updates a register from the owner side, bypassing protocol write
// policy. Used by the control loop to reflect status back into the table.
func (s *Store) Set(addr uint16, value uint16) {
	if ClassOf(addr) == ClassUnmapped {
		panic("regmap: Set on unmapped address")
	}
	s.regs[addr] = value
}

// Get reads a register from the owner side without protocol validation.
func (s *Store) Get(addr uint16) uint16 {
	return s.regs[addr]
}
