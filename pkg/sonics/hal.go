// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

// UnitIO is the boundary to the physical sensor/actuator front end of
// one-to-four sonicator units. The control core treats these as pure
// side-effecting calls and never owns peripheral state. All methods are
// called only from the tick goroutine.
type UnitIO interface {
	// Inputs
	Overload(channel int) bool
	FrequencyLock(channel int) bool
	Power(channel int) uint16
	Frequency(channel int) uint16

	// Outputs
	SetDrive(channel int, on bool)
	SetAmplitude(channel int, percent uint16)
}

// SimIO is a simulated hardware front end used for bench runs and tests.
// Driven units report plausible power and frequency readings; overloads
// are injected explicitly.
type SimIO struct {
	drive     [4]bool
	amplitude [4]uint16
	overload  [4]bool
	freqBase  uint16
}

// NewSimIO creates a simulator with all units idle.
func NewSimIO() *SimIO {
	return &SimIO{freqBase: 19900}
}

func (s *SimIO) Overload(channel int) bool {
	return s.overload[channel]
}

func (s *SimIO) FrequencyLock(channel int) bool {
	return s.drive[channel]
}

func (s *SimIO) Power(channel int) uint16 {
	if !s.drive[channel] {
		return 0
	}
	// Rough watts scaling from the amplitude setpoint.
	return s.amplitude[channel] * 11
}

func (s *SimIO) Frequency(channel int) uint16 {
	if !s.drive[channel] {
		return 0
	}
	return s.freqBase + uint16(channel)*25
}

func (s *SimIO) SetDrive(channel int, on bool) {
	s.drive[channel] = on
}

func (s *SimIO) SetAmplitude(channel int, percent uint16) {
	s.amplitude[channel] = percent
}

// InjectOverload latches or clears a simulated overload input.
func (s *SimIO) InjectOverload(channel int, on bool) {
	s.overload[channel] = on
}
