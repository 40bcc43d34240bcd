// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package regmap

// StatusFlags is the named form of a channel's status bitfield. Control
// logic works with the booleans; the 16-bit packing happens only at the
// register boundary.
type StatusFlags struct {
	Running        bool
	Overload       bool
	FreqLock       bool
	AmplitudeFault bool
	CommFault      bool
}

const (
	flagRunning        = 1 << 0
	flagOverload       = 1 << 1
	flagFreqLock       = 1 << 2
	flagAmplitudeFault = 1 << 3
	flagCommFault      = 1 << 4
)

// Pack serializes the flag set into its register representation.
func (f StatusFlags) Pack() uint16 {
	var v uint16
	if f.Running {
		v |= flagRunning
	}
	if f.Overload {
		v |= flagOverload
	}
	if f.FreqLock {
		v |= flagFreqLock
	}
	if f.AmplitudeFault {
		v |= flagAmplitudeFault
	}
	if f.CommFault {
		v |= flagCommFault
	}
	return v
}

// UnpackFlags is the inverse of Pack.
func UnpackFlags(v uint16) StatusFlags {
	return StatusFlags{
		Running:        v&flagRunning != 0,
		Overload:       v&flagOverload != 0,
		FreqLock:       v&flagFreqLock != 0,
		AmplitudeFault: v&flagAmplitudeFault != 0,
		CommFault:      v&flagCommFault != 0,
	}
}
