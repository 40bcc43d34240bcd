// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

import (
	"math/bits"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
)

// MasterState is the system-wide aggregate derived from the channels.
type MasterState uint16

const (
	MasterIdle MasterState = iota
	MasterCoordinatedStart
	MasterRunning
	MasterEmergencyStop
)

func (m MasterState) String() string {
	switch m {
	case MasterIdle:
		return "IDLE"
	case MasterCoordinatedStart:
		return "COORD_START"
	case MasterRunning:
		return "RUNNING"
	case MasterEmergencyStop:
		return "E-STOP"
	}
	return "UNKNOWN"
}

// Fault codes latched into the system fault register.
const (
	faultNone         uint16 = 0x0000
	faultStartTimeout uint16 = 0x0001
	faultOverloadBase uint16 = 0x0010 // +channel index
	faultHardwareBase uint16 = 0x0020 // +channel index
	faultCommTimeout  uint16 = 0x0040
)

// allChannelsMask covers every valid channel bit.
const allChannelsMask = 1<<regmap.ChannelCount - 1

// Status is a value-copy snapshot of the coordinator's aggregate view.
type Status struct {
	Master      MasterState
	ActiveMask  uint16
	Channels    [regmap.ChannelCount]State
	FaultCodes  [regmap.ChannelCount]uint16
	FaultCode   uint16
	Transitions uint64
}

// ActiveCount returns the population count of the active mask.
func (s Status) ActiveCount() uint16 {
	return uint16(bits.OnesCount16(s.ActiveMask))
}

// Coordinator owns the four channel state machines and the system-wide
// aggregate. All methods run on the cooperative tick goroutine.
type Coordinator struct {
	channels    [regmap.ChannelCount]*Channel
	master      MasterState
	activeMask  uint16
	faultCode   uint16
	transitions uint64
}

// NewCoordinator creates a coordinator with all channels Stopped. The
// channels slice configures per-channel start inhibits; nil entries get a
// plain uninhibited channel.
func NewCoordinator(channels [regmap.ChannelCount]*Channel) *Coordinator {
	c := &Coordinator{channels: channels}
	for i, ch := range c.channels {
		if ch == nil {
			c.channels[i] = NewChannel(false, 0)
		}
	}
	return c
}

// Channel exposes one channel for confirmation and fault injection.
func (c *Coordinator) Channel(i int) *Channel {
	return c.channels[i]
}

// RequestCoordinatedStart arms Starting for every channel bit set in
// mask. Rejected when the mask is empty, names a channel that does not
// exist, or an emergency stop is active. Channels latched in a fault
// state are skipped; the rest proceed.
func (c *Coordinator) RequestCoordinatedStart(mask uint16) bool {
	if mask == 0 || mask&^uint16(allChannelsMask) != 0 {
		return false
	}
	if c.master == MasterEmergencyStop {
		return false
	}
	for i, ch := range c.channels {
		if mask&(1<<i) != 0 && ch.RequestStart() {
			c.transitions++
		}
	}
	c.master = MasterCoordinatedStart
	c.recomputeMask()
	return true
}

// RequestCoordinatedStop arms Stopping for the intersection of mask and
// the currently active mask. Inactive channels are silently ignored.
func (c *Coordinator) RequestCoordinatedStop(mask uint16) bool {
	for i, ch := range c.channels {
		if mask&c.activeMask&(1<<i) != 0 {
			ch.RequestStop()
			c.transitions++
		}
	}
	c.recomputeMask()
	return true
}

// RequestUnitStart starts a single channel, with the same rejection
// rules as a coordinated start.
func (c *Coordinator) RequestUnitStart(index int) bool {
	if index < 0 || index >= regmap.ChannelCount {
		return false
	}
	if c.master == MasterEmergencyStop {
		return false
	}
	ok := c.channels[index].RequestStart()
	if ok {
		c.transitions++
		c.recomputeMask()
	}
	return ok
}

// RequestUnitStop stops a single channel. Stops are accepted even during
// an emergency stop (a safe no-op).
func (c *Coordinator) RequestUnitStop(index int) bool {
	if index < 0 || index >= regmap.ChannelCount {
		return false
	}
	c.channels[index].RequestStop()
	c.transitions++
	c.recomputeMask()
	return true
}

// ReportUnitFault forces a channel into Overload or Faulted and removes
// it from the active set. Sibling channels are untouched.
func (c *Coordinator) ReportUnitFault(index int, isOverload bool) {
	if index < 0 || index >= regmap.ChannelCount {
		return
	}
	code := faultHardwareBase + uint16(index)
	if isOverload {
		code = faultOverloadBase + uint16(index)
	}
	c.channels[index].ReportFault(isOverload, code)
	c.faultCode = code
	c.transitions++
	c.recomputeMask()
}

// ResetUnitFault clears a latched channel fault on explicit operator
// request.
func (c *Coordinator) ResetUnitFault(index int) bool {
	if index < 0 || index >= regmap.ChannelCount {
		return false
	}
	c.channels[index].ResetFault()
	c.recomputeMask()
	return true
}

// EmergencyStop unconditionally forces every channel toward Stopped and
// latches the emergency state. While latched, all start requests are
// rejected; stop requests remain accepted. The latch overrides channel
// fault states: everything winds down.
func (c *Coordinator) EmergencyStop() {
	c.master = MasterEmergencyStop
	for _, ch := range c.channels {
		ch.ForceStop()
	}
	c.transitions++
	c.recomputeMask()
}

// EmergencyStopped reports whether the emergency latch is set.
func (c *Coordinator) EmergencyStopped() bool {
	return c.master == MasterEmergencyStop
}

// ClearEmergencyStop releases the emergency latch on explicit request.
// The aggregate state is re-derived on the next update.
func (c *Coordinator) ClearEmergencyStop() {
	if c.master == MasterEmergencyStop {
		c.master = MasterIdle
		c.faultCode = faultNone
		c.transitions++
	}
}

// SetFaultCode latches a system-level fault code (communication loss).
func (c *Coordinator) SetFaultCode(code uint16) {
	c.faultCode = code
}

// Update advances every channel by one tick, recomputes the active mask,
// and re-derives the master state: emergency stop dominates, else
// coordinated start while any channel is Starting, else Running while
// any channel is Running, else Idle.
func (c *Coordinator) Update() {
	for _, ch := range c.channels {
		before := ch.State()
		ch.Tick()
		if ch.State() != before {
			c.transitions++
		}
	}
	c.recomputeMask()

	if c.master == MasterEmergencyStop {
		return
	}
	var anyStarting, anyRunning bool
	for _, ch := range c.channels {
		switch ch.State() {
		case StateStarting:
			anyStarting = true
		case StateRunning:
			anyRunning = true
		}
	}
	switch {
	case anyStarting:
		c.master = MasterCoordinatedStart
	case anyRunning:
		c.master = MasterRunning
	default:
		c.master = MasterIdle
	}
}

// Status returns a value-copy snapshot; callers never see internal
// references.
func (c *Coordinator) Status() Status {
	st := Status{
		Master:      c.master,
		ActiveMask:  c.activeMask,
		FaultCode:   c.faultCode,
		Transitions: c.transitions,
	}
	for i, ch := range c.channels {
		st.Channels[i] = ch.State()
		st.FaultCodes[i] = ch.FaultCode()
	}
	return st
}

func (c *Coordinator) recomputeMask() {
	var mask uint16
	for i, ch := range c.channels {
		if ch.State().Active() {
			mask |= 1 << i
		}
	}
	c.activeMask = mask
}
