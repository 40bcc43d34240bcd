// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

// State is the lifecycle state of a single sonicator channel.
type State uint16

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateOverload
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateOverload:
		return "OVERLOAD"
	case StateFaulted:
		return "FAULTED"
	}
	return "UNKNOWN"
}

// Active reports whether the state belongs in the active mask.
func (s State) Active() bool {
	return s == StateStarting || s == StateRunning
}

// Channel is the state machine for one physical unit. It is mutated only
// by the Coordinator; faults latch until an explicit reset.
type Channel struct {
	state State

	// Inhibited channels hold in Starting until an external confirmation
	// (frequency lock) arrives, bounded by confirmTicks.
	inhibited    bool
	confirmTicks int
	startTicks   int
	confirmed    bool

	faultCode uint16
}

// NewChannel creates a stopped channel. confirmTicks bounds the Starting
// hold for inhibited channels; it is ignored otherwise.
func NewChannel(inhibited bool, confirmTicks int) *Channel {
	return &Channel{inhibited: inhibited, confirmTicks: confirmTicks}
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	return c.state
}

// FaultCode returns the latched fault code, zero when healthy.
func (c *Channel) FaultCode() uint16 {
	return c.faultCode
}

// RequestStart arms the channel for starting. Start while already
// Starting or Running is a safe no-op. Returns false when the channel is
// latched in Overload or Faulted, or is still winding down.
func (c *Channel) RequestStart() bool {
	switch c.state {
	case StateStopped:
		c.state = StateStarting
		c.startTicks = 0
		c.confirmed = false
		return true
	case StateStarting, StateRunning:
		return true
	}
	return false
}

// RequestStop arms the channel for stopping. A stop submitted while
// Starting cancels the pending start. Stop in any non-active state is a
// safe no-op; stop never fails.
func (c *Channel) RequestStop() bool {
	switch c.state {
	case StateStarting, StateRunning:
		c.state = StateStopping
	}
	return true
}

// Confirm delivers the external start confirmation for an inhibited
// channel. It has no effect outside Starting.
func (c *Channel) Confirm() {
	if c.state == StateStarting {
		c.confirmed = true
	}
}

// ReportFault forces the channel into Overload or Faulted. The latch
// holds until ResetFault.
func (c *Channel) ReportFault(overload bool, code uint16) {
	if overload {
		c.state = StateOverload
	} else {
		c.state = StateFaulted
	}
	c.faultCode = code
}

// ResetFault clears a latched Overload or Faulted state back to Stopped.
// In any other state it is a no-op.
func (c *Channel) ResetFault() {
	if c.state == StateOverload || c.state == StateFaulted {
		c.state = StateStopped
		c.faultCode = 0
	}
}

// ForceStop marks the channel Stopping regardless of state. Used by the
// emergency-stop path, which overrides fault latches.
func (c *Channel) ForceStop() {
	if c.state != StateStopped {
		c.state = StateStopping
	}
}

// Tick advances the state machine by one cooperative update.
func (c *Channel) Tick() {
	switch c.state {
	case StateStarting:
		if !c.inhibited || c.confirmed {
			c.state = StateRunning
			return
		}
		c.startTicks++
		if c.startTicks >= c.confirmTicks {
			c.state = StateFaulted
			c.faultCode = faultStartTimeout
		}
	case StateStopping:
		c.state = StateStopped
	}
}
