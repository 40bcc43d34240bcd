// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

// SafetySupervisor bridges the link-inactivity detector and the
// coordinator's emergency path. A communication trip forces an emergency
// stop and latches the comm-fault condition; the fault indication clears
// only once valid traffic resumes, while the emergency latch itself
// requires an explicit reset.
type SafetySupervisor struct {
	coord   *Coordinator
	tripped bool
}

// NewSafetySupervisor creates a supervisor bound to the coordinator.
func NewSafetySupervisor(coord *Coordinator) *SafetySupervisor {
	return &SafetySupervisor{coord: coord}
}

// Observe consumes the link-idle signal for this tick. It returns true
// exactly once per trip, when the idle condition first forces the
// emergency stop.
func (s *SafetySupervisor) Observe(linkIdle bool) bool {
	if linkIdle {
		if s.tripped {
			return false
		}
		s.tripped = true
		s.coord.EmergencyStop()
		s.coord.SetFaultCode(faultCommTimeout)
		return true
	}
	// Fresh valid communication clears the fault indication. The
	// emergency latch stays until an explicit reset.
	s.tripped = false
	return false
}

// CommFault reports whether the communication-loss condition is active.
func (s *SafetySupervisor) CommFault() bool {
	return s.tripped
}
