// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package mbrtu

import (
	"errors"
	"time"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
)

// Supervisor drives the request/response cycle: it drains the receive
// ring, reassembles frames, dispatches at most one complete request per
// poll, and tracks exchange latency and link inactivity.
type Supervisor struct {
	ring       ByteRing
	assembler  *Assembler
	dispatcher *Dispatcher
	stats      *Statistics

	idleTimeout  time.Duration
	lastActivity time.Time
}

// NewSupervisor wires a supervisor for the given slave address and store.
// idleTimeout is the link-inactivity threshold the safety layer polls via
// LinkIdle.
func NewSupervisor(slaveID byte, store *regmap.Store, idleTimeout time.Duration) *Supervisor {
	return &Supervisor{
		assembler:    NewAssembler(),
		dispatcher:   NewDispatcher(slaveID, store),
		stats:        NewStatistics(),
		idleTimeout:  idleTimeout,
		lastActivity: time.Now(),
	}
}

// Feed enqueues received bytes from the reader goroutine. It is the only
// method safe to call outside the tick goroutine.
func (s *Supervisor) Feed(p []byte) int {
	return s.ring.Put(p)
}

// Poll drains buffered bytes and processes at most one complete frame,
// bounding per-tick protocol work. It returns the response frame to
// transmit, or nil when there is nothing to answer (no complete frame,
// a corrupted frame, or a frame for another slave).
func (s *Supervisor) Poll(now time.Time) []byte {
	for {
		b, ok := s.ring.Get()
		if !ok {
			return nil
		}

		req, err := s.assembler.Feed(b, now)
		if err != nil {
			if errors.Is(err, ErrCRCMismatch) {
				s.stats.CRCErrors++
			} else {
				s.stats.FrameErrors++
			}
			continue
		}
		if req == nil {
			continue
		}

		resp, code := s.dispatcher.Handle(req)
		if resp == nil && code == 0 {
			continue // another slave's frame
		}

		s.stats.RequestsReceived++
		s.stats.LastRequestTime = now
		s.lastActivity = now
		if code != 0 {
			s.stats.RecordException(code)
		}
		s.stats.RecordExchange(time.Since(now))
		return resp
	}
}

// LinkIdle reports whether no valid frame addressed to this slave has
// been processed within the configured inactivity threshold.
func (s *Supervisor) LinkIdle(now time.Time) bool {
	return now.Sub(s.lastActivity) > s.idleTimeout
}

// RecordTimeout counts one link-inactivity trip.
func (s *Supervisor) RecordTimeout() {
	s.stats.TimeoutEvents++
}

// LastActivity returns the time of the last successfully processed frame.
func (s *Supervisor) LastActivity() time.Time {
	return s.lastActivity
}

// Stats returns a copy of the current statistics.
func (s *Supervisor) Stats() Statistics {
	return *s.stats
}

// ResetStats clears all counters on explicit request.
func (s *Supervisor) ResetStats() {
	s.stats.Reset()
}
