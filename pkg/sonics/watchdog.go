// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

import (
	"sync/atomic"
	"time"
)

// Watchdog models the hardware timer that resets the device into its
// safe power-up state when the cooperative tick stops executing. Kick is
// called only from the end of a complete tick; the monitor goroutine
// never touches controller state itself, it only signals expiry.
type Watchdog struct {
	timeout  time.Duration
	lastKick atomic.Int64
	expired  atomic.Bool
	stop     chan struct{}
	Expired  chan struct{}
}

// NewWatchdog creates a watchdog with the given expiry period.
func NewWatchdog(timeout time.Duration) *Watchdog {
	w := &Watchdog{
		timeout: timeout,
		stop:    make(chan struct{}),
		Expired: make(chan struct{}, 1),
	}
	w.lastKick.Store(time.Now().UnixNano())
	return w
}

// Start launches the monitor goroutine.
func (w *Watchdog) Start() {
	interval := w.timeout / 4
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				last := time.Unix(0, w.lastKick.Load())
				if time.Since(last) > w.timeout && !w.expired.Swap(true) {
					select {
					case w.Expired <- struct{}{}:
					default:
					}
				}
			}
		}
	}()
}

// Kick records tick liveness and re-arms the watchdog.
func (w *Watchdog) Kick() {
	w.lastKick.Store(time.Now().UnixNano())
	w.expired.Store(false)
}

// Stop halts the monitor goroutine.
func (w *Watchdog) Stop() {
	close(w.stop)
}
