// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package config

import "fmt"

// Validate checks configuration correctness. It performs declarative
// validation only and MUST NOT mutate the configuration.
func Validate(cfg *Config) error {
	c := &cfg.Controller

	if c.SlaveID == 0 || c.SlaveID > 247 {
		return fmt.Errorf("slave_id must be in [1,247], got %d", c.SlaveID)
	}
	if c.Timing.TickMs <= 0 || c.Timing.TickMs > 100 {
		return fmt.Errorf("tick_ms must be in (0,100], got %d", c.Timing.TickMs)
	}
	if c.Timing.CommTimeoutMs < c.Timing.TickMs {
		return fmt.Errorf("comm_timeout_ms (%d) must not be shorter than tick_ms (%d)",
			c.Timing.CommTimeoutMs, c.Timing.TickMs)
	}
	if c.Timing.WatchdogMs < c.Timing.TickMs {
		return fmt.Errorf("watchdog_ms (%d) must not be shorter than tick_ms (%d)",
			c.Timing.WatchdogMs, c.Timing.TickMs)
	}
	if c.Timing.StartConfirmTicks <= 0 {
		return fmt.Errorf("start_confirm_ticks must be positive, got %d", c.Timing.StartConfirmTicks)
	}

	for idx := range c.Channels {
		if idx < 0 || idx > 3 {
			return fmt.Errorf("channel index %d out of range [0,3]", idx)
		}
	}

	return nil
}
