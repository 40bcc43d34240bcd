// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package config

// Defaults applied by Normalize. Tick and timeout periods sit well under
// the command-to-effect budget of the register contract.
const (
	DefaultBaud              = 115200
	DefaultSlaveID           = 2
	DefaultTickMs            = 10
	DefaultCommTimeoutMs     = 1000
	DefaultWatchdogMs        = 1000
	DefaultStartConfirmTicks = 50
)

// Normalize fills unset fields with their defaults. It is the only place
// that mutates a loaded configuration.
func Normalize(cfg *Config) {
	c := &cfg.Controller
	if c.Serial.Baud == 0 {
		c.Serial.Baud = DefaultBaud
	}
	if c.SlaveID == 0 {
		c.SlaveID = DefaultSlaveID
	}
	if c.Timing.TickMs == 0 {
		c.Timing.TickMs = DefaultTickMs
	}
	if c.Timing.CommTimeoutMs == 0 {
		c.Timing.CommTimeoutMs = DefaultCommTimeoutMs
	}
	if c.Timing.WatchdogMs == 0 {
		c.Timing.WatchdogMs = DefaultWatchdogMs
	}
	if c.Timing.StartConfirmTicks == 0 {
		c.Timing.StartConfirmTicks = DefaultStartConfirmTicks
	}
}
