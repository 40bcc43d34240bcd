// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the controller's YAML configuration.
type Config struct {
	Controller ControllerConfig `yaml:"controller"`
}

type ControllerConfig struct {
	Serial   SerialConfig              `yaml:"serial"`
	SlaveID  uint8                     `yaml:"slave_id"`
	Timing   TimingConfig              `yaml:"timing"`
	Snapshot string                    `yaml:"snapshot_path"`
	Channels map[int]ChannelConfig     `yaml:"channels"`
}

type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

type TimingConfig struct {
	TickMs            int `yaml:"tick_ms"`
	CommTimeoutMs     int `yaml:"comm_timeout_ms"`
	WatchdogMs        int `yaml:"watchdog_ms"`
	StartConfirmTicks int `yaml:"start_confirm_ticks"`
}

type ChannelConfig struct {
	// Inhibited channels hold in Starting until frequency lock confirms.
	Inhibited bool `yaml:"inhibited"`
}

// Load reads and parses the configuration file. It performs no
// validation; callers run Validate separately.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config read: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	return &cfg, nil
}

// InhibitMask folds the per-channel inhibit flags into a bitmask.
func (c *ControllerConfig) InhibitMask() uint16 {
	var mask uint16
	for idx, ch := range c.Channels {
		if ch.Inhibited && idx >= 0 && idx < 16 {
			mask |= 1 << idx
		}
	}
	return mask
}
