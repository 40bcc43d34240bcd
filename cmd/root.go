// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Cannasol Technologies

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial link flags
	portName string
	baudRate int
	slaveID  uint8

	// Config file
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "sonicator-io",
	Short: "Multi-sonicator I/O controller",
	Long: `sonicator-io - register-map controller for up to four sonicator channels.

The controller exposes a fixed Modbus RTU register map over a serial link
(115200 8N1) and coordinates per-channel start/stop, amplitude, overload
containment, and system-wide emergency stop.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: serve --ws-listen :8092 (same frames, carried in binary
             WebSocket messages)

Settings come from an optional YAML config file (--config); flags override.`,
	Version: "1.2.0",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (default 115200)")
	rootCmd.PersistentFlags().Uint8Var(&slaveID, "slave", 0, "Slave address (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
