// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies
//
// sonicator-io - Multi-Sonicator I/O Controller
//
// Modbus RTU slave exposing a fixed register map for up to four
// independently controlled ultrasonic processing channels.

package main

import (
	"os"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
