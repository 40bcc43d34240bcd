// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Cannasol Technologies

package cmd

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/goburrow/modbus"
	"github.com/spf13/cobra"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/sonics"
)

var probeTimeoutMs int

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Act as a Modbus RTU master against a running controller",
	Long: `Bench utility that speaks the master side of the register contract.

Useful for poking a controller on a real serial bus: read the system
status block, start or stop individual channels, set amplitude, trigger
or clear an emergency stop.`,
}

var probeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Read and print the system status block and channel states",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, closeFn, err := openMaster()
		if err != nil {
			return err
		}
		defer closeFn()

		sys, err := readRegs(client, regmap.SystemBlockStart, 8)
		if err != nil {
			return fmt.Errorf("status read failed: %w", err)
		}

		fmt.Printf("sys-status  0x%04X\n", sys[0])
		fmt.Printf("active      %d (mask %04b)\n", sys[1], sys[2])
		fmt.Printf("master      %s\n", sonics.MasterState(sys[3]))
		fmt.Printf("fault-code  0x%04X\n", sys[4])
		fmt.Printf("transitions %d\n", sys[5])
		fmt.Printf("crc-errors  %d\n", sys[6])
		fmt.Printf("max-resp    %d ms\n", sys[7])

		for ch := 0; ch < regmap.ChannelCount; ch++ {
			st, err := readRegs(client, regmap.ChannelAddr(ch, regmap.OffPower), 8)
			if err != nil {
				return fmt.Errorf("channel %d read failed: %w", ch, err)
			}
			fmt.Printf("ch%d  %-8s  power %4dW  freq %5dHz  flags 0x%04X  amp %3d%%\n",
				ch, sonics.State(st[4]), st[0], st[1], st[2], st[3])
		}
		return nil
	},
}

var probeStartCmd = &cobra.Command{
	Use:   "start <channel>",
	Short: "Start one channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeChannelReg(args[0], regmap.OffStartStop, 1)
	},
}

var probeStopCmd = &cobra.Command{
	Use:   "stop <channel>",
	Short: "Stop one channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeChannelReg(args[0], regmap.OffStartStop, 0)
	},
}

var probeAmplitudeCmd = &cobra.Command{
	Use:   "amplitude <channel> <percent>",
	Short: "Set a channel's amplitude setpoint (20-100)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pct, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("bad percent %q: %w", args[1], err)
		}
		return writeChannelReg(args[0], regmap.OffAmplitudeSetpoint, uint16(pct))
	},
}

var probeResetOverloadCmd = &cobra.Command{
	Use:   "reset-overload <channel>",
	Short: "Pulse a channel's overload reset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeChannelReg(args[0], regmap.OffOverloadReset, 1)
	},
}

var probeEstopCmd = &cobra.Command{
	Use:   "estop",
	Short: "Trigger the system-wide emergency stop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeGlobalReg(regmap.AddrEmergencyStop, 1)
	},
}

var probeResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Pulse the system reset (clears emergency stop and faults)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeGlobalReg(regmap.AddrSystemReset, 1)
	},
}

func init() {
	probeCmd.PersistentFlags().IntVar(&probeTimeoutMs, "timeout", 500, "Request timeout in milliseconds")
	probeCmd.AddCommand(probeStatusCmd, probeStartCmd, probeStopCmd,
		probeAmplitudeCmd, probeResetOverloadCmd, probeEstopCmd, probeResetCmd)
	rootCmd.AddCommand(probeCmd)
}

// openMaster connects the RTU master side over the shared serial flags.
func openMaster() (modbus.Client, func(), error) {
	if portName == "" {
		return nil, nil, fmt.Errorf("probe requires --port")
	}
	id := slaveID
	if id == 0 {
		id = 2
	}
	baud := baudRate
	if baud == 0 {
		baud = 115200
	}

	handler := modbus.NewRTUClientHandler(portName)
	handler.BaudRate = baud
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = id
	handler.Timeout = time.Duration(probeTimeoutMs) * time.Millisecond

	if err := handler.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", portName, err)
	}
	return modbus.NewClient(handler), func() { handler.Close() }, nil
}

func readRegs(client modbus.Client, addr uint16, qty uint16) ([]uint16, error) {
	raw, err := client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	regs := make([]uint16, qty)
	for i := range regs {
		regs[i] = binary.BigEndian.Uint16(raw[2*i:])
	}
	return regs, nil
}

func writeChannelReg(channelArg string, offset uint16, value uint16) error {
	ch, err := strconv.Atoi(channelArg)
	if err != nil || ch < 0 || ch >= regmap.ChannelCount {
		return fmt.Errorf("bad channel %q: want 0-%d", channelArg, regmap.ChannelCount-1)
	}
	return writeGlobalReg(regmap.ChannelAddr(ch, offset), value)
}

func writeGlobalReg(addr uint16, value uint16) error {
	client, closeFn, err := openMaster()
	if err != nil {
		return err
	}
	defer closeFn()

	if _, err := client.WriteSingleRegister(addr, value); err != nil {
		return fmt.Errorf("write 0x%04X=%d failed: %w", addr, value, err)
	}
	fmt.Printf("wrote 0x%04X = %d\n", addr, value)
	return nil
}
