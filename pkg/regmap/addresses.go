// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package regmap

// System status block (read-only)
const (
	AddrSysStatus       = 0x0000
	AddrActiveCount     = 0x0001
	AddrActiveMask      = 0x0002
	AddrMasterState     = 0x0003
	AddrFaultCode       = 0x0004
	AddrTransitionCount = 0x0005
	AddrCRCErrorCount   = 0x0006
	AddrMaxResponseMs   = 0x0007

	SystemBlockStart = 0x0000
	SystemBlockEnd   = 0x0007
)

// Global control block (read-write)
const (
	AddrGlobalEnable  = 0x0010
	AddrEmergencyStop = 0x0011
	AddrSystemReset   = 0x0012

	GlobalBlockStart = 0x0010
	GlobalBlockEnd   = 0x0012
)

// Per-channel blocks. Channel n occupies ChannelBlockBase + n*ChannelBlockStride.
const (
	ChannelCount       = 4
	ChannelBlockBase   = 0x0100
	ChannelBlockStride = 0x0020
)

// Channel control sub-block offsets (read-write)
const (
	OffStartStop         = 0x00
	OffAmplitudeSetpoint = 0x01
	OffOverloadReset     = 0x02
)

// Channel status sub-block offsets (read-only)
const (
	OffPower           = 0x10
	OffFrequency       = 0x11
	OffStatusFlags     = 0x12
	OffAmplitudeActual = 0x13
	OffState           = 0x14
	OffPrevState       = 0x15
	OffPrevFaultCode   = 0x16
	OffPrevAmplitude   = 0x17

	channelControlEnd = OffOverloadReset
	channelStatusEnd  = OffPrevAmplitude
)

// Amplitude setpoint limits (percent). Out-of-range writes clamp.
const (
	AmplitudeMin = 20
	AmplitudeMax = 100
)

// SysStatus bitfield
const (
	SysStatusCommFault     = 1 << 0
	SysStatusEmergencyStop = 1 << 1
	SysStatusWatchdogReset = 1 << 2
)

// ChannelAddr returns the absolute address of a register in channel n's block.
func ChannelAddr(channel int, offset uint16) uint16 {
	return uint16(ChannelBlockBase + channel*ChannelBlockStride + int(offset))
}

// Class describes the write policy of a register address.
type Class int

const (
	// ClassUnmapped addresses are outside every defined block.
	ClassUnmapped Class = iota
	// ClassStatus registers are read-only; writes are an illegal-address error.
	ClassStatus
	// ClassControl registers accept the full 16-bit range.
	ClassControl
	// ClassBool registers accept only 0 or 1; anything else is an illegal value.
	ClassBool
	// ClassAmplitude registers clamp writes into [AmplitudeMin, AmplitudeMax].
	ClassAmplitude
	// ClassDiag registers are read-only diagnostics; writes are silently discarded.
	ClassDiag
)

// ClassOf returns the write policy for an address.
func ClassOf(addr uint16) Class {
	switch {
	case addr <= SystemBlockEnd:
		return ClassStatus
	case addr >= GlobalBlockStart && addr <= GlobalBlockEnd:
		return ClassBool
	case addr >= ChannelBlockBase && addr < ChannelBlockBase+ChannelCount*ChannelBlockStride:
		off := (addr - ChannelBlockBase) % ChannelBlockStride
		switch {
		case off == OffStartStop || off == OffOverloadReset:
			return ClassBool
		case off == OffAmplitudeSetpoint:
			return ClassAmplitude
		case off >= OffPrevState && off <= channelStatusEnd:
			return ClassDiag
		case off >= OffPower && off <= OffState:
			return ClassStatus
		}
	}
	return ClassUnmapped
}

// ChannelOf returns the channel index owning addr, or -1 for addresses
// outside the per-channel blocks.
func ChannelOf(addr uint16) int {
	if addr < ChannelBlockBase || addr >= ChannelBlockBase+ChannelCount*ChannelBlockStride {
		return -1
	}
	return int(addr-ChannelBlockBase) / ChannelBlockStride
}
