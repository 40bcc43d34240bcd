// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

import (
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/mbrtu"
	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
)

const testSlaveID = 2

func testParams() Params {
	return Params{
		SlaveID:      testSlaveID,
		TickInterval: 10 * time.Millisecond,
		CommTimeout:  time.Hour,
		Watchdog:     time.Hour,
		ConfirmTicks: 10,
		Logger:       log.New(io.Discard, "", 0),
	}
}

func newTestController(t *testing.T) (*Controller, *SimIO) {
	t.Helper()
	sim := NewSimIO()
	return NewController(testParams(), sim, nil), sim
}

func writeReg(slave byte, addr, value uint16) []byte {
	return mbrtu.AppendChecksum([]byte{slave, mbrtu.FuncWriteSingle,
		byte(addr >> 8), byte(addr & 0xFF),
		byte(value >> 8), byte(value & 0xFF)})
}

func TestStartCommandToRegisterReflection(t *testing.T) {
	ctrl, sim := newTestController(t)

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())

	store := ctrl.Store()
	if got := store.Get(regmap.ChannelAddr(0, regmap.OffState)); State(got) != StateRunning {
		t.Errorf("state register = %v, expected Running", State(got))
	}
	if got := store.Get(regmap.AddrActiveMask); got != 0b0001 {
		t.Errorf("active mask register = %04b, expected 0001", got)
	}
	if got := store.Get(regmap.AddrActiveCount); got != 1 {
		t.Errorf("active count register = %d, expected 1", got)
	}
	if !sim.drive[0] {
		t.Error("drive output not asserted for running channel")
	}

	flags := regmap.UnpackFlags(store.Get(regmap.ChannelAddr(0, regmap.OffStatusFlags)))
	if !flags.Running {
		t.Error("running flag not set in status bitfield")
	}
}

func TestStopCommand(t *testing.T) {
	ctrl, sim := newTestController(t)

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(1, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())
	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(1, regmap.OffStartStop), 0))
	ctrl.Tick(time.Now())

	store := ctrl.Store()
	if got := State(store.Get(regmap.ChannelAddr(1, regmap.OffState))); got != StateStopped {
		t.Errorf("state register = %v, expected Stopped", got)
	}
	if sim.drive[1] {
		t.Error("drive output still asserted after stop")
	}
}

func TestOverloadLatchAndReset(t *testing.T) {
	ctrl, sim := newTestController(t)
	store := ctrl.Store()

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())

	sim.InjectOverload(0, true)
	ctrl.Tick(time.Now())

	if got := State(store.Get(regmap.ChannelAddr(0, regmap.OffState))); got != StateOverload {
		t.Fatalf("state register = %v, expected Overload", got)
	}
	if got := store.Get(regmap.AddrActiveMask); got != 0 {
		t.Errorf("overloaded channel still in mask %04b", got)
	}
	flags := regmap.UnpackFlags(store.Get(regmap.ChannelAddr(0, regmap.OffStatusFlags)))
	if !flags.Overload {
		t.Error("overload flag not set")
	}

	// The latch holds across ticks and start attempts.
	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())
	if got := State(store.Get(regmap.ChannelAddr(0, regmap.OffState))); got != StateOverload {
		t.Fatalf("start request cleared overload latch: %v", got)
	}

	// Explicit reset pulse clears it; the pulse register reads back 0.
	sim.InjectOverload(0, false)
	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffOverloadReset), 1))
	ctrl.Tick(time.Now())

	if got := State(store.Get(regmap.ChannelAddr(0, regmap.OffState))); got != StateStopped {
		t.Errorf("state after reset = %v, expected Stopped", got)
	}
	if got := store.Get(regmap.ChannelAddr(0, regmap.OffOverloadReset)); got != 0 {
		t.Errorf("overload-reset pulse not consumed: %d", got)
	}
}

func TestEmergencyStopRegister(t *testing.T) {
	ctrl, _ := newTestController(t)
	store := ctrl.Store()

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(2, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.AddrEmergencyStop, 1))
	ctrl.Tick(time.Now())

	if got := MasterState(store.Get(regmap.AddrMasterState)); got != MasterEmergencyStop {
		t.Fatalf("master state register = %v, expected EmergencyStop", got)
	}
	if store.Get(regmap.AddrSysStatus)&regmap.SysStatusEmergencyStop == 0 {
		t.Error("estop bit missing from system status")
	}

	// Starts are rejected while latched.
	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(2, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())
	if got := store.Get(regmap.AddrActiveMask); got != 0 {
		t.Errorf("start accepted during estop: mask %04b", got)
	}

	// Reset command releases the latch.
	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.AddrSystemReset, 1))
	ctrl.Tick(time.Now())
	if got := MasterState(store.Get(regmap.AddrMasterState)); got == MasterEmergencyStop {
		t.Fatal("estop latch survived system reset")
	}

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(2, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())
	if got := store.Get(regmap.AddrActiveMask); got != 0b0100 {
		t.Errorf("start after reset: mask %04b, expected 0100", got)
	}
}

func TestCommTimeoutForcesEmergencyStop(t *testing.T) {
	params := testParams()
	params.CommTimeout = 50 * time.Millisecond
	ctrl := NewController(params, NewSimIO(), nil)
	store := ctrl.Store()

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())

	// Nothing arrives for a full second of controller time.
	ctrl.Tick(time.Now().Add(time.Second))
	ctrl.Tick(time.Now().Add(time.Second))

	if got := MasterState(store.Get(regmap.AddrMasterState)); got != MasterEmergencyStop {
		t.Fatalf("master state = %v, expected EmergencyStop after link loss", got)
	}
	if store.Get(regmap.AddrSysStatus)&regmap.SysStatusCommFault == 0 {
		t.Error("comm-fault bit missing from system status")
	}
	if got := ctrl.Supervisor().Stats().TimeoutEvents; got != 1 {
		t.Errorf("timeout events = %d, expected 1", got)
	}
	if got := State(store.Get(regmap.ChannelAddr(0, regmap.OffState))); got != StateStopped {
		t.Errorf("channel not wound down after link loss: %v", got)
	}
}

func TestAmplitudeAppliedToHardware(t *testing.T) {
	ctrl, sim := newTestController(t)

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffAmplitudeSetpoint), 75))
	ctrl.Tick(time.Now())
	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())

	if sim.amplitude[0] != 75 {
		t.Errorf("hardware amplitude = %d, expected 75", sim.amplitude[0])
	}
	if got := ctrl.Store().Get(regmap.ChannelAddr(0, regmap.OffAmplitudeActual)); got != 75 {
		t.Errorf("actual-amplitude register = %d, expected 75", got)
	}
}

func TestWatchdogResetReturnsToSafeState(t *testing.T) {
	params := testParams()
	params.SnapshotPath = filepath.Join(t.TempDir(), "prev-state.cbor")
	sim := NewSimIO()
	ctrl := NewController(params, sim, nil)
	store := ctrl.Store()

	ctrl.Supervisor().Feed(writeReg(testSlaveID, regmap.ChannelAddr(0, regmap.OffStartStop), 1))
	ctrl.Tick(time.Now())

	ctrl.powerUpReset()

	if got := State(store.Get(regmap.ChannelAddr(0, regmap.OffState))); got != StateStopped {
		t.Errorf("state after watchdog reset = %v, expected Stopped", got)
	}
	if got := store.Get(regmap.AddrActiveMask); got != 0 {
		t.Errorf("active mask after reset = %04b, expected 0", got)
	}
	if store.Get(regmap.AddrSysStatus)&regmap.SysStatusWatchdogReset == 0 {
		t.Error("watchdog-reset bit missing from system status")
	}
	if sim.drive[0] {
		t.Error("drive output still asserted after watchdog reset")
	}

	// The pre-reset state lands in the diagnostic registers, and nothing
	// auto-resumes from it.
	if got := State(store.Get(regmap.ChannelAddr(0, regmap.OffPrevState))); got != StateRunning {
		t.Errorf("previous-state register = %v, expected Running", got)
	}
	ctrl.Tick(time.Now())
	if got := store.Get(regmap.AddrActiveMask); got != 0 {
		t.Errorf("channel auto-resumed after reset: mask %04b", got)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prev-state.cbor")
	snap := Snapshot{SavedAt: time.Now()}
	snap.Channels[1] = ChannelSnapshot{State: uint16(StateOverload), FaultCode: 0x11, Amplitude: 80}

	if err := SaveSnapshot(path, snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("snapshot missing after save")
	}
	if loaded.Channels[1] != snap.Channels[1] {
		t.Errorf("channel record mismatch: %+v", loaded.Channels[1])
	}

	store := regmap.NewStore()
	loaded.ApplyToStore(store)
	if got := store.Get(regmap.ChannelAddr(1, regmap.OffPrevFaultCode)); got != 0x11 {
		t.Errorf("diag fault code = 0x%04X, expected 0x11", got)
	}
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	snap, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.cbor"))
	if err != nil {
		t.Fatalf("missing snapshot must not error: %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot for missing file")
	}
}
