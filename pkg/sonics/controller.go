// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 Cannasol Technologies

package sonics

import (
	"context"
	"io"
	"log"
	"math/bits"
	"sync"
	"time"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/mbrtu"
	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/regmap"
)

// Params configures a controller instance.
type Params struct {
	SlaveID      byte
	TickInterval time.Duration
	CommTimeout  time.Duration
	Watchdog     time.Duration
	ConfirmTicks int    // Starting hold budget for inhibited channels
	InhibitMask  uint16 // channels that wait for frequency-lock confirmation
	SnapshotPath string
	Logger       *log.Logger
}

// View is the value-copy snapshot published after every tick for
// observers (dashboard, probe logging). It shares no storage with the
// controller.
type View struct {
	Coordinator Status
	Stats       mbrtu.Statistics
	CommFault   bool
	TickCount   uint64
	Taken       time.Time
}

// Controller owns the register store, the protocol supervisor, and the
// control core, advancing everything from a single cooperative tick. The
// only concurrent touchpoints are the byte ring (fed by the link reader
// goroutine) and the published View.
type Controller struct {
	params Params
	logger *log.Logger

	store  *regmap.Store
	sup    *mbrtu.Supervisor
	coord  *Coordinator
	safety *SafetySupervisor
	units  UnitIO
	wdog   *Watchdog
	link   io.ReadWriter

	prevOverload [regmap.ChannelCount]bool
	wdogTripped  bool
	tickCount    uint64

	mu   sync.RWMutex
	view View
}

// NewController wires a controller. link may be nil for tests that feed
// the supervisor directly.
func NewController(params Params, units UnitIO, link io.ReadWriter) *Controller {
	if params.Logger == nil {
		params.Logger = log.Default()
	}
	store := regmap.NewStore()

	var channels [regmap.ChannelCount]*Channel
	for i := range channels {
		inhibited := params.InhibitMask&(1<<i) != 0
		channels[i] = NewChannel(inhibited, params.ConfirmTicks)
	}

	c := &Controller{
		params: params,
		logger: params.Logger,
		store:  store,
		sup:    mbrtu.NewSupervisor(params.SlaveID, store, params.CommTimeout),
		coord:  NewCoordinator(channels),
		units:  units,
		wdog:   NewWatchdog(params.Watchdog),
		link:   link,
	}
	c.safety = NewSafetySupervisor(c.coord)

	// Power-up defaults: outputs enabled, everything stopped.
	store.Set(regmap.AddrGlobalEnable, 1)

	if params.SnapshotPath != "" {
		snap, err := LoadSnapshot(params.SnapshotPath)
		if err != nil {
			c.logger.Printf("previous-state snapshot unreadable: %v", err)
		} else if snap != nil {
			snap.ApplyToStore(store)
		}
	}

	return c
}

// Store exposes the register table for tests and for in-process
// transports that bypass the serial reader.
func (c *Controller) Store() *regmap.Store {
	return c.store
}

// Supervisor exposes the protocol supervisor's producer side.
func (c *Controller) Supervisor() *mbrtu.Supervisor {
	return c.sup
}

// Coordinator exposes the control core for bench tooling.
func (c *Controller) Coordinator() *Coordinator {
	return c.coord
}

// Tick runs one cooperative update: protocol poll, control-register
// consumption, input sampling, safety checks, state-machine advancement,
// status reflection, output application, watchdog kick.
func (c *Controller) Tick(now time.Time) {
	if resp := c.sup.Poll(now); resp != nil && c.link != nil {
		if _, err := c.link.Write(resp); err != nil {
			c.logger.Printf("response write failed: %v", err)
		}
	}

	c.consumeWrites()
	c.sampleInputs()

	if c.safety.Observe(c.sup.LinkIdle(now)) {
		c.sup.RecordTimeout()
		c.logger.Printf("link inactive beyond %s: emergency stop forced", c.params.CommTimeout)
	}

	c.coord.Update()
	c.reflectStatus()
	c.applyOutputs()

	c.wdog.Kick()
	c.tickCount++
	c.publish(now)
}

// consumeWrites turns the control-register writes accepted since the
// last tick into coordinator requests. Several start flags arriving in
// one exchange become one coordinated start.
func (c *Controller) consumeWrites() {
	var startMask, stopMask uint16

	for _, ev := range c.store.TakeWrites() {
		if ev.Channel >= 0 {
			switch ev.Offset {
			case regmap.OffStartStop:
				if ev.Value == 1 {
					startMask |= 1 << ev.Channel
				} else {
					stopMask |= 1 << ev.Channel
				}
			case regmap.OffOverloadReset:
				if ev.Value == 1 {
					c.coord.ResetUnitFault(ev.Channel)
					c.store.Set(ev.Addr, 0) // one-shot pulse consumed
				}
			}
			continue
		}

		switch ev.Addr {
		case regmap.AddrEmergencyStop:
			if ev.Value == 1 {
				c.logger.Printf("emergency stop requested over link")
				c.coord.EmergencyStop()
			}
			// Writing zero does not release the latch; only the reset
			// command does.
		case regmap.AddrSystemReset:
			if ev.Value == 1 {
				c.systemReset()
				c.store.Set(regmap.AddrSystemReset, 0)
			}
		}
	}

	if c.store.Get(regmap.AddrGlobalEnable) == 0 {
		startMask = 0
	}

	if startMask != 0 {
		if bits.OnesCount16(startMask) > 1 {
			c.coord.RequestCoordinatedStart(startMask)
		} else {
			c.coord.RequestUnitStart(bits.TrailingZeros16(startMask))
		}
	}
	if stopMask != 0 {
		if bits.OnesCount16(stopMask) > 1 {
			c.coord.RequestCoordinatedStop(stopMask)
		} else {
			c.coord.RequestUnitStop(bits.TrailingZeros16(stopMask))
		}
	}
}

// systemReset releases the emergency latch and clears every channel
// fault on explicit operator request.
func (c *Controller) systemReset() {
	c.logger.Printf("system reset requested")
	c.coord.ClearEmergencyStop()
	for i := 0; i < regmap.ChannelCount; i++ {
		c.coord.ResetUnitFault(i)
	}
	c.wdogTripped = false
	c.store.Set(regmap.AddrEmergencyStop, 0)
}

// sampleInputs latches edge-triggered overload inputs and delivers
// frequency-lock confirmations to channels holding in Starting.
func (c *Controller) sampleInputs() {
	for i := 0; i < regmap.ChannelCount; i++ {
		ov := c.units.Overload(i)
		if ov && !c.prevOverload[i] {
			c.logger.Printf("channel %d: overload input", i)
			c.coord.ReportUnitFault(i, true)
		}
		c.prevOverload[i] = ov

		if c.coord.Channel(i).State() == StateStarting && c.units.FrequencyLock(i) {
			c.coord.Channel(i).Confirm()
		}
	}
}

// reflectStatus writes the control core's state back into the register
// table. Count and mask land in the same pass, so the two are never
// observed inconsistent.
func (c *Controller) reflectStatus() {
	st := c.coord.Status()
	stats := c.sup.Stats()

	for i := 0; i < regmap.ChannelCount; i++ {
		state := st.Channels[i]
		flags := regmap.StatusFlags{
			Running:   state == StateRunning,
			Overload:  state == StateOverload,
			FreqLock:  c.units.FrequencyLock(i),
			CommFault: c.safety.CommFault(),
		}

		var actual uint16
		if state == StateRunning {
			actual = c.store.Get(regmap.ChannelAddr(i, regmap.OffAmplitudeSetpoint))
		}

		c.store.Set(regmap.ChannelAddr(i, regmap.OffPower), c.units.Power(i))
		c.store.Set(regmap.ChannelAddr(i, regmap.OffFrequency), c.units.Frequency(i))
		c.store.Set(regmap.ChannelAddr(i, regmap.OffStatusFlags), flags.Pack())
		c.store.Set(regmap.ChannelAddr(i, regmap.OffAmplitudeActual), actual)
		c.store.Set(regmap.ChannelAddr(i, regmap.OffState), uint16(state))
	}

	var sys uint16
	if c.safety.CommFault() {
		sys |= regmap.SysStatusCommFault
	}
	if c.coord.EmergencyStopped() {
		sys |= regmap.SysStatusEmergencyStop
	}
	if c.wdogTripped {
		sys |= regmap.SysStatusWatchdogReset
	}

	c.store.Set(regmap.AddrSysStatus, sys)
	c.store.Set(regmap.AddrActiveCount, st.ActiveCount())
	c.store.Set(regmap.AddrActiveMask, st.ActiveMask)
	c.store.Set(regmap.AddrMasterState, uint16(st.Master))
	c.store.Set(regmap.AddrFaultCode, st.FaultCode)
	c.store.Set(regmap.AddrTransitionCount, uint16(st.Transitions))
	c.store.Set(regmap.AddrCRCErrorCount, uint16(stats.CRCErrors))
	c.store.Set(regmap.AddrMaxResponseMs, uint16(stats.MaxResponseTime.Milliseconds()))
}

// applyOutputs pushes drive and amplitude to the hardware front end.
func (c *Controller) applyOutputs() {
	for i := 0; i < regmap.ChannelCount; i++ {
		state := c.coord.Channel(i).State()
		c.units.SetDrive(i, state == StateStarting || state == StateRunning)
		c.units.SetAmplitude(i, c.store.Get(regmap.ChannelAddr(i, regmap.OffAmplitudeSetpoint)))
	}
}

// powerUpReset is the watchdog expiry path: snapshot the pre-reset state
// into the diagnostic registers, then return to the safe power-up state.
// Nothing auto-resumes.
func (c *Controller) powerUpReset() {
	c.logger.Printf("watchdog expired: resetting to safe power-up state")
	snap := c.currentSnapshot()
	if c.params.SnapshotPath != "" {
		if err := SaveSnapshot(c.params.SnapshotPath, snap); err != nil {
			c.logger.Printf("snapshot save failed: %v", err)
		}
	}
	snap.ApplyToStore(c.store)

	var channels [regmap.ChannelCount]*Channel
	for i := range channels {
		inhibited := c.params.InhibitMask&(1<<i) != 0
		channels[i] = NewChannel(inhibited, c.params.ConfirmTicks)
	}
	c.coord = NewCoordinator(channels)
	c.safety = NewSafetySupervisor(c.coord)
	c.wdogTripped = true

	for i := 0; i < regmap.ChannelCount; i++ {
		c.store.Set(regmap.ChannelAddr(i, regmap.OffStartStop), 0)
		c.units.SetDrive(i, false)
	}
	c.store.TakeWrites() // discard anything armed before the reset
	c.reflectStatus()
	c.wdog.Kick()
}

func (c *Controller) currentSnapshot() Snapshot {
	st := c.coord.Status()
	snap := Snapshot{SavedAt: time.Now()}
	for i := 0; i < regmap.ChannelCount; i++ {
		snap.Channels[i] = ChannelSnapshot{
			State:     uint16(st.Channels[i]),
			FaultCode: st.FaultCodes[i],
			Amplitude: c.store.Get(regmap.ChannelAddr(i, regmap.OffAmplitudeSetpoint)),
		}
	}
	return snap
}

func (c *Controller) publish(now time.Time) {
	c.mu.Lock()
	c.view = View{
		Coordinator: c.coord.Status(),
		Stats:       c.sup.Stats(),
		CommFault:   c.safety.CommFault(),
		TickCount:   c.tickCount,
		Taken:       now,
	}
	c.mu.Unlock()
}

// Snapshot returns the view published by the most recent tick. Safe to
// call from any goroutine.
func (c *Controller) Snapshot() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.view
}

// Run drives the cooperative loop until the context is cancelled. The
// link reader goroutine only moves bytes into the supervisor's ring; all
// control work happens here.
func (c *Controller) Run(ctx context.Context) error {
	if c.link != nil {
		go c.readLink(ctx)
	}

	c.wdog.Start()
	defer c.wdog.Stop()

	ticker := time.NewTicker(c.params.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-c.wdog.Expired:
			c.powerUpReset()
		case now := <-ticker.C:
			c.Tick(now)
		}
	}
}

func (c *Controller) readLink(ctx context.Context) {
	buf := make([]byte, 256)
	for {
		n, err := c.link.Read(buf)
		if n > 0 {
			c.sup.Feed(buf[:n])
		}
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Printf("link read failed: %v", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// shutdown persists the pre-shutdown snapshot and drops all outputs.
func (c *Controller) shutdown() {
	if c.params.SnapshotPath != "" {
		if err := SaveSnapshot(c.params.SnapshotPath, c.currentSnapshot()); err != nil {
			c.logger.Printf("snapshot save failed: %v", err)
		}
	}
	for i := 0; i < regmap.ChannelCount; i++ {
		c.units.SetDrive(i, false)
	}
}
