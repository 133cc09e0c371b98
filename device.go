package mc13192

import (
	"context"
	"fmt"
	"io"
	"time"
)

const (
	// resetTimeout bounds the wait for the chip to raise attention after the
	// reset line is released.
	resetTimeout = 100 * time.Millisecond
	pollInterval = time.Millisecond
)

// Device drives an MC13192 2.4 GHz transceiver.
//
// Requests from the application run on the caller's goroutine. Hardware
// events are serviced by the event dispatcher on the IRQ watch goroutine.
// Both sides share the mode mirror, the interest mask and the active receive
// packet, and touch them only with the irq source disabled.
type Device struct {
	config HardwareConfig
	bus    transport
	lines  controlLines
	irq    irqSource
	port   io.Closer

	// Guarded by irq.
	mode        Mode
	interest    Status
	appInterest Status
	rx          *RxPacket
	last        event
	ccaBusy     bool
	stats       Stats
	onReceive   func(*RxPacket)
	onReset     func()

	// wake is signalled by the dispatcher every time it returns.
	wake chan struct{}
}

// NewWithHardware resets and configures the transceiver behind conn and starts
// servicing its interrupt line.
func NewWithHardware(c HardwareConfig, conn SPI) (*Device, error) {
	if c.Power == 0 {
		c.Power = PowerNominal
	}
	if c.TimerPrescale == 0 {
		c.TimerPrescale = 3
	}
	if int(c.Channel) >= len(ChannelPlan) {
		return nil, fmt.Errorf("channel must be between 0 and %d", len(ChannelPlan)-1)
	}
	if _, ok := paCode(c.Power); !ok {
		return nil, fmt.Errorf("power must be 0 to 15, PowerMin or PowerMax")
	}
	if c.TimerPrescale > 7 || c.ClockOutRate > 7 {
		return nil, fmt.Errorf("timer prescale and clock out rate must be between 0 and 7")
	}
	if c.Run == nil || c.Attn == nil || c.Reset == nil || c.IRQ == nil {
		return nil, fmt.Errorf("run, attention, reset and IRQ pins must be configured")
	}

	d := &Device{
		config: c,
		bus:    transport{conn: conn, cs: c.CS},
		lines: controlLines{
			run: c.Run, attn: c.Attn, reset: c.Reset,
			antTx: c.AntTx, antRx: c.AntRx, pa: c.PA, lna: c.LNA,
		},
		appInterest: StatusAll,
		wake:        make(chan struct{}, 1),
	}
	d.mode = ModeSystemReset
	d.interest = interest(d.mode)

	globalLogger.Info("Initializing MC13192...")

	if err := d.config.IRQ.In(PullUp); err != nil {
		return nil, fmt.Errorf("failed to configure IRQ pin: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
	defer cancel()
	if err := d.Reset(ctx); err != nil {
		return nil, err
	}
	if err := d.Configure(); err != nil {
		return nil, err
	}

	if err := d.config.IRQ.Watch(FallingEdge, d.handleInterrupt); err != nil {
		return nil, fmt.Errorf("failed to watch IRQ pin: %w", err)
	}

	globalLogger.Info("MC13192 configured and idle.")
	return d, nil
}

func (d *Device) String() string {
	d.irq.disable()
	defer d.irq.restore()

	return fmt.Sprintf("MC13192(Mode=%s, Channel=%d, Power=%d, TimerPrescale=%d)",
		d.mode,
		d.config.Channel,
		d.config.Power,
		d.config.TimerPrescale,
	)
}

// OnReceive registers fn to be called from the dispatcher goroutine when a
// receive request ends with RxSuccess, RxOverflow or RxTimeout. fn may issue a
// new receive.
// This method is concurrent safe.
func (d *Device) OnReceive(fn func(*RxPacket)) {
	d.irq.disable()
	defer d.irq.restore()
	d.onReceive = fn
}

// OnReset registers fn to be called from the dispatcher goroutine when the
// chip reports that it reset itself. The driver is then in ModeDeviceReset
// and the application must call Configure before further use.
// This method is concurrent safe.
func (d *Device) OnReset(fn func()) {
	d.irq.disable()
	defer d.irq.restore()
	d.onReset = fn
}

// Reset pulses the hard reset line and waits for the chip to come back with
// an attention interrupt. The driver is left in ModeConfigPending.
// This method is concurrent safe.
func (d *Device) Reset(ctx context.Context) error {
	d.irq.disable()
	defer d.irq.restore()

	d.rx = nil
	d.lines.park(d.config.CS)
	d.setMode(ModeSystemReset)
	set(d.lines.reset, High)

	// The dispatcher is locked out, so poll the line the way boot code does.
	for {
		if d.config.IRQ.Read() == Low {
			st := Status(d.bus.read(regStatus))
			if err := d.busErr(); err != nil {
				return err
			}
			if st&StatusAttention != 0 {
				break
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w: %w", ErrPkg, ErrNoReset, ctx.Err())
		case <-time.After(pollInterval):
		}
	}

	d.setMode(ModeConfigPending)
	globalLogger.Debug("reset complete, attention received")
	return nil
}

// Configure writes the register init table and the RadioConfig. It is
// required after Reset and after the chip reports a reset of its own.
// This method is concurrent safe.
func (d *Device) Configure() error {
	d.irq.disable()
	defer d.irq.restore()

	switch d.mode {
	case ModeConfigPending, ModeDeviceReset, ModeIdle, ModeIdleAttention:
	default:
		return fmt.Errorf("%w: %w: configure in %s mode", ErrPkg, ErrBusy, d.mode)
	}

	d.lines.setRun(false)
	for _, r := range initTable {
		d.bus.write(r.addr, r.val)
		if r.addr == regGPIOData {
			// Reading clears the reset indication so that later attention
			// interrupts can tell a wake from a reset.
			d.bus.read(regResetInd)
		}
	}
	d.bus.read(regStatus)

	c := d.config.RadioConfig
	d.writeChannel(c.Channel)
	code, _ := paCode(c.Power)
	d.bus.modify(regPAAdjust, 0xFF00, code)
	d.bus.modify(regPrescale, 0xFFF8, uint16(c.TimerPrescale))
	d.bus.modify(regClocks, 0xFFF8, uint16(c.ClockOutRate))
	if c.FrontEndGain != 0 {
		d.bus.modify(regFEGain, 0xFF00, uint16(c.FrontEndGain))
	}
	if c.CrystalTrim != 0 {
		d.bus.modify(regClocks, 0x00FF, uint16(c.CrystalTrim)<<8)
	}
	if err := d.busErr(); err != nil {
		return err
	}

	d.rx = nil
	d.setMode(ModeIdle)
	return nil
}

// SoftReset resets the chip through its reset register. The chip answers
// with an attention interrupt that is reported through OnReset.
// This method is concurrent safe.
func (d *Device) SoftReset() error {
	return d.WriteRegister(regReset, 0)
}

// Close stops interrupt servicing, idles and hibernates the transceiver and
// releases the SPI port.
// This method is concurrent safe.
func (d *Device) Close() error {
	if err := d.config.IRQ.Unwatch(); err != nil {
		globalLogger.Warn("Failed to unwatch IRQ pin")
	}

	d.irq.disable()
	d.lines.setRun(false)
	d.disarmTimer1()
	d.bus.modify(regMode, ^uint16(seqMask), seqIdle)
	d.bus.modify(regMode2, ^uint16(mode2PowerMask), mode2Hibernate)
	d.rx = nil
	d.setMode(ModeHibernate)
	err := d.busErr()
	d.irq.restore()
	globalLogger.Info("MC13192 hibernated.")

	if d.port != nil {
		if cerr := d.port.Close(); cerr != nil {
			globalLogger.Warn("Failed to close SPI port")
		}
		globalLogger.Info("SPI bus closed.")
	}
	return err
}

// --- Mode requests ---

// setTrxState stops the running sequence, programs the sequence for m and
// starts it. Call with the irq source disabled.
func (d *Device) setTrxState(m Mode) {
	d.lines.setRun(false)
	var seq uint16
	switch m {
	case ModeRx, ModeRxWithTimeout:
		seq = seqRx
	case ModeTx:
		seq = seqTx
	}
	reg := d.bus.read(regMode)&^seqMask | seq
	d.setMode(m)
	d.bus.write(regMode, reg)
	if m != ModeIdle {
		d.lines.setRun(true)
	}
}

// startCCA runs a channel assessment of the given type.
func (d *Device) startCCA(ccaType uint16) {
	d.lines.setRun(false)
	reg := d.bus.read(regMode)&^(seqMask|ccaTypeMask) | ccaType | seqCCA
	d.setMode(ModeEnergyDetect)
	d.bus.write(regMode, reg)
	d.lines.setRun(true)
}

// forceIdle recovers from a failed request. Call with the irq source disabled.
func (d *Device) forceIdle() {
	d.lines.setRun(false)
	d.rx = nil
	d.setMode(ModeIdle)
}

// SetIdle stops whatever the transceiver is doing. It is a hard override: an
// outstanding receive is dropped without a callback.
// This method is concurrent safe.
func (d *Device) SetIdle() error {
	d.irq.disable()
	defer d.irq.restore()

	d.rx = nil
	d.disarmTimer1()
	d.setTrxState(ModeIdle)
	return d.busErr()
}

// EnableReceive turns the receiver on and latches p as the target for the
// next frame. A timeout of zero listens until a frame arrives; otherwise
// TC1 is armed timeout timestamp ticks from now. The outcome is delivered
// through OnReceive.
// This method is concurrent safe.
func (d *Device) EnableReceive(p *RxPacket, timeout uint32) error {
	if p == nil || len(p.Data) == 0 {
		return fmt.Errorf("%w: %w: receive buffer is empty", ErrPkg, ErrPacketSize)
	}
	if timeout > timeMax {
		return fmt.Errorf("%w: %w: timeout exceeds 24 bits", ErrPkg, ErrOutOfRange)
	}

	d.irq.disable()
	defer d.irq.restore()

	if d.mode != ModeIdle {
		return fmt.Errorf("%w: %w: receive requested in %s mode", ErrPkg, ErrBusy, d.mode)
	}

	p.Length = 0
	p.Status = RxPending
	d.rx = p
	if timeout == 0 {
		d.setTrxState(ModeRx)
	} else {
		d.armTimer1((d.readTime() + timeout) & timeMax)
		d.setTrxState(ModeRxWithTimeout)
	}
	if err := d.busErr(); err != nil {
		d.forceIdle()
		return err
	}
	return nil
}

// DisableReceive abandons an outstanding receive and idles the transceiver.
// This method is concurrent safe.
func (d *Device) DisableReceive() error {
	d.irq.disable()
	defer d.irq.restore()

	d.disarmTimer1()
	d.rx = nil
	d.setTrxState(ModeIdle)
	return d.busErr()
}

// Transmit sends one frame and blocks until the transceiver reports it sent.
// It fails with ErrBusy without touching the bus unless the transceiver is
// idle. Cancelling ctx forces the transceiver idle.
// This method is concurrent safe.
func (d *Device) Transmit(ctx context.Context, data []byte) error {
	if len(data) == 0 || len(data) > MaxPacketSize {
		return fmt.Errorf("%w: %w: %d bytes, limit is %d", ErrPkg, ErrPacketSize, len(data), MaxPacketSize)
	}

	d.irq.disable()
	if d.mode != ModeIdle {
		m := d.mode
		d.irq.restore()
		return fmt.Errorf("%w: %w: transmit requested in %s mode", ErrPkg, ErrBusy, m)
	}
	d.bus.writeTxPacket(data)
	d.last = evNone
	d.setTrxState(ModeTx)
	if err := d.busErr(); err != nil {
		d.forceIdle()
		d.irq.restore()
		return err
	}
	d.irq.restore()

	ev, err := d.waitFor(ctx, ModeTx, true)
	if err != nil {
		return err
	}
	return outcome(ev, evTxDone, "transmit")
}

// outcome maps the event that ended a blocking request to its result.
func outcome(ev, want event, req string) error {
	switch ev {
	case want:
		return nil
	case evLockLost:
		return wrap(ErrLockLost)
	case evDeviceReset:
		return wrap(ErrDeviceReset)
	}
	return fmt.Errorf("%w: %w: %s ended before completing", ErrPkg, ErrAborted, req)
}

// MeasureEnergy runs an energy detect cycle and returns the channel energy.
// The power in dBm is about -(energy/2).
// This method is concurrent safe.
func (d *Device) MeasureEnergy(ctx context.Context) (uint8, error) {
	if err := d.assess(ctx, ccaTypeED); err != nil {
		return 0, err
	}

	d.irq.disable()
	defer d.irq.restore()
	v := d.bus.read(regRxPktLen)
	return uint8(v >> 8), d.busErr()
}

// AssessChannel runs a clear channel assessment and reports whether the
// channel is free.
// This method is concurrent safe.
func (d *Device) AssessChannel(ctx context.Context) (bool, error) {
	if err := d.assess(ctx, ccaTypeCCA); err != nil {
		return false, err
	}

	d.irq.disable()
	defer d.irq.restore()
	return !d.ccaBusy, nil
}

func (d *Device) assess(ctx context.Context, ccaType uint16) error {
	d.irq.disable()
	if d.mode != ModeIdle {
		m := d.mode
		d.irq.restore()
		return fmt.Errorf("%w: %w: channel assessment requested in %s mode", ErrPkg, ErrBusy, m)
	}
	d.last = evNone
	d.startCCA(ccaType)
	if err := d.busErr(); err != nil {
		d.forceIdle()
		d.irq.restore()
		return err
	}
	d.irq.restore()

	ev, err := d.waitFor(ctx, ModeEnergyDetect, true)
	if err != nil {
		return err
	}
	return outcome(ev, evCCADone, "channel assessment")
}

// Doze puts the transceiver in its low-current doze mode. With keepClock the
// CLKO output keeps running (at 1 MHz or less). Halting the host processor
// is up to the caller.
// This method is concurrent safe.
func (d *Device) Doze(keepClock bool) error {
	d.irq.disable()
	defer d.irq.restore()

	d.lines.setRun(false)
	d.rx = nil
	reg := d.bus.read(regMode2)&^(mode2PowerMask|mode2ClkoDoze) | mode2Doze
	if keepClock {
		reg |= mode2ClkoDoze
	}
	d.setMode(ModeDoze)
	d.bus.write(regMode2, reg)
	return d.busErr()
}

// Hibernate puts the transceiver in its lowest current mode. CLKO stops.
// This method is concurrent safe.
func (d *Device) Hibernate() error {
	d.irq.disable()
	defer d.irq.restore()

	d.lines.setRun(false)
	d.rx = nil
	d.setMode(ModeHibernate)
	d.bus.modify(regMode2, ^uint16(mode2PowerMask), mode2Hibernate)
	return d.busErr()
}

// Wake brings the transceiver out of doze or hibernate and blocks until it
// acknowledges with an attention interrupt. If the chip reset itself instead,
// OnReset has been called, Wake fails with ErrDeviceReset and the driver is
// left in ModeConfigPending unless OnReset already ran Configure.
// This method is concurrent safe.
func (d *Device) Wake(ctx context.Context) error {
	d.irq.disable()
	from := d.mode
	if from != ModeDoze && from != ModeHibernate {
		d.irq.restore()
		return wrap(ErrNotAsleep)
	}
	d.last = evNone
	d.lines.pulseAttn()
	d.irq.restore()

	ev, err := d.waitFor(ctx, from, false)
	if err != nil {
		return err
	}

	d.irq.disable()
	defer d.irq.restore()
	switch ev {
	case evAttention:
		if d.mode == ModeIdleAttention {
			d.bus.modify(regMode2, ^uint16(mode2PowerMask), 0)
			d.setMode(ModeIdle)
		}
		return d.busErr()
	case evDeviceReset:
		if d.mode == ModeDeviceReset {
			d.setMode(ModeConfigPending)
		}
		return wrap(ErrDeviceReset)
	}
	return fmt.Errorf("%w: %w: left %s mode without waking", ErrPkg, ErrAborted, from)
}

// waitFor sleeps while the mode mirror stays at m, waking each time the
// dispatcher returns. It reports the outcome the dispatcher recorded, or
// evNone if the mode changed without one. With abort set, cancellation
// forces the transceiver idle.
func (d *Device) waitFor(ctx context.Context, m Mode, abort bool) (event, error) {
	for {
		d.irq.disable()
		cur, ev := d.mode, d.last
		d.irq.restore()
		if ev != evNone || cur != m {
			return ev, nil
		}

		select {
		case <-d.wake:
		case <-ctx.Done():
			if abort {
				d.SetIdle()
			}
			return evNone, ctx.Err()
		}
	}
}
