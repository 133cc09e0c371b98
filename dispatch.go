package mc13192

// event is the outcome the dispatcher records for a blocking request. The
// first outcome after the request cleared it wins.
type event uint8

const (
	evNone event = iota
	evLockLost
	evAttention
	evDeviceReset
	evCCADone
	evTxDone
)

// record keeps ev unless an outcome is already recorded. Call with the irq
// source disabled.
func (d *Device) record(ev event) {
	if d.last == evNone {
		d.last = ev
	}
}

// Stats counts interrupt outcomes since the device was created.
type Stats struct {
	Interrupts   uint32 // dispatcher runs
	Spurious     uint32 // nothing of interest in the status
	LockLost     uint32
	Attentions   uint32
	DeviceResets uint32
	Timeouts     uint32
	CCADone      uint32
	TxDone       uint32
	Received     uint32 // frames handed to OnReceive, overflow included
	CRCRetries   uint32 // frames dropped for a bad CRC
	ShortFrames  uint32 // frames dropped for a length under 3
	RAMErrors    uint32
	DozeDone     uint32
	BusErrors    uint32
}

// Stats returns a snapshot of the dispatcher counters.
// This method is concurrent safe.
func (d *Device) Stats() Stats {
	d.irq.disable()
	defer d.irq.restore()
	return d.stats
}

// notice carries a callback out of the dispatcher so that it runs once the
// irq source is enabled again.
type notice struct {
	rx        *RxPacket
	onReceive func(*RxPacket)
	onReset   func()
}

func (n notice) deliver() {
	if n.rx != nil && n.onReceive != nil {
		n.onReceive(n.rx)
	}
	if n.onReset != nil {
		n.onReset()
	}
}

// handleInterrupt is the event dispatcher. It runs once per falling edge of
// the IRQ line, on the watch goroutine.
func (d *Device) handleInterrupt() {
	d.irq.disable()
	n := d.service()
	if err := d.bus.takeErr(); err != nil {
		d.stats.BusErrors++
		globalLogger.Error("bus failure while servicing interrupt: " + err.Error())
	}
	d.irq.restore()

	select {
	case d.wake <- struct{}{}:
	default:
	}
	n.deliver()
}

// service reads the status once (twice if IRQ is still asserted) and acts on
// the single highest priority condition of interest.
func (d *Device) service() notice {
	d.stats.Interrupts++

	st := Status(d.bus.read(regStatus))
	if d.config.IRQ.Read() == Low {
		st |= Status(d.bus.read(regStatus))
	}
	st &= d.interest
	if d.mode != ModeRxWithTimeout {
		st &^= StatusTimer1
	}
	if st&^StatusCRCValid == 0 {
		d.stats.Spurious++
		return notice{}
	}

	switch {
	case st&StatusLOLock != 0:
		d.lockLost()
	case st&StatusAttention != 0:
		return d.attention()
	case st&StatusTimer1 != 0:
		return d.timeout()
	case st&StatusCCA != 0:
		d.lines.setRun(false)
		d.ccaBusy = st&StatusCCABusy != 0
		d.stats.CCADone++
		d.record(evCCADone)
		d.setMode(ModeIdle)
	case st&StatusTx != 0:
		d.lines.setRun(false)
		d.stats.TxDone++
		d.record(evTxDone)
		d.setMode(ModeIdle)
	case st&StatusRx != 0:
		return d.received(st)
	default:
		if st&StatusRAMError != 0 {
			d.stats.RAMErrors++
			globalLogger.Warn("packet RAM error reported")
		}
		if st&StatusDoze != 0 {
			d.stats.DozeDone++
		}
	}
	return notice{}
}

// rearm restarts the receive sequence without leaving the current mode.
func (d *Device) rearm() {
	d.lines.setRun(false)
	d.bus.modify(regMode, ^uint16(timerTrigger), 0)
	d.lines.setRun(true)
}

func (d *Device) lockLost() {
	d.stats.LockLost++
	d.record(evLockLost)
	d.lines.setRun(false)
	if d.mode.receiving() {
		globalLogger.Warn("LO lock lost, receiver restarted")
		d.rearm()
		return
	}
	globalLogger.Warn("LO lock lost in " + d.mode.String() + " mode")
	d.setMode(ModeIdle)
}

func (d *Device) attention() notice {
	d.stats.Attentions++
	if d.bus.read(regResetInd)&resetIndBit == 0 {
		d.stats.DeviceResets++
		d.record(evDeviceReset)
		d.lines.setRun(false)
		d.rx = nil
		d.setMode(ModeDeviceReset)
		globalLogger.Warn("transceiver reset itself, configuration required")
		return notice{onReset: d.onReset}
	}
	d.record(evAttention)
	d.setMode(ModeIdleAttention)
	return notice{}
}

func (d *Device) timeout() notice {
	d.disarmTimer1()
	d.stats.Timeouts++
	d.lines.setRun(false)
	d.setMode(ModeIdle)

	rx := d.rx
	d.rx = nil
	if rx == nil {
		return notice{}
	}
	rx.Status = RxTimeout
	return notice{rx: rx, onReceive: d.onReceive}
}

func (d *Device) received(st Status) notice {
	if st&StatusCRCValid == 0 {
		d.stats.CRCRetries++
		globalLogger.Debug("CRC failed, receiver restarted")
		d.rearm()
		return notice{}
	}
	if d.bus.read(regRxPktLen)&pktLenMask < 3 {
		d.stats.ShortFrames++
		d.rearm()
		return notice{}
	}

	d.lines.setRun(false)
	rx := d.rx
	d.rx = nil
	if rx != nil {
		d.bus.readRxPacket(rx)
		d.stats.Received++
	}
	d.disarmTimer1()
	d.setMode(ModeIdle)
	if rx == nil {
		return notice{}
	}
	return notice{rx: rx, onReceive: d.onReceive}
}
