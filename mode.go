package mc13192

// Mode mirrors the transceiver operating mode. The chip has no cheap way to
// report it, so the driver keeps this copy and it is the only source of truth.
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeRx
	ModeRxWithTimeout
	ModeTx
	ModeEnergyDetect
	ModeDoze
	ModeHibernate
	ModeSystemReset
	ModeDeviceReset
	ModeIdleAttention
	ModeConfigPending
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRx:
		return "rx"
	case ModeRxWithTimeout:
		return "rx-timeout"
	case ModeTx:
		return "tx"
	case ModeEnergyDetect:
		return "energy-detect"
	case ModeDoze:
		return "doze"
	case ModeHibernate:
		return "hibernate"
	case ModeSystemReset:
		return "system-reset"
	case ModeDeviceReset:
		return "device-reset"
	case ModeIdleAttention:
		return "idle-attention"
	case ModeConfigPending:
		return "config-pending"
	default:
		return "unknown"
	}
}

func (m Mode) receiving() bool {
	return m == ModeRx || m == ModeRxWithTimeout
}

// interest returns the status conditions worth servicing in mode m.
// Attention is always relevant: it acknowledges wake and reports chip resets.
func interest(m Mode) Status {
	s := StatusAttention | StatusRAMError | StatusDoze
	switch m {
	case ModeRx:
		s |= StatusLOLock | StatusRx | StatusCRCValid
	case ModeRxWithTimeout:
		s |= StatusLOLock | StatusRx | StatusCRCValid | StatusTimer1
	case ModeTx:
		s |= StatusLOLock | StatusTx
	case ModeEnergyDetect:
		s |= StatusLOLock | StatusCCA | StatusCCABusy
	}
	return s
}

// setMode is the single write path of the mode mirror. It must run with the
// irq source disabled: from a main-line request right after the matching
// hardware command, or from the dispatcher. A request blocked in waitFor is
// woken to look at the new mode.
func (d *Device) setMode(m Mode) {
	d.mode = m
	d.interest = interest(m) & d.appInterest
	d.lines.gate(m)
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Mode returns the current mode mirror.
// This method is concurrent safe.
func (d *Device) Mode() Mode {
	d.irq.disable()
	defer d.irq.restore()
	return d.mode
}

// SetInterestMask restricts the conditions the dispatcher acts on. The
// effective mask is m combined with what the current mode needs; bits outside
// it are ignored when an interrupt arrives.
// This method is concurrent safe.
func (d *Device) SetInterestMask(m Status) {
	d.irq.disable()
	defer d.irq.restore()
	d.appInterest = m
	d.interest = interest(d.mode) & m
}
