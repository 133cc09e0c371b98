package mc13192

import "fmt"

// readTime returns the 24-bit timestamp. Call with the irq source disabled.
func (d *Device) readTime() uint32 {
	hi := uint32(d.bus.read(regTimeHi) & timestampMask)
	lo := uint32(d.bus.read(regTimeLo))
	return hi<<16 | lo
}

// armTimer1 loads TC1 with the absolute time at and enables its comparator.
// The value is latched with the comparator disabled first so that a partly
// written compare value cannot match.
func (d *Device) armTimer1(at uint32) {
	hi, lo := uint16(at>>16)&timestampMask, uint16(at)
	d.bus.write(regT1Hi, hi|timerDisable)
	d.bus.write(regT1Lo, lo)
	d.bus.write(regT1Hi, hi)
	d.bus.write(regT1Lo, lo)
}

func (d *Device) disarmTimer1() {
	d.bus.write(regT1Hi, timerDisable)
	d.bus.write(regT1Lo, 0)
}

// Time returns the transceiver timestamp. It counts at the rate selected by
// the timer prescaler and wraps at 2^24.
// This method is concurrent safe.
func (d *Device) Time() (uint32, error) {
	d.irq.disable()
	defer d.irq.restore()
	t := d.readTime()
	return t, d.busErr()
}

// SetTime loads the timestamp counter with t. TC1 carries the value into the
// counter, so this fails with ErrBusy during a receive with timeout.
// This method is concurrent safe.
func (d *Device) SetTime(t uint32) error {
	if t > timeMax {
		return fmt.Errorf("%w: %w: time exceeds 24 bits", ErrPkg, ErrOutOfRange)
	}

	d.irq.disable()
	defer d.irq.restore()

	if d.mode == ModeRxWithTimeout {
		return fmt.Errorf("%w: %w: timer 1 in use", ErrPkg, ErrBusy)
	}
	d.bus.write(regT1Hi, uint16(t>>16)&timestampMask)
	d.bus.write(regT1Lo, uint16(t))
	m2 := d.bus.read(regMode2)
	d.bus.write(regMode2, m2|mode2TimerLoad)
	d.bus.write(regMode2, m2&^mode2TimerLoad)
	d.disarmTimer1()
	return d.busErr()
}

// SetTimerPrescale selects the timestamp rate: 0 is 2 MHz and each step
// halves it, down to 15.625 kHz at 7.
// This method is concurrent safe.
func (d *Device) SetTimerPrescale(p byte) error {
	if p > 7 {
		return fmt.Errorf("%w: %w: prescale %d", ErrPkg, ErrOutOfRange, p)
	}

	d.irq.disable()
	defer d.irq.restore()

	d.bus.modify(regPrescale, 0xFFF8, uint16(p))
	if err := d.busErr(); err != nil {
		return err
	}
	d.config.TimerPrescale = p
	return nil
}

// SetClockOutRate selects the CLKO frequency, 0 (16 MHz) to 7 (16.393 kHz).
// This method is concurrent safe.
func (d *Device) SetClockOutRate(r byte) error {
	if r > 7 {
		return fmt.Errorf("%w: %w: clock rate %d", ErrPkg, ErrOutOfRange, r)
	}

	d.irq.disable()
	defer d.irq.restore()

	d.bus.modify(regClocks, 0xFFF8, uint16(r))
	if err := d.busErr(); err != nil {
		return err
	}
	d.config.ClockOutRate = r
	return nil
}
