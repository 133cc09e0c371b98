package mc13192

import "fmt"

// ChannelPlan holds the LO1 integer divider and numerator for each of the 16
// channels. Channel n sits at 2.405 GHz + 5 MHz * n.
var ChannelPlan = [16][2]uint16{
	{0x0F95, 0x5000},
	{0x0F95, 0xA000},
	{0x0F95, 0xF000},
	{0x0F96, 0x4000},
	{0x0F96, 0x9000},
	{0x0F96, 0xE000},
	{0x0F97, 0x3000},
	{0x0F97, 0x8000},
	{0x0F97, 0xD000},
	{0x0F98, 0x2000},
	{0x0F98, 0x7000},
	{0x0F98, 0xC000},
	{0x0F99, 0x1000},
	{0x0F99, 0x6000},
	{0x0F99, 0xB000},
	{0x0F9A, 0x0000},
}

// fallbackChannel is programmed when an invalid channel is requested.
const fallbackChannel = 8

// Power settings outside the 0 to 15 linear range.
const (
	PowerMax     = 100 // PA at full scale
	PowerMin     = 50  // PA fully off
	PowerNominal = 0x0B
)

// paCode maps a power setting to the low byte of the PA adjust register.
func paCode(level byte) (uint16, bool) {
	switch {
	case level == PowerMax:
		return 0x00FF, true
	case level == PowerMin:
		return 0x0000, true
	case level <= 15:
		return uint16(level)<<4 | 0x000C, true
	default:
		return 0, false
	}
}

// writeChannel programs the synthesizer. Out of range channels program the
// fallback and report ErrInvalidChannel. Call with the irq source disabled.
func (d *Device) writeChannel(ch byte) error {
	var err error
	if int(ch) >= len(ChannelPlan) {
		err = fmt.Errorf("%w: %w: %d", ErrPkg, ErrInvalidChannel, ch)
		ch = fallbackChannel
	}
	d.bus.write(regLO1IDiv, ChannelPlan[ch][0])
	d.bus.write(regLO1Num, ChannelPlan[ch][1])
	return err
}

// SetChannel tunes the transceiver to channel 0 to 15. An invalid channel
// tunes to channel 8 and returns ErrInvalidChannel.
// This method is concurrent safe.
func (d *Device) SetChannel(ch byte) error {
	d.irq.disable()
	defer d.irq.restore()

	err := d.writeChannel(ch)
	if berr := d.busErr(); berr != nil {
		return berr
	}
	if err != nil {
		d.config.Channel = fallbackChannel
		return err
	}
	d.config.Channel = ch
	return nil
}

// SetPower sets the PA output level: 0 to 15, PowerMax or PowerMin.
// This method is concurrent safe.
func (d *Device) SetPower(level byte) error {
	code, ok := paCode(level)
	if !ok {
		return fmt.Errorf("%w: %w: power %d", ErrPkg, ErrOutOfRange, level)
	}

	d.irq.disable()
	defer d.irq.restore()

	d.bus.modify(regPAAdjust, 0xFF00, code)
	if err := d.busErr(); err != nil {
		return err
	}
	d.config.Power = level
	return nil
}

// AdjustCrystal trims the reference oscillator.
// This method is concurrent safe.
func (d *Device) AdjustCrystal(trim byte) error {
	d.irq.disable()
	defer d.irq.restore()

	d.bus.modify(regClocks, 0x00FF, uint16(trim)<<8)
	return d.busErr()
}

// AdjustFrontEndGain compensates the receive gain, 128 is centre.
// This method is concurrent safe.
func (d *Device) AdjustFrontEndGain(gain byte) error {
	d.irq.disable()
	defer d.irq.restore()

	d.bus.modify(regFEGain, 0xFF00, uint16(gain))
	return d.busErr()
}

// Version returns the silicon revision.
// This method is concurrent safe.
func (d *Device) Version() (uint8, error) {
	d.irq.disable()
	defer d.irq.restore()

	v := d.bus.read(regVersion)
	return uint8((v & versionMask) >> 10), d.busErr()
}

// LinkQuality returns the energy of the last received frame. Like
// MeasureEnergy, the power in dBm is about -(value/2).
// This method is concurrent safe.
func (d *Device) LinkQuality() (uint8, error) {
	d.irq.disable()
	defer d.irq.restore()

	v := d.bus.read(regRxPktLen)
	return uint8(v >> 8), d.busErr()
}
