//go:build tinygo

package mc13192

import (
	"machine"
)

// tinygoPin wraps a machine.Pin to satisfy the Pin interface.
type tinygoPin struct {
	pin machine.Pin
}

func (p *tinygoPin) Out(l Level) error {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Set(bool(l))
	return nil
}

func (p *tinygoPin) In(pull Pull) error {
	var mPull machine.PinMode
	switch pull {
	case PullUp:
		mPull = machine.PinInputPullup
	case PullDown:
		mPull = machine.PinInputPulldown
	default:
		mPull = machine.PinInput
	}
	p.pin.Configure(machine.PinConfig{Mode: mPull})
	return nil
}

func (p *tinygoPin) Read() Level {
	return Level(p.pin.Get())
}

func (p *tinygoPin) Watch(edge Edge, handler func()) error {
	var mEdge machine.PinChange
	switch edge {
	case RisingEdge:
		mEdge = machine.PinRising
	case FallingEdge:
		mEdge = machine.PinFalling
	case BothEdges:
		mEdge = machine.PinToggle
	default:
		return nil
	}

	return p.pin.SetInterrupt(mEdge, func(machine.Pin) {
		handler()
	})
}

func (p *tinygoPin) Unwatch() error {
	// Reconfiguring as a plain input drops the edge interrupt.
	p.pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	return nil
}

// tinygoSPI wraps a machine.SPI to satisfy the SPI interface. Chip select
// is left to the driver.
type tinygoSPI struct {
	spi *machine.SPI
}

func (s *tinygoSPI) Tx(w, r []byte) error {
	return s.spi.Tx(w, r)
}

// Pins lists the microcontroller pins wired to the transceiver.
// Optional front end pins set to machine.NoPin are left unused.
type Pins struct {
	CS, Run, Attn, Reset, IRQ machine.Pin
	AntTx, AntRx, PA, LNA     machine.Pin
}

func optional(p machine.Pin) Pin {
	if p == machine.NoPin {
		return nil
	}
	return &tinygoPin{pin: p}
}

// NewTinyGo creates a new MC13192 driver for TinyGo systems.
// The SPI bus must already be configured for mode 0.
func NewTinyGo(c RadioConfig, spi *machine.SPI, pins Pins) (*Device, error) {
	hw := HardwareConfig{
		RadioConfig: c,
		CS:          &tinygoPin{pin: pins.CS},
		Run:         &tinygoPin{pin: pins.Run},
		Attn:        &tinygoPin{pin: pins.Attn},
		Reset:       &tinygoPin{pin: pins.Reset},
		IRQ:         &tinygoPin{pin: pins.IRQ},
		AntTx:       optional(pins.AntTx),
		AntRx:       optional(pins.AntRx),
		PA:          optional(pins.PA),
		LNA:         optional(pins.LNA),
	}
	return NewWithHardware(hw, &tinygoSPI{spi: spi})
}
