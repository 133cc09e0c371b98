//go:build !tinygo

package mc13192

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

var (
	periphPull = [...]gpio.Pull{
		PullNoChange: gpio.PullNoChange,
		PullFloat:    gpio.Float,
		PullDown:     gpio.PullDown,
		PullUp:       gpio.PullUp,
	}
	periphEdge = [...]gpio.Edge{
		NoEdge:      gpio.NoEdge,
		RisingEdge:  gpio.RisingEdge,
		FallingEdge: gpio.FallingEdge,
		BothEdges:   gpio.BothEdges,
	}
)

// edgePoll bounds each WaitForEdge so that Unwatch is noticed.
const edgePoll = 100 * time.Millisecond

// periphPin adapts a periph gpio.PinIO. The MC13192 IRQ output is open
// drain, so a watched line is always pulled up.
type periphPin struct {
	gpio.PinIO
	stop chan struct{}
}

func (p *periphPin) Out(l Level) error {
	return p.PinIO.Out(gpio.Level(l))
}

func (p *periphPin) In(pull Pull) error {
	if int(pull) >= len(periphPull) {
		pull = PullNoChange
	}
	return p.PinIO.In(periphPull[pull], gpio.NoEdge)
}

func (p *periphPin) Read() Level {
	return Level(p.PinIO.Read())
}

func (p *periphPin) Watch(edge Edge, handler func()) error {
	if int(edge) >= len(periphEdge) {
		edge = NoEdge
	}
	if err := p.PinIO.In(gpio.PullUp, periphEdge[edge]); err != nil {
		return err
	}

	stop := make(chan struct{})
	p.stop = stop
	go func() {
		for {
			fired := p.PinIO.WaitForEdge(edgePoll)
			select {
			case <-stop:
				return
			default:
			}
			if fired {
				handler()
			}
		}
	}()
	return nil
}

func (p *periphPin) Unwatch() error {
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	return p.PinIO.In(gpio.PullUp, gpio.NoEdge)
}

// Config holds the configuration for the Linux/periph.io driver.
// Pins use BCM numbering.
type Config struct {
	RadioConfig
	// RunPin drives RTXEN. Defaults to 25 if not provided.
	RunPin int
	// AttnPin drives ATTN. Defaults to 24 if not provided.
	AttnPin int
	// ResetPin drives RST. Defaults to 23 if not provided.
	ResetPin int
	// IRQPin is the transceiver IRQ output. Defaults to 22 if not provided.
	IRQPin int
	// CSPin is a GPIO chip select. Optional. If not provided, the SPI
	// device's own chip select frames each transfer.
	CSPin int
	// AntTxPin, AntRxPin, PAPin and LNAPin drive optional front end
	// switches. Zero leaves them unused.
	AntTxPin int
	AntRxPin int
	PAPin    int
	LNAPin   int
	// SpiBusPath is the path to the SPI bus (e.g., "/dev/spidev0.0").
	// Defaults to "/dev/spidev0.0" if not provided.
	SpiBusPath string
	// SpiClockHz is the SPI clock frequency in Hz.
	// Defaults to 4000000 (4MHz) if not provided.
	SpiClockHz int
}

// openPin returns the GPIO with BCM number n, or nil for an unused optional pin.
func openPin(n int, required bool) (Pin, error) {
	if n == 0 && !required {
		return nil, nil
	}
	name := fmt.Sprintf("GPIO%d", n)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("failed to open pin %s", name)
	}
	return &periphPin{PinIO: p}, nil
}

// New creates and initializes a new MC13192 driver for Linux systems.
// It applies configuration defaults, initializes the GPIO and SPI interfaces using periph.io,
// then resets and configures the transceiver.
// It returns the initialized driver or an error if hardware initialization fails.
func New(c Config) (*Device, error) {
	// 1. Initialize periph.io host (Required for both SPI and GPIO)
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph.io host: %w", err)
	}

	// 2. Defaults
	if c.SpiBusPath == "" {
		c.SpiBusPath = "/dev/spidev0.0"
	}
	if c.SpiClockHz == 0 {
		c.SpiClockHz = 4000000
	}
	if c.RunPin == 0 {
		c.RunPin = 25
	}
	if c.AttnPin == 0 {
		c.AttnPin = 24
	}
	if c.ResetPin == 0 {
		c.ResetPin = 23
	}
	if c.IRQPin == 0 {
		c.IRQPin = 22
	}

	// 3. Open the SPI Port
	p, err := spireg.Open(c.SpiBusPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port: %w", err)
	}

	// 4. Create the SPI Connection (Mode 0, 8 bits)
	conn, err := p.Connect(physic.Frequency(c.SpiClockHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create SPI connection: %w", err)
	}

	// 5. Setup control lines
	hw := HardwareConfig{RadioConfig: c.RadioConfig}
	pins := []struct {
		n        int
		required bool
		dst      *Pin
	}{
		{c.RunPin, true, &hw.Run},
		{c.AttnPin, true, &hw.Attn},
		{c.ResetPin, true, &hw.Reset},
		{c.IRQPin, true, &hw.IRQ},
		{c.CSPin, false, &hw.CS},
		{c.AntTxPin, false, &hw.AntTx},
		{c.AntRxPin, false, &hw.AntRx},
		{c.PAPin, false, &hw.PA},
		{c.LNAPin, false, &hw.LNA},
	}
	for _, pin := range pins {
		w, err := openPin(pin.n, pin.required)
		if err != nil {
			p.Close()
			return nil, err
		}
		*pin.dst = w
	}

	// 6. Call internal constructor
	dev, err := NewWithHardware(hw, conn)
	if err != nil {
		p.Close()
		return nil, err
	}

	// Store the port closer so we can close it later
	dev.port = p
	return dev, nil
}
