package mc13192

// Level is the logic level of a GPIO line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// Pull selects the bias resistor of an input line.
type Pull uint8

const (
	PullNoChange Pull = iota
	PullFloat
	PullDown
	PullUp
)

// Edge selects which transition of an input line is reported by Watch.
type Edge uint8

const (
	NoEdge Edge = iota
	RisingEdge
	FallingEdge
	BothEdges
)

// SPI is the serial bus to the MC13192. Each Tx call is one full-duplex
// transfer; r receives len(w) bytes. When HardwareConfig.CS is nil the
// implementation frames chip select around every call.
type SPI interface {
	Tx(w, r []byte) error
}

// Pin is one GPIO line: the control outputs (RXTXEN, ATTN, RST and the
// optional front-end switches) and the IRQ input.
type Pin interface {
	Out(l Level) error
	In(pull Pull) error
	Read() Level
	// Watch runs handler for every matching edge. Calls are serialized on a
	// single goroutine owned by the Pin.
	Watch(edge Edge, handler func()) error
	Unwatch() error
}
