package mc13192

import "sync"

// irqSource stands in for the transceiver interrupt enable on the host.
// While it is disabled the event dispatcher cannot start, and a running
// dispatcher keeps it disabled until it returns. Every bus transfer happens
// with it disabled, which is the only exclusion the bus has.
type irqSource struct {
	mu sync.Mutex
}

func (s *irqSource) disable() { s.mu.Lock() }
func (s *irqSource) restore() { s.mu.Unlock() }

// transport moves 16-bit words over the serial link. Each register access is
// one chip-select frame of three bytes: address with direction bit, high
// byte, low byte. The first error is kept until takeErr; transfers after a
// failure are skipped.
type transport struct {
	conn SPI
	cs   Pin
	w    [3]byte
	r    [3]byte
	bw   [burstLen]byte
	br   [burstLen]byte
	err  error
}

func (t *transport) frame(w, r []byte) {
	if t.err != nil {
		return
	}
	if t.cs != nil {
		t.cs.Out(Low)
	}
	err := t.conn.Tx(w, r)
	if t.cs != nil {
		t.cs.Out(High)
	}
	if err != nil {
		t.err = err
	}
}

func (t *transport) write(addr byte, v uint16) {
	t.w = [3]byte{addr & addrMask, byte(v >> 8), byte(v)}
	t.frame(t.w[:], t.r[:])
}

func (t *transport) read(addr byte) uint16 {
	t.w = [3]byte{addr&addrMask | readBit, 0, 0}
	t.r = [3]byte{}
	t.frame(t.w[:], t.r[:])
	return uint16(t.r[1])<<8 | uint16(t.r[2])
}

// modify is a read-modify-write keeping the bits in keep.
func (t *transport) modify(addr byte, keep, set uint16) uint16 {
	v := t.read(addr)&keep | set
	t.write(addr, v)
	return v
}

func (t *transport) takeErr() error {
	err := t.err
	t.err = nil
	return err
}

// WriteRegister writes a 16-bit value to a transceiver register.
// This method is concurrent safe.
func (d *Device) WriteRegister(addr byte, v uint16) error {
	d.irq.disable()
	defer d.irq.restore()
	d.bus.write(addr, v)
	return d.busErr()
}

// ReadRegister returns the value of a transceiver register.
// This method is concurrent safe.
func (d *Device) ReadRegister(addr byte) (uint16, error) {
	d.irq.disable()
	defer d.irq.restore()
	v := d.bus.read(addr)
	return v, d.busErr()
}

// busErr converts a pending transport failure. Call with the irq source
// disabled.
func (d *Device) busErr() error {
	if err := d.bus.takeErr(); err != nil {
		return fault(err)
	}
	return nil
}
