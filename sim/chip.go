// Package sim models an MC13192 closely enough to run the driver without
// hardware: the three byte register protocol, packet RAM bursts, the
// read-to-clear status register and IRQ line, the timestamp counter with the
// TC1 comparator, reset and attention, and the sequences started by RTXEN.
package sim

import (
	"errors"
	"sync"

	"github.com/michcald/mc13192"
)

const (
	regReset    = 0x00
	regRxPacket = 0x01
	regTxPacket = 0x02
	regTxPktLen = 0x03
	regMode     = 0x06
	regMode2    = 0x07
	regLO1IDiv  = 0x0F
	regLO1Num   = 0x10
	regT1Hi     = 0x1B
	regT1Lo     = 0x1C
	regStatus   = 0x24
	regResetInd = 0x25
	regTimeHi   = 0x26
	regTimeLo   = 0x27
	regVersion  = 0x2C
	regRxPktLen = 0x2D

	timeMask  = 1<<24 - 1
	ramSize   = 128
	versionID = 0x2C00 // silicon revision 3 plus an unrelated bit

	// timeHiJunk fills the unused upper byte of TIMESTAMP_HI.
	timeHiJunk = 0x5A00
)

var (
	ErrNotSelected = errors.New("sim: transfer without chip select")
	errShort       = errors.New("sim: transfer shorter than three bytes")
)

// Transfer is one chip select frame as seen by the chip.
type Transfer struct {
	Addr byte
	Read bool
	Len  int
}

// Chip is a simulated transceiver. It implements mc13192.SPI and exposes the
// control lines the driver needs.
type Chip struct {
	mu sync.Mutex

	Run, Attn, Reset, CS  *Line
	AntTx, AntRx, PA, LNA *Line
	IRQ                   *irqLine

	regs         [0x40]uint16
	status       mc13192.Status
	now          uint32
	txRAM        [ramSize]byte
	rxRAM        [ramSize]byte
	inReset      bool
	resetPending bool
	asleep       bool
	wakeReset    bool
	receiving    bool
	hold         bool
	pending      uint16
	energy       byte
	busy         bool
	busErr       error

	transfers []Transfer
	txFrames  [][]byte
	outbox    [][]byte
	air       *Air
}

// New returns a powered chip that has not yet been reset by a host.
func New() *Chip {
	c := &Chip{resetPending: true}
	c.Run = &Line{chip: c, onChange: c.runChanged}
	c.Attn = &Line{chip: c, level: mc13192.High, onChange: c.attnChanged}
	c.Reset = &Line{chip: c, level: mc13192.High, onChange: c.resetChanged}
	c.CS = &Line{chip: c, level: mc13192.High}
	c.AntTx = &Line{chip: c}
	c.AntRx = &Line{chip: c}
	c.PA = &Line{chip: c}
	c.LNA = &Line{chip: c}
	c.IRQ = &irqLine{chip: c}
	c.regs[regVersion] = versionID
	return c
}

// Config wires every line of the chip into a driver configuration.
func (c *Chip) Config(rc mc13192.RadioConfig) mc13192.HardwareConfig {
	return mc13192.HardwareConfig{
		RadioConfig: rc,
		Run:         c.Run,
		Attn:        c.Attn,
		Reset:       c.Reset,
		IRQ:         c.IRQ,
		CS:          c.CS,
		AntTx:       c.AntTx,
		AntRx:       c.AntRx,
		PA:          c.PA,
		LNA:         c.LNA,
	}
}

// locked runs fn under the chip lock, then updates the IRQ line and hands
// transmitted frames to the air once the lock is released.
func (c *Chip) locked(fn func()) {
	c.mu.Lock()
	fn()
	c.IRQ.set(c.status != 0)
	out := c.outbox
	c.outbox = nil
	air := c.air
	c.mu.Unlock()

	if air != nil {
		for _, f := range out {
			air.send(c, f)
		}
	}
}

// Tx decodes one chip select frame.
func (c *Chip) Tx(w, r []byte) error {
	if len(w) < 3 || len(r) < len(w) {
		return errShort
	}
	var err error
	c.locked(func() {
		if c.busErr != nil {
			err = c.busErr
			return
		}
		if c.CS.driven && c.CS.level != mc13192.Low {
			err = ErrNotSelected
			return
		}
		err = c.transfer(w, r)
	})
	return err
}

func (c *Chip) transfer(w, r []byte) error {
	addr := w[0] & 0x3F
	read := w[0]&0x80 != 0
	c.transfers = append(c.transfers, Transfer{Addr: addr, Read: read, Len: len(w)})
	if c.inReset {
		return nil
	}

	switch {
	case addr == regTxPacket && !read:
		for i := 0; 2+2*i < len(w) && 2*i+1 < ramSize; i++ {
			c.txRAM[2*i+1] = w[1+2*i]
			c.txRAM[2*i] = w[2+2*i]
		}
	case addr == regRxPacket && read:
		r[1], r[2] = 0xEE, 0xEE
		for i := 0; 4+2*i < len(w) && 2*i+1 < ramSize; i++ {
			r[3+2*i] = c.rxRAM[2*i+1]
			r[4+2*i] = c.rxRAM[2*i]
		}
	case read:
		v := c.readReg(addr)
		r[1], r[2] = byte(v>>8), byte(v)
	default:
		c.writeReg(addr, uint16(w[1])<<8|uint16(w[2]))
	}
	return nil
}

func (c *Chip) readReg(addr byte) uint16 {
	switch addr {
	case regStatus:
		v := uint16(c.status)
		c.status = 0
		return v
	case regResetInd:
		if c.resetPending {
			c.resetPending = false
			return 0
		}
		return 0x0080
	case regTimeHi:
		return timeHiJunk | uint16(c.now>>16)&0x00FF
	case regTimeLo:
		return uint16(c.now)
	default:
		return c.regs[addr]
	}
}

func (c *Chip) writeReg(addr byte, v uint16) {
	switch addr {
	case regReset:
		c.restart()
		c.status = mc13192.StatusAttention
		return
	case regMode2:
		if v&0x8000 != 0 && c.regs[regMode2]&0x8000 == 0 {
			c.now = (uint32(c.regs[regT1Hi]&0x00FF)<<16 | uint32(c.regs[regT1Lo])) & timeMask
		}
		if v&0x0003 != 0 {
			c.asleep = true
			c.abort()
		}
	}
	c.regs[addr] = v
}

// restart returns the chip to its power-on state.
func (c *Chip) restart() {
	c.regs = [0x40]uint16{}
	c.regs[regVersion] = versionID
	c.status = 0
	c.now = 0
	c.asleep = false
	c.resetPending = true
	c.abort()
}

func (c *Chip) abort() {
	c.receiving = false
	c.pending = 0
}

// --- control lines, called under the chip lock ---

func (c *Chip) resetChanged(l mc13192.Level) {
	if l == mc13192.Low {
		c.inReset = true
		c.restart()
		return
	}
	c.inReset = false
	c.status |= mc13192.StatusAttention
}

func (c *Chip) attnChanged(l mc13192.Level) {
	if l == mc13192.Low && c.asleep && !c.inReset {
		if c.wakeReset {
			c.wakeReset = false
			c.restart()
			c.status = mc13192.StatusAttention
			return
		}
		c.asleep = false
		c.status |= mc13192.StatusAttention
	}
}

func (c *Chip) runChanged(l mc13192.Level) {
	if l == mc13192.Low {
		c.abort()
		return
	}
	if c.asleep || c.inReset {
		return
	}
	switch seq := c.regs[regMode] & 0x0007; seq {
	case 0x0001, 0x0003:
		c.pending = seq
		if !c.hold {
			c.complete()
		}
	case 0x0002:
		c.receiving = true
	}
}

// complete finishes a pending CCA or TX sequence.
func (c *Chip) complete() {
	switch c.pending {
	case 0x0001:
		c.regs[regRxPktLen] = uint16(c.energy)<<8 | c.regs[regRxPktLen]&0x00FF
		c.status |= mc13192.StatusCCA
		if c.busy && c.regs[regMode]&0x0030 == 0x0010 {
			c.status |= mc13192.StatusCCABusy
		}
	case 0x0003:
		n := int(c.regs[regTxPktLen]&0x007F) - 2
		if n < 0 {
			n = 0
		}
		frame := append([]byte(nil), c.txRAM[:n]...)
		c.txFrames = append(c.txFrames, frame)
		c.outbox = append(c.outbox, frame)
		c.status |= mc13192.StatusTx
	}
	c.pending = 0
}

// --- hooks ---

// Deliver lands a frame in RX packet RAM as if it had been received, followed
// by two CRC bytes. It reports false when the receiver is not running.
func (c *Chip) Deliver(frame []byte, crcOK bool) bool {
	ok := false
	c.locked(func() {
		if !c.receiving || len(frame)+2 > 0x7F {
			return
		}
		n := copy(c.rxRAM[:], frame)
		c.rxRAM[n], c.rxRAM[n+1] = 0xC3, 0x3C
		ok = c.landed(byte(n+2), crcOK)
	})
	return ok
}

// DeliverRaw completes a reception with length field raw and a good CRC,
// leaving packet RAM as it is.
func (c *Chip) DeliverRaw(raw byte) bool {
	ok := false
	c.locked(func() {
		if !c.receiving {
			return
		}
		ok = c.landed(raw&0x7F, true)
	})
	return ok
}

func (c *Chip) landed(raw byte, crcOK bool) bool {
	c.regs[regRxPktLen] = uint16(c.energy)<<8 | uint16(raw)
	c.receiving = false
	c.status |= mc13192.StatusRx
	if crcOK {
		c.status |= mc13192.StatusCRCValid
	}
	return true
}

// Advance moves the timestamp counter forward, firing TC1 if its compare
// value is passed.
func (c *Chip) Advance(ticks uint32) {
	c.locked(func() {
		old := c.now
		c.now = (c.now + ticks) & timeMask
		if c.regs[regT1Hi]&0x8000 != 0 {
			return
		}
		cmp := uint32(c.regs[regT1Hi]&0x00FF)<<16 | uint32(c.regs[regT1Lo])
		if d := (cmp - old) & timeMask; d != 0 && d <= ticks {
			c.status |= mc13192.StatusTimer1
		}
	})
}

// LoseLock reports an LO unlock and aborts the running sequence.
func (c *Chip) LoseLock() {
	c.locked(func() {
		c.abort()
		c.status |= mc13192.StatusLOLock
	})
}

// Glitch resets the chip on its own, as a brown-out would.
func (c *Chip) Glitch() {
	c.locked(func() {
		c.restart()
		c.status = mc13192.StatusAttention
	})
}

// ResetOnWake makes the chip come out of its next doze or hibernate with a
// reset instead of a plain attention.
func (c *Chip) ResetOnWake() {
	c.locked(func() { c.wakeReset = true })
}

// SetEnergy sets the energy reported by the next CCA and reception, and
// whether a clear channel assessment finds the channel busy.
func (c *Chip) SetEnergy(e byte, busy bool) {
	c.locked(func() {
		c.energy = e
		c.busy = busy
	})
}

// Hold keeps TX and CCA sequences running until Finish is called.
func (c *Chip) Hold(on bool) {
	c.locked(func() { c.hold = on })
}

// Finish completes a held sequence.
func (c *Chip) Finish() {
	c.locked(func() {
		if c.Run.level == mc13192.High {
			c.complete()
		}
	})
}

// FailBus makes every following transfer fail with err. Nil heals the bus.
func (c *Chip) FailBus(err error) {
	c.locked(func() { c.busErr = err })
}

// --- inspection ---

// Transfers returns the chip select frames seen so far.
func (c *Chip) Transfers() []Transfer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Transfer(nil), c.transfers...)
}

// TxFrames returns the frames sent so far.
func (c *Chip) TxFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.txFrames...)
}

// Peek returns a register without the side effects of a bus read.
func (c *Chip) Peek(addr byte) uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if addr == regStatus {
		return uint16(c.status)
	}
	return c.regs[addr&0x3F]
}

// Now returns the timestamp counter.
func (c *Chip) Now() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Receiving reports whether the receive sequence is running.
func (c *Chip) Receiving() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receiving
}

// Asleep reports whether the chip is in doze or hibernate.
func (c *Chip) Asleep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.asleep
}

// Channel returns the channel the synthesizer is tuned to, or -1.
func (c *Chip) Channel() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range mc13192.ChannelPlan {
		if c.regs[regLO1IDiv] == p[0] && c.regs[regLO1Num] == p[1] {
			return i
		}
	}
	return -1
}
