package mc13192

// MaxPacketSize is the largest payload the 7-bit packet length field can
// describe once the two hardware CRC bytes are accounted for.
const MaxPacketSize = pktLenMask - crcLen

const crcLen = 2

// burstLen fits the address byte, the two garbage bytes of an RX read and
// every word of a maximum length frame.
const burstLen = 3 + pktLenMask + 1

// RxStatus is the outcome of one receive request.
type RxStatus uint8

const (
	RxPending RxStatus = iota
	RxSuccess
	RxOverflow
	RxTimeout
)

func (s RxStatus) String() string {
	switch s {
	case RxPending:
		return "pending"
	case RxSuccess:
		return "success"
	case RxOverflow:
		return "overflow"
	case RxTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// RxPacket describes a caller-owned receive buffer. The capacity is len(Data).
// The driver fills it from the event dispatcher while a receive is
// outstanding; the caller must not touch it until OnReceive hands it back.
type RxPacket struct {
	Data   []byte
	Length int // payload bytes received; for RxOverflow, the size of the dropped frame
	Status RxStatus
}

// NewRxPacket allocates a packet with the given capacity, clamped to
// MaxPacketSize.
func NewRxPacket(capacity int) *RxPacket {
	if capacity > MaxPacketSize {
		capacity = MaxPacketSize
	}
	if capacity < 1 {
		capacity = 1
	}
	return &RxPacket{Data: make([]byte, capacity)}
}

// Payload returns the received bytes, or nil unless Status is RxSuccess.
func (p *RxPacket) Payload() []byte {
	if p.Status != RxSuccess {
		return nil
	}
	return p.Data[:p.Length]
}

// writeTxPacket loads TX packet RAM. The length register gets the payload
// length plus the CRC the hardware appends. Bytes go out in word order, the
// odd byte of each pair first; an odd trailing byte is padded with zero.
func (t *transport) writeTxPacket(data []byte) {
	t.modify(regTxPktLen, ^uint16(pktLenMask), uint16(len(data)+crcLen))

	words := (len(data) + 1) >> 1
	w := t.bw[:1+2*words]
	w[0] = regTxPacket
	for i := 0; i < words; i++ {
		b := 2 * i
		var hi byte
		if b+1 < len(data) {
			hi = data[b+1]
		}
		w[1+b] = hi
		w[2+b] = data[b]
	}
	t.frame(w, t.br[:len(w)])
}

// readRxPacket copies the last received frame into p. Frames longer than the
// packet capacity mark it RxOverflow, set Length to the frame's payload size
// and leave Data untouched.
func (t *transport) readRxPacket(p *RxPacket) {
	raw := int(t.read(regRxPktLen) & pktLenMask)
	n := 0
	if raw > crcLen {
		n = raw - crcLen
	}
	if n > len(p.Data) {
		p.Length = n
		p.Status = RxOverflow
		return
	}
	if n == 0 {
		return
	}

	// Address byte, then one garbage word, then payload words.
	words := (raw - 1) >> 1
	w := t.bw[:3+2*words]
	for i := range w {
		w[i] = 0
	}
	w[0] = regRxPacket | readBit
	r := t.br[:len(w)]
	t.frame(w, r)
	if t.err != nil {
		return
	}
	for i := 0; i < words; i++ {
		b := 2 * i
		if b+3 != raw {
			p.Data[b+1] = r[3+b]
		}
		p.Data[b] = r[4+b]
	}
	p.Length = n
	p.Status = RxSuccess
}
