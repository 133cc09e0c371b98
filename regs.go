package mc13192

// Register addresses. The bus carries 6 bits of address; bit 7 of the
// address byte selects a read.
const (
	regReset     = 0x00
	regRxPacket  = 0x01 // RX packet RAM
	regTxPacket  = 0x02 // TX packet RAM
	regTxPktLen  = 0x03
	regFEGain    = 0x04
	regIRQMask   = 0x05
	regMode      = 0x06
	regMode2     = 0x07
	regInjection = 0x08
	regPrescale  = 0x09
	regClocks    = 0x0A // CLKO rate and crystal trim
	regGPIOData  = 0x0C
	regLO1IDiv   = 0x0F
	regLO1Num    = 0x10
	regPAAdjust  = 0x12
	regT1Hi      = 0x1B
	regT1Lo      = 0x1C
	regT2Hi      = 0x1D
	regT3Hi      = 0x1F
	regT4Hi      = 0x21
	regStatus    = 0x24
	regResetInd  = 0x25
	regTimeHi    = 0x26
	regTimeLo    = 0x27
	regVersion   = 0x2C
	regRxPktLen  = 0x2D // also carries the CCA/energy result in the high byte
)

const (
	addrMask = 0x3F
	readBit  = 0x80
)

// Mode register (0x06) fields.
const (
	seqMask      = 0x0007
	seqIdle      = 0x0000
	seqCCA       = 0x0001
	seqRx        = 0x0002
	seqTx        = 0x0003
	ccaTypeMask  = 0x0030
	ccaTypeCCA   = 0x0010
	ccaTypeED    = 0x0020
	timerTrigger = 0x0080
)

// Mode2 register (0x07) fields.
const (
	mode2Doze      = 0x0001
	mode2Hibernate = 0x0002
	mode2PowerMask = 0x0003
	mode2ClkoDoze  = 0x0200
	mode2TimerLoad = 0x8000
)

const (
	timerDisable  = 0x8000 // TCn_HI: comparator disabled
	timestampMask = 0x00FF // TIMESTAMP_HI carries bits 23:16
	timeMax       = 1<<24 - 1
	pktLenMask    = 0x007F
	resetIndBit   = 0x0080
	versionMask   = 0x1C00
)

// Status is the content of the transceiver status register (0x24).
type Status uint16

const (
	StatusCRCValid  Status = 0x0001
	StatusCCABusy   Status = 0x0010
	StatusCCA       Status = 0x0020
	StatusTx        Status = 0x0040
	StatusRx        Status = 0x0080
	StatusTimer1    Status = 0x0100
	StatusDoze      Status = 0x0200
	StatusAttention Status = 0x0400
	StatusRAMError  Status = 0x4000
	StatusLOLock    Status = 0x8000
)

// StatusAll is every condition the dispatcher knows how to service.
const StatusAll = StatusCRCValid | StatusCCABusy | StatusCCA | StatusTx | StatusRx |
	StatusTimer1 | StatusDoze | StatusAttention | StatusRAMError | StatusLOLock

// initTable is written by Configure, in order. Values are for v2.x silicon.
var initTable = []struct {
	addr byte
	val  uint16
}{
	{regT1Hi, timerDisable},
	{regT2Hi, timerDisable},
	{regT3Hi, timerDisable},
	{regT4Hi, timerDisable},
	{regMode2, 0x0E00},     // CLKO kept running in doze
	{regGPIOData, 0x0300},  // IRQ pull-up off
	{regFEGain, 0xA08D},    // front-end calibration
	{regInjection, 0xFFF7}, // preferred injection
	{regIRQMask, 0x8351},   // lock, TC1, doze, ATTN, CRC, tx/rx done
	{regMode, 0x4720},      // CCA, TX, RX, energy detect sequencing
}
