package mc13192_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michcald/mc13192"
	"github.com/michcald/mc13192/sim"
)

const (
	waitFor = time.Second
	tick    = time.Millisecond
	quiet   = 50 * time.Millisecond
)

func newSimDevice(t *testing.T, rc mc13192.RadioConfig) (*mc13192.Device, *sim.Chip) {
	t.Helper()
	chip := sim.New()
	dev, err := mc13192.NewWithHardware(chip.Config(rc), chip)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })
	return dev, chip
}

func receiveInto(dev *mc13192.Device) chan *mc13192.RxPacket {
	got := make(chan *mc13192.RxPacket, 4)
	dev.OnReceive(func(p *mc13192.RxPacket) { got <- p })
	return got
}

func waitPacket(t *testing.T, got chan *mc13192.RxPacket) *mc13192.RxPacket {
	t.Helper()
	select {
	case p := <-got:
		return p
	case <-time.After(waitFor):
		t.Fatal("no OnReceive callback")
		return nil
	}
}

func requireNoPacket(t *testing.T, got chan *mc13192.RxPacket) {
	t.Helper()
	select {
	case p := <-got:
		t.Fatalf("unexpected OnReceive callback with status %s", p.Status)
	case <-time.After(quiet):
	}
}

func TestNewConfiguresIdle(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{Channel: 11})

	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
	assert.Equal(t, 11, chip.Channel())
	assert.Equal(t, uint16(0x8351), chip.Peek(0x05), "IRQ mask from init table")
	assert.NotZero(t, chip.Peek(0x1B)&0x8000, "timer 1 comparator disabled")
	assert.Equal(t, uint16(0xBC), chip.Peek(0x12)&0xFF, "nominal power")
	assert.Equal(t, uint16(3), chip.Peek(0x09)&0x07, "default prescale")

	v, err := dev.Version()
	require.NoError(t, err)
	assert.Equal(t, uint8(3), v)
	assert.Contains(t, dev.String(), "Mode=idle")
}

func TestTransmit(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})

	require.NoError(t, dev.Transmit(context.Background(), []byte("hello")))

	assert.Equal(t, [][]byte{[]byte("hello")}, chip.TxFrames())
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
	assert.Equal(t, mc13192.Low, chip.PA.Read(), "PA off once idle")
	assert.Equal(t, uint32(1), dev.Stats().TxDone)
}

func TestTransmitGatesFrontEnd(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.Hold(true)

	errc := make(chan error, 1)
	go func() { errc <- dev.Transmit(context.Background(), []byte{1, 2, 3}) }()

	require.Eventually(t, func() bool { return dev.Mode() == mc13192.ModeTx }, waitFor, tick)
	assert.Equal(t, mc13192.High, chip.PA.Read())
	assert.Equal(t, mc13192.Low, chip.LNA.Read())
	assert.Equal(t, mc13192.High, chip.AntTx.Read())
	assert.Equal(t, mc13192.Low, chip.AntRx.Read())

	chip.Finish()
	require.NoError(t, <-errc)
	assert.Equal(t, [][]byte{{1, 2, 3}}, chip.TxFrames())
}

func TestTransmitBusyIssuesNoTransfers(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(8), 0))

	before := len(chip.Transfers())
	err := dev.Transmit(context.Background(), []byte{1})

	assert.ErrorIs(t, err, mc13192.ErrBusy)
	assert.Len(t, chip.Transfers(), before)
	assert.Equal(t, mc13192.ModeRx, dev.Mode())
}

func TestTransmitLockLost(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.Hold(true)

	errc := make(chan error, 1)
	go func() { errc <- dev.Transmit(context.Background(), []byte{1}) }()
	require.Eventually(t, func() bool { return dev.Mode() == mc13192.ModeTx }, waitFor, tick)

	chip.LoseLock()

	assert.ErrorIs(t, <-errc, mc13192.ErrLockLost)
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
	assert.Empty(t, chip.TxFrames())
	assert.Equal(t, uint32(1), dev.Stats().LockLost)
}

func TestTransmitCancelled(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.Hold(true)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := dev.Transmit(ctx, []byte{1})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
}

func TestTransmitDeviceReset(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.Hold(true)

	errc := make(chan error, 1)
	go func() { errc <- dev.Transmit(context.Background(), []byte{1}) }()
	require.Eventually(t, func() bool { return dev.Mode() == mc13192.ModeTx }, waitFor, tick)

	chip.Glitch()

	assert.ErrorIs(t, <-errc, mc13192.ErrDeviceReset)
	assert.Equal(t, mc13192.ModeDeviceReset, dev.Mode())
	assert.Empty(t, chip.TxFrames())
}

func TestTransmitAbortedBySetIdle(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.Hold(true)

	errc := make(chan error, 1)
	go func() { errc <- dev.Transmit(context.Background(), []byte{1}) }()
	require.Eventually(t, func() bool { return dev.Mode() == mc13192.ModeTx }, waitFor, tick)

	require.NoError(t, dev.SetIdle())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, mc13192.ErrAborted)
	case <-time.After(waitFor):
		t.Fatal("Transmit still blocked after SetIdle")
	}
	assert.Empty(t, chip.TxFrames())
}

func TestMeasureEnergyDeviceReset(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.Hold(true)

	type result struct {
		e   uint8
		err error
	}
	resc := make(chan result, 1)
	go func() {
		e, err := dev.MeasureEnergy(context.Background())
		resc <- result{e, err}
	}()
	require.Eventually(t, func() bool { return dev.Mode() == mc13192.ModeEnergyDetect }, waitFor, tick)

	chip.Glitch()

	res := <-resc
	assert.ErrorIs(t, res.err, mc13192.ErrDeviceReset)
	assert.Zero(t, res.e)
	assert.Equal(t, mc13192.ModeDeviceReset, dev.Mode())
}

func TestReceive(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.SetEnergy(0x50, false)
	got := receiveInto(dev)
	p := mc13192.NewRxPacket(16)

	require.NoError(t, dev.EnableReceive(p, 0))
	assert.Equal(t, mc13192.ModeRx, dev.Mode())
	assert.Equal(t, mc13192.High, chip.LNA.Read())

	require.True(t, chip.Deliver([]byte{1, 2, 3}, true))

	rx := waitPacket(t, got)
	assert.Same(t, p, rx)
	assert.Equal(t, mc13192.RxSuccess, rx.Status)
	assert.Equal(t, []byte{1, 2, 3}, rx.Payload())
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())

	lq, err := dev.LinkQuality()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x50), lq)
}

func TestReceiveTimeout(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 1000))
	assert.Equal(t, mc13192.ModeRxWithTimeout, dev.Mode())

	chip.Advance(999)
	requireNoPacket(t, got)

	chip.Advance(1)
	rx := waitPacket(t, got)
	assert.Equal(t, mc13192.RxTimeout, rx.Status)
	assert.Nil(t, rx.Payload())
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
	assert.NotZero(t, chip.Peek(0x1B)&0x8000, "timer 1 comparator disabled")
	assert.Equal(t, uint32(1), dev.Stats().Timeouts)
}

func TestReceiveBeforeTimeout(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 1000))
	chip.Advance(500)
	require.True(t, chip.Deliver([]byte("ok"), true))

	rx := waitPacket(t, got)
	assert.Equal(t, mc13192.RxSuccess, rx.Status)
	assert.NotZero(t, chip.Peek(0x1B)&0x8000, "timer 1 comparator disabled")

	chip.Advance(2000)
	requireNoPacket(t, got)
	assert.Zero(t, dev.Stats().Timeouts)
}

func TestReceiveShortFrameRearms(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 5000))
	require.True(t, chip.DeliverRaw(2))

	require.Eventually(t, func() bool { return dev.Stats().ShortFrames == 1 }, waitFor, tick)
	require.Eventually(t, chip.Receiving, waitFor, tick)
	assert.Equal(t, mc13192.ModeRxWithTimeout, dev.Mode())
	requireNoPacket(t, got)

	// The timeout armed before the bad frame still applies.
	chip.Advance(5000)
	assert.Equal(t, mc13192.RxTimeout, waitPacket(t, got).Status)
}

func TestReceiveCRCFailureRearms(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 0))
	require.True(t, chip.Deliver([]byte{9, 9, 9}, false))

	require.Eventually(t, func() bool { return dev.Stats().CRCRetries == 1 }, waitFor, tick)
	require.Eventually(t, chip.Receiving, waitFor, tick)
	requireNoPacket(t, got)

	require.True(t, chip.Deliver([]byte{4, 5}, true))
	assert.Equal(t, []byte{4, 5}, waitPacket(t, got).Payload())
}

func TestReceiveOverflow(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)
	p := mc13192.NewRxPacket(4)

	require.NoError(t, dev.EnableReceive(p, 0))
	require.True(t, chip.Deliver([]byte("too long for it"), true))

	rx := waitPacket(t, got)
	assert.Equal(t, mc13192.RxOverflow, rx.Status)
	assert.Equal(t, len("too long for it"), rx.Length)
	assert.Nil(t, rx.Payload())
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
}

func TestReceiveLockLostRestartsReceiver(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 0))
	chip.LoseLock()

	require.Eventually(t, func() bool { return dev.Stats().LockLost == 1 }, waitFor, tick)
	require.Eventually(t, chip.Receiving, waitFor, tick)
	assert.Equal(t, mc13192.ModeRx, dev.Mode())

	require.True(t, chip.Deliver([]byte{7}, true))
	assert.Equal(t, []byte{7}, waitPacket(t, got).Payload())
}

func TestReceiveRearmFromCallback(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	p := mc13192.NewRxPacket(16)
	frames := make(chan []byte, 4)
	dev.OnReceive(func(rx *mc13192.RxPacket) {
		frames <- append([]byte(nil), rx.Payload()...)
		assert.NoError(t, dev.EnableReceive(rx, 0))
	})

	require.NoError(t, dev.EnableReceive(p, 0))
	for i := byte(1); i <= 3; i++ {
		require.Eventually(t, chip.Receiving, waitFor, tick)
		require.True(t, chip.Deliver([]byte{i}, true))
		select {
		case f := <-frames:
			assert.Equal(t, []byte{i}, f)
		case <-time.After(waitFor):
			t.Fatal("no frame")
		}
	}
	require.Eventually(t, func() bool { return dev.Mode() == mc13192.ModeRx }, waitFor, tick)
}

func TestDisableReceive(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 100))
	require.NoError(t, dev.DisableReceive())

	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
	assert.False(t, chip.Receiving())
	chip.Advance(200)
	requireNoPacket(t, got)
}

func TestEnableReceiveBusy(t *testing.T) {
	dev, _ := newSimDevice(t, mc13192.RadioConfig{})

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 0))
	assert.ErrorIs(t, dev.EnableReceive(mc13192.NewRxPacket(16), 0), mc13192.ErrBusy)

	require.NoError(t, dev.SetIdle())
	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 0))
}

func TestSetIdleDisarmsTimer1(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 1000))
	require.Zero(t, chip.Peek(0x1B)&0x8000, "comparator armed")

	require.NoError(t, dev.SetIdle())
	assert.NotZero(t, chip.Peek(0x1B)&0x8000, "comparator disabled")

	got := receiveInto(dev)
	chip.Advance(2000)
	requireNoPacket(t, got)
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
}

func TestInterestMaskIgnoresReceive(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)
	dev.SetInterestMask(mc13192.StatusAll &^ mc13192.StatusRx)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(16), 0))
	require.True(t, chip.Deliver([]byte{1}, true))

	require.Eventually(t, func() bool { return dev.Stats().Spurious >= 1 }, waitFor, tick)
	requireNoPacket(t, got)
	assert.Equal(t, mc13192.ModeRx, dev.Mode())
}

func TestDeviceReset(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{Channel: 5})
	resets := make(chan struct{}, 1)
	dev.OnReset(func() { resets <- struct{}{} })

	chip.Glitch()

	select {
	case <-resets:
	case <-time.After(waitFor):
		t.Fatal("no OnReset callback")
	}
	assert.Equal(t, mc13192.ModeDeviceReset, dev.Mode())
	assert.ErrorIs(t, dev.Transmit(context.Background(), []byte{1}), mc13192.ErrBusy)

	require.NoError(t, dev.Configure())
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
	assert.Equal(t, 5, chip.Channel())
	assert.Equal(t, uint32(1), dev.Stats().DeviceResets)
}

func TestSoftReset(t *testing.T) {
	dev, _ := newSimDevice(t, mc13192.RadioConfig{})
	resets := make(chan struct{}, 1)
	dev.OnReset(func() { resets <- struct{}{} })

	require.NoError(t, dev.SoftReset())

	select {
	case <-resets:
	case <-time.After(waitFor):
		t.Fatal("no OnReset callback")
	}
	require.NoError(t, dev.Configure())
}

func TestHardReset(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{Channel: 2})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, dev.Reset(ctx))
	assert.Equal(t, mc13192.ModeConfigPending, dev.Mode())
	assert.Equal(t, -1, chip.Channel(), "registers back to power-on values")

	require.NoError(t, dev.Configure())
	assert.Equal(t, 2, chip.Channel())
}

func TestDozeAndWake(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})

	require.NoError(t, dev.Doze(true))
	assert.Equal(t, mc13192.ModeDoze, dev.Mode())
	assert.True(t, chip.Asleep())
	assert.Equal(t, uint16(0x0201), chip.Peek(0x07)&0x0203)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, dev.Wake(ctx))

	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
	assert.False(t, chip.Asleep())
	assert.Zero(t, chip.Peek(0x07)&0x0003)
	assert.ErrorIs(t, dev.Wake(ctx), mc13192.ErrNotAsleep)
}

func TestHibernateAndWake(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})

	require.NoError(t, dev.Hibernate())
	assert.Equal(t, uint16(0x0002), chip.Peek(0x07)&0x0003)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, dev.Wake(ctx))
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())

	require.NoError(t, dev.Transmit(ctx, []byte{1}))
}

func TestWakeIntoDeviceReset(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{Channel: 4})
	require.NoError(t, dev.Hibernate())
	chip.ResetOnWake()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, dev.Wake(ctx), mc13192.ErrDeviceReset)
	assert.Equal(t, mc13192.ModeConfigPending, dev.Mode())

	require.NoError(t, dev.Configure())
	assert.Equal(t, 4, chip.Channel())
}

func TestWakeIntoDeviceResetReconfiguredByCallback(t *testing.T) {
	for i := 0; i < 20; i++ {
		dev, chip := newSimDevice(t, mc13192.RadioConfig{Channel: 9})
		configured := make(chan error, 1)
		dev.OnReset(func() { configured <- dev.Configure() })
		require.NoError(t, dev.Doze(false))
		chip.ResetOnWake()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := dev.Wake(ctx)
		cancel()
		require.ErrorIs(t, err, mc13192.ErrDeviceReset, "run %d", i)

		select {
		case err := <-configured:
			require.NoError(t, err, "run %d", i)
		case <-time.After(waitFor):
			t.Fatal("no OnReset callback")
		}
		assert.Equal(t, mc13192.ModeIdle, dev.Mode(), "run %d", i)
		assert.Equal(t, 9, chip.Channel(), "run %d", i)
	}
}

func TestMeasureEnergy(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	chip.SetEnergy(0x64, true)

	e, err := dev.MeasureEnergy(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint8(0x64), e)
	assert.Equal(t, uint16(0x0020), chip.Peek(0x06)&0x0030, "energy detect CCA type")
	assert.Equal(t, mc13192.ModeIdle, dev.Mode())
}

func TestAssessChannel(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})

	chip.SetEnergy(0x20, true)
	clear, err := dev.AssessChannel(context.Background())
	require.NoError(t, err)
	assert.False(t, clear)

	chip.SetEnergy(0x20, false)
	clear, err = dev.AssessChannel(context.Background())
	require.NoError(t, err)
	assert.True(t, clear)
}

func TestSetTime(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})

	require.NoError(t, dev.SetTime(0x123456))
	assert.Equal(t, uint32(0x123456), chip.Now())

	chip.Advance(0x10)
	now, err := dev.Time()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x123466), now)

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(4), 10))
	assert.ErrorIs(t, dev.SetTime(0), mc13192.ErrBusy)
}

func TestReceiveTimeoutAcrossWrap(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	got := receiveInto(dev)
	require.NoError(t, dev.SetTime(0xFFFFF0))

	require.NoError(t, dev.EnableReceive(mc13192.NewRxPacket(4), 0x20))
	chip.Advance(0x1F)
	requireNoPacket(t, got)
	chip.Advance(1)

	assert.Equal(t, mc13192.RxTimeout, waitPacket(t, got).Status)
}

func TestBusFaultReported(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{})
	cause := errors.New("wire cut")

	chip.FailBus(cause)
	err := dev.SetChannel(4)
	assert.ErrorIs(t, err, mc13192.ErrFault)
	assert.ErrorIs(t, err, cause)

	err = dev.EnableReceive(mc13192.NewRxPacket(4), 0)
	assert.ErrorIs(t, err, mc13192.ErrFault)
	assert.Equal(t, mc13192.ModeIdle, dev.Mode(), "failed request leaves the radio idle")

	chip.FailBus(nil)
	require.NoError(t, dev.SetChannel(4))
	assert.Equal(t, 4, chip.Channel())
}

func TestSetChannelFallback(t *testing.T) {
	dev, chip := newSimDevice(t, mc13192.RadioConfig{Channel: 1})

	assert.ErrorIs(t, dev.SetChannel(16), mc13192.ErrInvalidChannel)
	assert.Equal(t, 8, chip.Channel())
}

func TestAirLink(t *testing.T) {
	air := sim.NewAir()
	tx, txChip := newSimDevice(t, mc13192.RadioConfig{Channel: 7})
	rx, rxChip := newSimDevice(t, mc13192.RadioConfig{Channel: 7})
	other, otherChip := newSimDevice(t, mc13192.RadioConfig{Channel: 9})
	air.Join(txChip)
	air.Join(rxChip)
	air.Join(otherChip)
	got := receiveInto(rx)
	gotOther := receiveInto(other)

	require.NoError(t, rx.EnableReceive(mc13192.NewRxPacket(32), 0))
	require.NoError(t, other.EnableReceive(mc13192.NewRxPacket(32), 0))
	require.NoError(t, tx.Transmit(context.Background(), []byte("step")))

	assert.Equal(t, []byte("step"), waitPacket(t, got).Payload())
	requireNoPacket(t, gotOther)
	assert.Equal(t, mc13192.ModeRx, other.Mode())
}
