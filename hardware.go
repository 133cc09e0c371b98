package mc13192

// RadioConfig holds the radio settings applied by Configure.
type RadioConfig struct {
	// Channel is the logical channel, 0 to 15 (2.405 GHz + 5 MHz * Channel).
	// Defaults to 0.
	Channel byte
	// Power is the PA setting: 0 to 15, PowerMax or PowerMin.
	// Defaults to PowerNominal if not provided.
	Power byte
	// TimerPrescale selects the timestamp rate, 0 (2 MHz) to 7 (15.625 kHz).
	// Defaults to 3 (250 kHz) if not provided.
	TimerPrescale byte
	// ClockOutRate selects the CLKO frequency, 0 (16 MHz) to 7 (16.393 kHz).
	// Defaults to 0.
	ClockOutRate byte
	// FrontEndGain is the receive gain compensation, 128 is centre.
	// Zero leaves the calibration value from the init table.
	FrontEndGain byte
	// CrystalTrim adjusts the reference oscillator.
	// Zero leaves the power-on trim.
	CrystalTrim byte
}

// HardwareConfig wires the driver to the transceiver control lines.
// Optional lines that are nil are simply not driven; providing them is how
// antenna switch and amplifier gating are enabled for a board.
type HardwareConfig struct {
	RadioConfig
	// Run is the RTXEN line. High starts the programmed sequence.
	Run Pin
	// Attn is the attention line used to wake the chip. Active low.
	Attn Pin
	// Reset is the hard reset line. Low holds the chip in reset.
	Reset Pin
	// IRQ is the transceiver interrupt output. Active low.
	IRQ Pin
	// CS is the chip select line. Optional: leave nil when the SPI
	// connection frames transfers itself.
	CS Pin

	AntTx Pin // TX antenna switch, optional
	AntRx Pin // RX antenna switch, optional
	PA    Pin // power amplifier enable, optional
	LNA   Pin // low-noise amplifier enable, optional
}

// controlLines drives the non-bus lines.
type controlLines struct {
	run, attn, reset Pin
	antTx, antRx     Pin
	pa, lna          Pin
}

func set(p Pin, l Level) {
	if p != nil {
		p.Out(l)
	}
}

func (c *controlLines) setRun(on bool) { set(c.run, Level(on)) }

// pulseAttn wakes a dozing or hibernating chip.
func (c *controlLines) pulseAttn() {
	set(c.attn, Low)
	set(c.attn, High)
}

// gate applies the antenna and amplifier setting that goes with mode m.
func (c *controlLines) gate(m Mode) {
	switch m {
	case ModeIdle:
		set(c.lna, Low)
		set(c.pa, Low)
	case ModeRx, ModeRxWithTimeout:
		set(c.lna, High)
		set(c.pa, Low)
		set(c.antRx, High)
		set(c.antTx, Low)
	case ModeTx:
		set(c.pa, High)
		set(c.lna, Low)
		set(c.antRx, Low)
		set(c.antTx, High)
	}
}

// park puts every line in its power-on state: not selected, attention
// released, sequence stopped, reset held, amplifiers off, both antennas on.
func (c *controlLines) park(cs Pin) {
	set(cs, High)
	set(c.attn, High)
	set(c.run, Low)
	set(c.reset, Low)
	set(c.lna, Low)
	set(c.pa, Low)
	set(c.antRx, High)
	set(c.antTx, High)
}
