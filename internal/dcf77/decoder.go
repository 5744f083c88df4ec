package dcf77

// Decoder turns receiver edges into decoded DCF77 minutes.
//
// A Decoder is not safe for concurrent use. Feed it edges and ticks in strict
// time order from a single goroutine.
type Decoder struct {
	mode       Mode
	dt         DateTime
	spikeLimit uint32

	frame      Frame
	second     int
	prevSecond int // second before the last advance, streaming mode only

	firstMinute     bool
	newMinute       bool
	newSecond       bool
	beforeFirstEdge bool
	secondEdge      bool // last edge raised a new second
	lastSpike       bool
	t0              uint32

	frameComplete   bool
	bit0            Bit
	bit20           Bit
	callBit         Bit
	thirdParty      uint16
	thirdPartyOK    bool
	parity1         Parity
	parity2         Parity
	parity3         Parity
	leapSecondIsOne Bit
	fields          Fields

	lastAnomaly Anomaly
	stats       Stats
}

// NewDecoder creates a decoder that reports into the given calendar aggregate.
func NewDecoder(dt DateTime, mode Mode) *Decoder {
	return &Decoder{
		mode:            mode,
		dt:              dt,
		spikeLimit:      DefaultSpikeLimit,
		firstMinute:     true,
		beforeFirstEdge: true,
	}
}

// SetSpikeLimit changes the spike rejection threshold in microseconds.
func (d *Decoder) SetSpikeLimit(limit uint32) error {
	if limit >= ActiveLimit {
		return ErrSpikeLimit
	}
	d.spikeLimit = limit
	return nil
}

// SpikeLimit returns the spike rejection threshold in microseconds.
func (d *Decoder) SpikeLimit() uint32 {
	return d.spikeLimit
}

// Mode returns the drive discipline the decoder was created with.
func (d *Decoder) Mode() Mode {
	return d.mode
}

// DateTime returns the calendar aggregate.
func (d *Decoder) DateTime() DateTime {
	return d.dt
}

// Feed handles one edge and, when it starts a new second, runs a tick.
func (d *Decoder) Feed(e Edge, strict bool) Result {
	d.HandleEdge(e.Falling, e.Timestamp)
	return d.afterEdge(strict)
}

// FeedPair is Feed for log lines that carry both edge timestamps.
func (d *Decoder) FeedPair(falling bool, tPrev, tCurr uint32, strict bool) Result {
	d.HandleEdgePair(falling, tPrev, tCurr)
	return d.afterEdge(strict)
}

func (d *Decoder) afterEdge(strict bool) Result {
	res := Result{
		InSync:  true,
		Anomaly: d.lastAnomaly,
		Spike:   d.lastSpike,
	}
	if d.secondEdge {
		res.Ticked = true
		res.InSync = d.Tick(strict)
		res.Decoded = d.frameComplete
	}
	res.Second = d.second
	return res
}

// Tick runs the counter and the decoder once, in the order required by the
// decoder's mode. It returns false when the counter had to force-wrap.
func (d *Decoder) Tick(strict bool) bool {
	if d.mode == ModeStreaming {
		ok := d.AdvanceSecond()
		d.DecodeTime(strict)
		return ok
	}
	d.DecodeTime(strict)
	return d.AdvanceSecond()
}

// FirstMinute reports whether no minute has been fully decoded yet.
func (d *Decoder) FirstMinute() bool { return d.firstMinute }

// NewMinute reports whether a minute marker was seen.
func (d *Decoder) NewMinute() bool { return d.newMinute }

// NewSecond reports whether a new second has started.
func (d *Decoder) NewSecond() bool { return d.newSecond }

// ForceNewMinute pretends a minute marker was seen. Used by log replay.
func (d *Decoder) ForceNewMinute() { d.newMinute = true }

// Second returns the current second-of-minute index.
func (d *Decoder) Second() int { return d.second }

// FrameComplete reports whether the last DecodeTime found a complete frame.
func (d *Decoder) FrameComplete() bool { return d.frameComplete }

// CurrentBit returns the bit at the current second.
func (d *Decoder) CurrentBit() Bit { return d.frame.Get(d.second) }

// SetCurrentBit overwrites the bit at the current second and clears the new
// minute flag. Used by log replay.
func (d *Decoder) SetCurrentBit(b Bit) {
	d.frame.Set(d.second, b)
	d.newMinute = false
}

// Frame returns a copy of the frame buffer.
func (d *Decoder) Frame() Frame { return d.frame }

// Bit0 returns bit 0 of the last decoded frame, which must be 0.
func (d *Decoder) Bit0() Bit { return d.bit0 }

// Bit20 returns bit 20 of the last decoded frame, which must be 1.
func (d *Decoder) Bit20() Bit { return d.bit20 }

// CallBit returns the transmitter call bit of the last decoded frame.
func (d *Decoder) CallBit() Bit { return d.callBit }

// ThirdPartyBuffer returns the 14-bit third-party payload of the last decoded
// frame, least significant bit first.
func (d *Decoder) ThirdPartyBuffer() (uint16, bool) { return d.thirdParty, d.thirdPartyOK }

// Parity1 returns the minute parity result.
func (d *Decoder) Parity1() Parity { return d.parity1 }

// Parity2 returns the hour parity result.
func (d *Decoder) Parity2() Parity { return d.parity2 }

// Parity3 returns the date parity result.
func (d *Decoder) Parity3() Parity { return d.parity3 }

// LeapSecondIsOne reports whether the inserted leap second carried a 1, which
// the time code does not allow but has been seen on air. ok is false unless
// the last decoded minute processed a leap second.
func (d *Decoder) LeapSecondIsOne() (isOne, ok bool) {
	return d.leapSecondIsOne == One, d.leapSecondIsOne.Known()
}

// Fields returns the raw BCD fields of the last decoded frame, including
// those the calendar aggregate dropped.
func (d *Decoder) Fields() Fields { return d.fields }

// LastAnomaly returns the runaway condition raised by the most recent edge.
func (d *Decoder) LastAnomaly() Anomaly { return d.lastAnomaly }

// Stats returns cumulative counters.
func (d *Decoder) Stats() Stats { return d.stats }

// Snapshot returns a copy of the decoder diagnostics.
func (d *Decoder) Snapshot() Snapshot {
	return Snapshot{
		Second:          d.second,
		FirstMinute:     d.firstMinute,
		NewMinute:       d.newMinute,
		NewSecond:       d.newSecond,
		FrameComplete:   d.frameComplete,
		Bit0:            d.bit0,
		Bit20:           d.bit20,
		CallBit:         d.callBit,
		ThirdParty:      d.thirdParty,
		ThirdPartyOK:    d.thirdPartyOK,
		Parity1:         d.parity1,
		Parity2:         d.parity2,
		Parity3:         d.parity3,
		LeapSecondIsOne: d.leapSecondIsOne,
		Fields:          d.fields,
		Stats:           d.stats,
	}
}
