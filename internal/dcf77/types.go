// Package dcf77 contains the DCF77 edge classifier and minute frame decoder.
// This package has NO external dependencies (no GPIO, MQTT, OS, or wall clock).
// Time is always the caller's free-running microsecond counter.
package dcf77

import "errors"

// Timing limits in microseconds. They partition the legal DCF77 timing space:
// active pulses are ~100 ms (0) or ~200 ms (1) within a ~1 s period, and the
// minute marker is a missing pulse of ~1.8-2 s.
const (
	DefaultSpikeLimit uint32 = 30_000    // edges closer than this are noise
	ActiveLimit       uint32 = 150_000   // shorter active pulses are a 0
	ActiveRunaway     uint32 = 250_000   // shorter active pulses are a 1
	MinuteLimit       uint32 = 1_500_000 // longer passive parts mark a new minute
	PassiveRunaway    uint32 = 2_500_000 // signal is considered lost after this
)

// FrameCapacity is the number of slots in a frame: 60 seconds plus one leap second.
const FrameCapacity = 61

// Minute lengths in seconds.
const (
	MinuteLength     = 60
	LeapMinuteLength = 61
)

// ErrSpikeLimit is returned when a spike limit would swallow valid active pulses.
var ErrSpikeLimit = errors.New("dcf77: spike limit must be below the active limit")

// Bit is a tri-state DCF77 protocol bit. The zero value is Unknown.
type Bit uint8

const (
	Unknown Bit = iota
	Zero
	One
)

// BitOf converts a determined boolean into a Bit.
func BitOf(v bool) Bit {
	if v {
		return One
	}
	return Zero
}

// Known reports whether the bit carries a value.
func (b Bit) Known() bool {
	return b == Zero || b == One
}

// Ptr returns the bit as an optional boolean: nil when Unknown.
func (b Bit) Ptr() *bool {
	if !b.Known() {
		return nil
	}
	v := b == One
	return &v
}

// String returns the bit-log representation: "0", "1" or "_".
func (b Bit) String() string {
	switch b {
	case Zero:
		return "0"
	case One:
		return "1"
	}
	return "_"
}

// Parity is the result of an even parity check.
type Parity uint8

const (
	ParityUnknown Parity = iota // a bit in the range was Unknown
	ParityOK
	ParityBad
)

func (p Parity) String() string {
	switch p {
	case ParityOK:
		return "OK"
	case ParityBad:
		return "BAD"
	}
	return "UNKNOWN"
}

// Mode selects the order in which the counter and the decoder run per tick.
type Mode int

const (
	// ModeStreaming advances the second before decoding (live edges).
	ModeStreaming Mode = iota
	// ModeOffline decodes before advancing the second (bit logs).
	ModeOffline
)

func (m Mode) String() string {
	if m == ModeOffline {
		return "offline"
	}
	return "streaming"
}

// Anomaly describes an edge that could not be resolved into a bit.
type Anomaly string

const (
	AnomalyNone           Anomaly = ""
	AnomalyActiveRunaway  Anomaly = "ACTIVE_RUNAWAY"
	AnomalyPassiveRunaway Anomaly = "PASSIVE_RUNAWAY"
)

// Edge is a single logic-level transition reported by the receiver.
type Edge struct {
	Falling   bool
	Timestamp uint32 // microseconds, wraps at 2^32
}

// Result describes what feeding one edge did to the decoder.
type Result struct {
	Ticked  bool    // the edge started a new second and a tick ran
	InSync  bool    // false when the tick force-wrapped a missed minute marker
	Decoded bool    // the tick completed and decoded a minute frame
	Spike   bool    // the edge was absorbed as noise
	Anomaly Anomaly // runaway detected on this edge
	Second  int     // second index after the edge
}

// Stats holds cumulative counters since the decoder was created.
type Stats struct {
	Edges           uint64
	Spikes          uint64
	ActiveRunaways  uint64
	PassiveRunaways uint64
	Desyncs         uint64
	Minutes         uint64
}

// Snapshot is a point-in-time view of the decoder diagnostics.
type Snapshot struct {
	Second          int
	FirstMinute     bool
	NewMinute       bool
	NewSecond       bool
	FrameComplete   bool
	Bit0            Bit
	Bit20           Bit
	CallBit         Bit
	ThirdParty      uint16
	ThirdPartyOK    bool
	Parity1         Parity
	Parity2         Parity
	Parity3         Parity
	LeapSecondIsOne Bit
	Fields          Fields
	Stats           Stats
}

// Field is one BCD field of the last decoded frame as received, before the
// calendar aggregate accepted or dropped it. OK is false when a bit was
// undetermined or a digit was out of range. Valid is false when the field's
// parity, or in strict mode any frame check, failed.
type Field struct {
	Value uint8
	OK    bool
	Valid bool
}

// Fields holds the raw BCD fields of the last decoded frame.
type Fields struct {
	Minute  Field
	Hour    Field
	Weekday Field
	Day     Field
	Month   Field
	Year    Field
}

// DateTime is the calendar aggregate that owns the decoded date and time.
// Setters receive the decoded value, whether it may be trusted, and whether
// the aggregate should flag a jump against its current value.
type DateTime interface {
	SetMinute(value uint8, valid, checkJump bool)
	SetHour(value uint8, valid, checkJump bool)
	SetWeekday(value uint8, valid, checkJump bool)
	SetDay(value uint8, valid, checkJump bool)
	SetMonth(value uint8, valid, checkJump bool)
	SetYear(value uint8, valid, checkJump bool)
	// SetDST takes the summer-time flag and the change announcement, nil when undetermined.
	SetDST(summer, announce *bool, checkJump bool)
	// SetLeapSecond takes the announcement bit and the length in seconds of the minute just received.
	SetLeapSecond(announce *bool, minuteLength int)
	AddMinute() bool
	ClearJumps()
	BumpMinutesRunning()

	Minute() (uint8, bool)
	LeapSecondAnnounced() bool
	LeapSecondProcessed() bool
	IsValid() bool
}
