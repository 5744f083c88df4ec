// Package logic turns receiver edges and logged bits into publishable events.
// It owns the DCF77 decoder and the calendar aggregate it reports into.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
)

// EventType identifies what happened on the signal.
type EventType string

const (
	// EventSync is emitted once, when the first minute decodes cleanly.
	EventSync EventType = "SYNC"
	// EventMinute is emitted for every complete minute frame after sync.
	EventMinute EventType = "MINUTE"
	// EventDesync is emitted when a minute marker was missed and the second
	// counter had to wrap on its own.
	EventDesync EventType = "DESYNC"
	// EventRunaway is emitted for an implausibly long pulse or pause.
	EventRunaway EventType = "RUNAWAY"
)

// Event is something to be published.
type Event struct {
	Timestamp time.Time // host clock
	Type      EventType
	Second    int           // second-of-minute after the event
	Anomaly   dcf77.Anomaly // EventRunaway only
	Minute    *Minute       // EventSync and EventMinute only
}

// Minute is the outcome of one complete minute frame.
type Minute struct {
	// Time is the broadcast time, valid only when Valid is set.
	Time  time.Time
	Valid bool

	Bits       string // received frame, '_' for undetermined seconds
	Length     int    // seconds in the minute, 60 or 61
	Parity1    dcf77.Parity
	Parity2    dcf77.Parity
	Parity3    dcf77.Parity
	CallBit    dcf77.Bit
	ThirdParty *uint16 // nil when any payload bit was undetermined

	// Fields keeps the BCD values as read, including those that failed
	// parity and were not taken into Time.
	Fields dcf77.Fields

	DST  uint8 // radiotime DST state bits
	Leap uint8 // radiotime leap second state bits
	// LeapSecondIsOne is set only for minutes that carried a leap second.
	LeapSecondIsOne *bool

	Jumps []string // fields that disagreed with the previous minute plus one
}

// ParityOK reports whether all three parity checks passed.
func (m Minute) ParityOK() bool {
	return m.Parity1 == dcf77.ParityOK && m.Parity2 == dcf77.ParityOK && m.Parity3 == dcf77.ParityOK
}

// Input is a single edge as seen by the host.
type Input struct {
	Edge dcf77.Edge
	Time time.Time
}

// Config selects how the receiver drives the decoder.
type Config struct {
	Mode       dcf77.Mode
	Strict     bool
	SpikeLimit uint32 // microseconds; 0 disables spike rejection
}

// EventCounts tracks the number of each event type since startup.
// Counts include events suppressed before sync.
type EventCounts struct {
	Minutes      int
	ValidMinutes int
	Desyncs      int
	Runaways     int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Synced    bool
	Counts    EventCounts
	Stats     dcf77.Stats
}
