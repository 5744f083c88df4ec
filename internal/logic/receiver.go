package logic

import (
	"fmt"
	"time"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/radiotime"
)

// Receiver drives a DCF77 decoder and reports what it sees as events.
// Events are only returned once the receiver is synced, that is once a first
// minute decoded with valid framing and a fully determined date and time.
type Receiver struct {
	cfg           Config
	dec           *dcf77.Decoder
	dt            *radiotime.DateTime
	synced        bool
	startTime     time.Time
	eventCounts   EventCounts
	lastHeartbeat time.Time
}

// NewReceiver creates a receiver with an empty calendar.
// The startTime is used for calculating uptime in heartbeat events.
func NewReceiver(cfg Config, startTime time.Time) (*Receiver, error) {
	dt := radiotime.New()
	dec := dcf77.NewDecoder(dt, cfg.Mode)
	if err := dec.SetSpikeLimit(cfg.SpikeLimit); err != nil {
		return nil, fmt.Errorf("spike limit %dus: %w", cfg.SpikeLimit, err)
	}
	return &Receiver{
		cfg:           cfg,
		dec:           dec,
		dt:            dt,
		startTime:     startTime,
		lastHeartbeat: startTime,
	}, nil
}

// Process feeds one edge to the decoder and returns any events that should
// be emitted.
func (r *Receiver) Process(input Input) []Event {
	return r.afterFeed(r.dec.Feed(input.Edge, r.cfg.Strict), input.Time)
}

// ProcessPair is Process for edge logs that record the previous edge time
// next to the current one.
func (r *Receiver) ProcessPair(falling bool, tPrev, tCurr uint32, now time.Time) []Event {
	return r.afterFeed(r.dec.FeedPair(falling, tPrev, tCurr, r.cfg.Strict), now)
}

func (r *Receiver) afterFeed(res dcf77.Result, now time.Time) []Event {
	var events []Event
	if res.Anomaly != dcf77.AnomalyNone {
		r.eventCounts.Runaways++
		events = append(events, Event{
			Timestamp: now,
			Type:      EventRunaway,
			Second:    res.Second,
			Anomaly:   res.Anomaly,
		})
	}
	if res.Ticked {
		events = append(events, r.afterTick(res.InSync, now)...)
	}
	return r.gate(events)
}

// ProcessBit stores a logged bit at the current second and moves on to the
// next second. Use with ModeOffline.
func (r *Receiver) ProcessBit(b dcf77.Bit, now time.Time) []Event {
	r.dec.SetCurrentBit(b)
	return r.gate(r.afterTick(r.dec.Tick(r.cfg.Strict), now))
}

// ProcessMarker handles a logged minute marker. Use with ModeOffline.
func (r *Receiver) ProcessMarker(now time.Time) []Event {
	r.dec.ForceNewMinute()
	return r.gate(r.afterTick(r.dec.Tick(r.cfg.Strict), now))
}

func (r *Receiver) afterTick(inSync bool, now time.Time) []Event {
	var events []Event
	if !inSync {
		r.eventCounts.Desyncs++
		events = append(events, Event{
			Timestamp: now,
			Type:      EventDesync,
			Second:    r.dec.Second(),
		})
	}
	if !r.dec.FrameComplete() {
		return events
	}

	m := r.minute()
	r.eventCounts.Minutes++
	if m.Valid {
		r.eventCounts.ValidMinutes++
	}
	typ := EventMinute
	if !r.synced && !r.dec.FirstMinute() {
		r.synced = true
		typ = EventSync
	}
	return append(events, Event{
		Timestamp: now,
		Type:      typ,
		Second:    r.dec.Second(),
		Minute:    m,
	})
}

// gate drops everything until the receiver is synced.
func (r *Receiver) gate(events []Event) []Event {
	if !r.synced {
		return nil
	}
	return events
}

// minute collects the outcome of the frame that was just decoded.
func (r *Receiver) minute() *Minute {
	length := r.dec.ThisMinuteLength()
	frame := r.dec.Frame()
	m := &Minute{
		Bits:    frame.String(length - 1),
		Length:  length,
		Parity1: r.dec.Parity1(),
		Parity2: r.dec.Parity2(),
		Parity3: r.dec.Parity3(),
		CallBit: r.dec.CallBit(),
		Fields:  r.dec.Fields(),
	}
	m.Time, m.Valid = r.dt.Time()
	if v, ok := r.dec.ThirdPartyBuffer(); ok {
		m.ThirdParty = &v
	}
	if isOne, ok := r.dec.LeapSecondIsOne(); ok {
		m.LeapSecondIsOne = &isOne
	}
	m.DST, _ = r.dt.DST()
	m.Leap, _ = r.dt.LeapSecond()
	m.Jumps = jumps(r.dt)
	return m
}

func jumps(dt *radiotime.DateTime) []string {
	var out []string
	for _, j := range []struct {
		name string
		set  bool
	}{
		{"year", dt.JumpYear()},
		{"month", dt.JumpMonth()},
		{"day", dt.JumpDay()},
		{"weekday", dt.JumpWeekday()},
		{"hour", dt.JumpHour()},
		{"minute", dt.JumpMinute()},
	} {
		if j.set {
			out = append(out, j.name)
		}
	}
	if dst, ok := dt.DST(); ok && dst&radiotime.DSTJump != 0 {
		out = append(out, "dst")
	}
	return out
}

// IsSynced returns whether a first minute has been decoded.
func (r *Receiver) IsSynced() bool {
	return r.synced
}

// Second returns the current second-of-minute.
func (r *Receiver) Second() int {
	return r.dec.Second()
}

// DateTime returns the calendar the decoder reports into.
func (r *Receiver) DateTime() *radiotime.DateTime {
	return r.dt
}

// Snapshot returns the decoder diagnostics.
func (r *Receiver) Snapshot() dcf77.Snapshot {
	return r.dec.Snapshot()
}

// Stats returns the decoder counters.
func (r *Receiver) Stats() dcf77.Stats {
	return r.dec.Stats()
}

// EventCountsSnapshot returns a copy of the event counts.
func (r *Receiver) EventCountsSnapshot() EventCounts {
	return r.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled). Heartbeats are sent before sync too, so
// a receiver without signal still reports in.
func (r *Receiver) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(r.lastHeartbeat) < interval {
		return nil
	}

	r.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(r.startTime),
		Synced:    r.synced,
		Counts:    r.eventCounts,
		Stats:     r.dec.Stats(),
	}
}
