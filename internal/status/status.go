// Package status provides a thread-safe view of the receiver state.
// It is read by the HTTP handlers and by the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains receiver configuration for display.
type Config struct {
	Mode         string
	Chip         string
	Pin          int
	Invert       bool
	Strict       bool
	SpikeLimitUs uint32
	HeartbeatMs  int64
	Broker       string
	HTTPPort     string
}

// Snapshot is a point-in-time view of receiver state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	Synced        bool
	Second        int
	Decoder       dcf77.Snapshot
	Counts        logic.EventCounts
	LastMinute    *logic.Minute // nil until the first minute after sync
	LastMinuteAt  time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the receiver started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable receiver state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update copies the decoder state. Called after every processed edge.
func (t *Tracker) Update(synced bool, decoder dcf77.Snapshot, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Synced = synced
	t.snap.Second = decoder.Second
	t.snap.Decoder = decoder
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMinute records the latest decoded minute. The minute is not modified
// after it is handed over.
func (t *Tracker) SetMinute(m *logic.Minute, at time.Time) {
	t.mu.Lock()
	t.snap.LastMinute = m
	t.snap.LastMinuteAt = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the receiver state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
