// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/logic"
	"github.com/sweeney/dcf77-receiver/internal/radiotime"
)

// Topic is the MQTT topic for decoded minutes and signal events.
const Topic = "dcf77/receiver/minutes"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "dcf77/receiver/system"

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a receiver event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	DCF77 EventPayload `json:"dcf77"`
}

// EventPayload contains the receiver event details.
type EventPayload struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Second    int            `json:"second"`
	Anomaly   string         `json:"anomaly,omitempty"`
	Minute    *MinutePayload `json:"minute,omitempty"`
}

// MinutePayload describes one decoded minute frame.
type MinutePayload struct {
	Time       string        `json:"time,omitempty"`
	Valid      bool          `json:"valid"`
	Length     int           `json:"length"`
	Bits       string        `json:"bits"`
	Parity     ParityPayload `json:"parity"`
	CallBit    string        `json:"call_bit"`
	ThirdParty *uint16       `json:"third_party,omitempty"`
	DST        DSTPayload    `json:"dst"`
	Leap       LeapPayload   `json:"leap_second"`
	Jumps      []string      `json:"jumps,omitempty"`

	// Rejected holds fields that were read but failed their checks.
	Rejected map[string]uint8 `json:"rejected,omitempty"`
}

// ParityPayload holds the three parity results.
type ParityPayload struct {
	Minute string `json:"minute"`
	Hour   string `json:"hour"`
	Date   string `json:"date"`
}

// DSTPayload spells out the DST state bits.
type DSTPayload struct {
	Summer    bool `json:"summer"`
	Announced bool `json:"announced"`
	Processed bool `json:"processed"`
	Jump      bool `json:"jump"`
}

// LeapPayload spells out the leap second state bits.
type LeapPayload struct {
	Announced bool  `json:"announced"`
	Processed bool  `json:"processed"`
	Missing   bool  `json:"missing"`
	One       *bool `json:"one,omitempty"`
}

// FormatPayload creates the JSON payload for a receiver event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		DCF77: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Second:    event.Second,
			Minute:    formatMinute(event.Minute),
		},
	}
	if event.Anomaly != dcf77.AnomalyNone {
		payload.DCF77.Anomaly = string(event.Anomaly)
	}
	return json.Marshal(payload)
}

func formatMinute(m *logic.Minute) *MinutePayload {
	if m == nil {
		return nil
	}
	p := &MinutePayload{
		Valid:  m.Valid,
		Length: m.Length,
		Bits:   m.Bits,
		Parity: ParityPayload{
			Minute: m.Parity1.String(),
			Hour:   m.Parity2.String(),
			Date:   m.Parity3.String(),
		},
		CallBit:    m.CallBit.String(),
		ThirdParty: m.ThirdParty,
		DST: DSTPayload{
			Summer:    m.DST&radiotime.DSTSummer != 0,
			Announced: m.DST&radiotime.DSTAnnounced != 0,
			Processed: m.DST&radiotime.DSTProcessed != 0,
			Jump:      m.DST&radiotime.DSTJump != 0,
		},
		Leap: LeapPayload{
			Announced: m.Leap&radiotime.LeapAnnounced != 0,
			Processed: m.Leap&radiotime.LeapProcessed != 0,
			Missing:   m.Leap&radiotime.LeapMissing != 0,
			One:       m.LeapSecondIsOne,
		},
		Jumps: m.Jumps,
	}
	if m.Valid {
		// Broadcast local time keeps the CET/CEST offset.
		p.Time = m.Time.Format(time.RFC3339)
	}
	p.Rejected = rejectedFields(m.Fields)
	return p
}

func rejectedFields(f dcf77.Fields) map[string]uint8 {
	var out map[string]uint8
	for _, field := range []struct {
		name string
		f    dcf77.Field
	}{
		{"minute", f.Minute},
		{"hour", f.Hour},
		{"weekday", f.Weekday},
		{"day", f.Day},
		{"month", f.Month},
		{"year", f.Year},
	} {
		if field.f.OK && !field.f.Valid {
			if out == nil {
				out = make(map[string]uint8)
			}
			out[field.name] = field.f.Value
		}
	}
	return out
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
