package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string          `json:"event,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Synced        bool            `json:"synced"`
	Second        int             `json:"second"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
	MQTT          MQTTStatus      `json:"mqtt"`
	LastMinute    *LastMinuteJSON `json:"last_minute,omitempty"`
	Counts        CountsJSON      `json:"event_counts"`
	Decoder       DecoderJSON     `json:"decoder"`
	Network       *NetworkJSON    `json:"network,omitempty"`
	Config        ConfigJSON      `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// LastMinuteJSON summarises the most recent minute frame.
type LastMinuteJSON struct {
	ReceivedAt string `json:"received_at"`
	Time       string `json:"time,omitempty"`
	Valid      bool   `json:"valid"`
	Length     int    `json:"length"`
	Bits       string `json:"bits"`
	ParityOK   bool   `json:"parity_ok"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Minutes      int `json:"minutes"`
	ValidMinutes int `json:"valid_minutes"`
	Desyncs      int `json:"desyncs"`
	Runaways     int `json:"runaways"`
}

// DecoderJSON exposes the decoder's own counters.
type DecoderJSON struct {
	Edges           uint64 `json:"edges"`
	Spikes          uint64 `json:"spikes"`
	ActiveRunaways  uint64 `json:"active_runaways"`
	PassiveRunaways uint64 `json:"passive_runaways"`
	Desyncs         uint64 `json:"desyncs"`
	Frames          uint64 `json:"frames"`
	CallBit         string `json:"call_bit"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of receiver config.
type ConfigJSON struct {
	Mode         string `json:"mode"`
	Chip         string `json:"chip,omitempty"`
	Pin          int    `json:"pin"`
	Invert       bool   `json:"invert"`
	Strict       bool   `json:"strict"`
	SpikeLimitUs uint32 `json:"spike_limit_us"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPPort     string `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	stats := snap.Decoder.Stats
	inner := StatusInner{
		Synced:        snap.Synced,
		Second:        snap.Second,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Minutes:      snap.Counts.Minutes,
			ValidMinutes: snap.Counts.ValidMinutes,
			Desyncs:      snap.Counts.Desyncs,
			Runaways:     snap.Counts.Runaways,
		},
		Decoder: DecoderJSON{
			Edges:           stats.Edges,
			Spikes:          stats.Spikes,
			ActiveRunaways:  stats.ActiveRunaways,
			PassiveRunaways: stats.PassiveRunaways,
			Desyncs:         stats.Desyncs,
			Frames:          stats.Minutes,
			CallBit:         snap.Decoder.CallBit.String(),
		},
		Config: ConfigJSON{
			Mode:         snap.Config.Mode,
			Chip:         snap.Config.Chip,
			Pin:          snap.Config.Pin,
			Invert:       snap.Config.Invert,
			Strict:       snap.Config.Strict,
			SpikeLimitUs: snap.Config.SpikeLimitUs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPPort:     snap.Config.HTTPPort,
		},
	}

	if m := snap.LastMinute; m != nil {
		inner.LastMinute = &LastMinuteJSON{
			ReceivedAt: snap.LastMinuteAt.UTC().Format(time.RFC3339),
			Valid:      m.Valid,
			Length:     m.Length,
			Bits:       m.Bits,
			ParityOK:   m.ParityOK(),
		}
		if m.Valid {
			inner.LastMinute.Time = m.Time.Format(time.RFC3339)
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
