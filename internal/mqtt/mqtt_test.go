package mqtt

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/logic"
	"github.com/sweeney/dcf77-receiver/internal/radiotime"
)

var cest = time.FixedZone("CEST", 2*60*60)

func decodedMinute() *logic.Minute {
	tp := uint16(0x1234)
	return &logic.Minute{
		Time:       time.Date(2022, 10, 22, 16, 46, 0, 0, cest),
		Valid:      true,
		Bits:       strings.Repeat("0", 59),
		Length:     60,
		Parity1:    dcf77.ParityOK,
		Parity2:    dcf77.ParityOK,
		Parity3:    dcf77.ParityOK,
		CallBit:    dcf77.Zero,
		ThirdParty: &tp,
		DST:        radiotime.DSTSummer,
	}
}

func TestFormatPayloadMinuteExactJSON(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2022, 10, 22, 14, 46, 0, 0, time.UTC),
		Type:      logic.EventMinute,
		Second:    0,
		Minute:    decodedMinute(),
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := `{"dcf77":{"timestamp":"2022-10-22T14:46:00Z","event":"MINUTE","second":0,"minute":{` +
		`"time":"2022-10-22T16:46:00+02:00","valid":true,"length":60,"bits":"` + strings.Repeat("0", 59) + `",` +
		`"parity":{"minute":"OK","hour":"OK","date":"OK"},"call_bit":"0","third_party":4660,` +
		`"dst":{"summer":true,"announced":false,"processed":false,"jump":false},` +
		`"leap_second":{"announced":false,"processed":false,"missing":false}}}}`
	if string(payload) != expected {
		t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), expected)
	}
}

func TestFormatPayloadInvalidMinuteOmitsTime(t *testing.T) {
	m := decodedMinute()
	m.Valid = false
	m.Parity2 = dcf77.ParityBad
	m.ThirdParty = nil

	payload, err := FormatPayload(logic.Event{Timestamp: time.Now(), Type: logic.EventMinute, Minute: m})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	got := parsed.DCF77.Minute
	if got == nil {
		t.Fatal("expected minute object")
	}
	if got.Time != "" {
		t.Errorf("invalid minute should omit time, got %q", got.Time)
	}
	if got.Parity.Hour != "BAD" {
		t.Errorf("hour parity: got %q, want BAD", got.Parity.Hour)
	}
	if got.ThirdParty != nil {
		t.Errorf("third party should be omitted, got %d", *got.ThirdParty)
	}
}

func TestFormatPayloadRejectedFields(t *testing.T) {
	m := decodedMinute()
	m.Parity1 = dcf77.ParityBad
	m.Fields = dcf77.Fields{
		Minute: dcf77.Field{Value: 66, OK: true, Valid: false},
		Hour:   dcf77.Field{Value: 16, OK: true, Valid: true},
		Day:    dcf77.Field{OK: false, Valid: false},
	}

	payload, err := FormatPayload(logic.Event{Timestamp: time.Now(), Type: logic.EventMinute, Minute: m})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if diff := cmp.Diff(map[string]uint8{"minute": 66}, parsed.DCF77.Minute.Rejected); diff != "" {
		t.Errorf("rejected mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatPayloadLeapAndJumps(t *testing.T) {
	one := false
	m := decodedMinute()
	m.Length = 61
	m.Leap = radiotime.LeapAnnounced | radiotime.LeapProcessed
	m.LeapSecondIsOne = &one
	m.DST = radiotime.DSTAnnounced | radiotime.DSTJump
	m.Jumps = []string{"hour", "dst"}

	payload, err := FormatPayload(logic.Event{Timestamp: time.Now(), Type: logic.EventMinute, Minute: m})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	got := parsed.DCF77.Minute

	wantLeap := LeapPayload{Announced: true, Processed: true, One: &one}
	if diff := cmp.Diff(wantLeap, got.Leap); diff != "" {
		t.Errorf("leap mismatch (-want +got):\n%s", diff)
	}
	wantDST := DSTPayload{Announced: true, Jump: true}
	if diff := cmp.Diff(wantDST, got.DST); diff != "" {
		t.Errorf("dst mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"hour", "dst"}, got.Jumps); diff != "" {
		t.Errorf("jumps mismatch (-want +got):\n%s", diff)
	}
	if got.Length != 61 {
		t.Errorf("length: got %d, want 61", got.Length)
	}
}

func TestFormatPayloadSignalEvents(t *testing.T) {
	ts := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)
	tests := []struct {
		name  string
		event logic.Event
		want  string
	}{
		{
			"runaway",
			logic.Event{Timestamp: ts, Type: logic.EventRunaway, Second: 12, Anomaly: dcf77.AnomalyActiveRunaway},
			`{"dcf77":{"timestamp":"2026-02-02T22:18:12Z","event":"RUNAWAY","second":12,"anomaly":"ACTIVE_RUNAWAY"}}`,
		},
		{
			"passive runaway",
			logic.Event{Timestamp: ts, Type: logic.EventRunaway, Second: 3, Anomaly: dcf77.AnomalyPassiveRunaway},
			`{"dcf77":{"timestamp":"2026-02-02T22:18:12Z","event":"RUNAWAY","second":3,"anomaly":"PASSIVE_RUNAWAY"}}`,
		},
		{
			"desync",
			logic.Event{Timestamp: ts, Type: logic.EventDesync, Second: 0},
			`{"dcf77":{"timestamp":"2026-02-02T22:18:12Z","event":"DESYNC","second":0}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), tt.want)
			}
		})
	}
}

func TestFormatPayloadTimezoneConversion(t *testing.T) {
	event := logic.Event{
		Timestamp: time.Date(2026, 7, 1, 12, 0, 0, 0, cest),
		Type:      logic.EventDesync,
	}

	payload, err := FormatPayload(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed Payload
	if err := json.Unmarshal(payload, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.DCF77.Timestamp != "2026-07-01T10:00:00Z" {
		t.Errorf("expected UTC timestamp, got %s", parsed.DCF77.Timestamp)
	}
}

func TestTopics(t *testing.T) {
	if Topic != "dcf77/receiver/minutes" {
		t.Errorf("unexpected topic: %s", Topic)
	}
	if TopicSystem != "dcf77/receiver/system" {
		t.Errorf("unexpected system topic: %s", TopicSystem)
	}
}

func TestFormatSystemPayloadExactJSON(t *testing.T) {
	tests := []struct {
		name  string
		event SystemEvent
		want  string
	}{
		{
			"shutdown",
			SystemEvent{Timestamp: time.Date(2026, 2, 3, 10, 30, 45, 0, time.UTC), Event: "SHUTDOWN", Reason: "SIGTERM"},
			`{"system":{"timestamp":"2026-02-03T10:30:45Z","event":"SHUTDOWN","reason":"SIGTERM"}}`,
		},
		{
			"will",
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 8, 30, 0, 0, time.UTC), Event: "SHUTDOWN", Reason: "MQTT_DISCONNECT"},
			`{"system":{"timestamp":"2026-02-10T08:30:00Z","event":"SHUTDOWN","reason":"MQTT_DISCONNECT"}}`,
		},
		{
			"reconnected omits reason",
			SystemEvent{Timestamp: time.Date(2026, 2, 10, 14, 30, 0, 0, cest), Event: "RECONNECTED"},
			`{"system":{"timestamp":"2026-02-10T12:30:00Z","event":"RECONNECTED"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := FormatSystemPayload(tt.event)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(payload) != tt.want {
				t.Errorf("unexpected payload:\ngot:  %s\nwant: %s", string(payload), tt.want)
			}
		})
	}
}

func TestFormatSystemPayloadRaw(t *testing.T) {
	raw := []byte(`{"system":{"event":"HEARTBEAT"}}`)
	payload, err := FormatSystemPayload(SystemEvent{Event: "IGNORED", RawPayload: raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(payload) != string(raw) {
		t.Errorf("raw payload not passed through: %s", payload)
	}
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()

	events := []logic.Event{
		{Timestamp: time.Now(), Type: logic.EventSync, Minute: decodedMinute()},
		{Timestamp: time.Now(), Type: logic.EventRunaway, Anomaly: dcf77.AnomalyPassiveRunaway},
		{Timestamp: time.Now(), Type: logic.EventMinute, Minute: decodedMinute()},
	}
	for _, e := range events {
		if err := f.Publish(e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(f.Events) != 3 || len(f.Payloads) != 3 {
		t.Fatalf("expected 3 events and payloads, got %d and %d", len(f.Events), len(f.Payloads))
	}
	for i, e := range f.Events {
		if e.Type != events[i].Type {
			t.Errorf("event %d: got %s, want %s", i, e.Type, events[i].Type)
		}
	}
	if got := f.EventsOfType(logic.EventRunaway); len(got) != 1 {
		t.Errorf("expected 1 runaway, got %d", len(got))
	}
}

func TestFakePublisherErrors(t *testing.T) {
	f := NewFakePublisher()
	f.PublishError = errors.New("broker down")
	f.PublishSystemError = errors.New("broker down")

	if err := f.Publish(logic.Event{Type: logic.EventDesync}); err == nil {
		t.Error("expected publish error")
	}
	if err := f.PublishSystem(SystemEvent{Event: "STARTUP"}); err == nil {
		t.Error("expected publish system error")
	}
	if len(f.Events) != 0 || len(f.SystemEvents) != 0 {
		t.Error("failed publishes should not be recorded")
	}
}

func TestFakePublisherReset(t *testing.T) {
	f := NewFakePublisher()
	f.Connected = true
	f.Publish(logic.Event{Type: logic.EventDesync})
	f.PublishSystem(SystemEvent{Event: "STARTUP", Retained: true})
	f.Close()

	f.Reset()

	if len(f.Events) != 0 || len(f.Payloads) != 0 || len(f.SystemEvents) != 0 || len(f.SystemPayloads) != 0 {
		t.Error("expected all recordings cleared")
	}
	if f.Closed || f.Connected {
		t.Error("expected flags cleared")
	}

	f.Publish(logic.Event{Type: logic.EventDesync})
	if len(f.Events) != 1 {
		t.Errorf("expected publisher reusable after reset, got %d events", len(f.Events))
	}
}

// fakeToken completes immediately unless hang is set.
type fakeToken struct {
	err  error
	hang bool
}

func (t *fakeToken) Wait() bool { return !t.hang }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.hang }
func (t *fakeToken) Error() error { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if !t.hang {
		close(ch)
	}
	return ch
}

type sent struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

// fakeClient implements the parts of paho.Client the publisher uses.
type fakeClient struct {
	paho.Client

	open         bool
	token        *fakeToken
	sent         []sent
	disconnected uint
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }
func (c *fakeClient) Disconnect(quiesce uint) { c.disconnected = quiesce }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.sent = append(c.sent, sent{topic, qos, retained, string(payload.([]byte))})
	if c.token != nil {
		return c.token
	}
	return &fakeToken{}
}

func TestRealPublisherSendsWhenConnected(t *testing.T) {
	client := &fakeClient{open: true}
	p := newPublisher(client, 10)

	if err := p.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventDesync}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Timestamp: time.Now(), Event: "STARTUP", Retained: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.sent) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.sent))
	}
	if m := client.sent[0]; m.topic != Topic || m.qos != 0 || m.retained {
		t.Errorf("minute message: %+v", m)
	}
	if m := client.sent[1]; m.topic != TopicSystem || m.qos != 1 || !m.retained {
		t.Errorf("system message: %+v", m)
	}
	if !p.IsConnected() {
		t.Error("expected connected")
	}
	if p.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d", p.Buffered())
	}
}

func TestRealPublisherBuffersWhileDisconnected(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, 10)

	for i := 0; i < 3; i++ {
		if err := p.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventDesync, Second: i}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(client.sent) != 0 {
		t.Errorf("nothing should be sent while disconnected, got %d", len(client.sent))
	}
	if p.Buffered() != 3 {
		t.Errorf("expected 3 buffered, got %d", p.Buffered())
	}
	if p.IsConnected() {
		t.Error("expected disconnected")
	}
}

func TestRealPublisherBuffersFailedSend(t *testing.T) {
	tests := []struct {
		name  string
		token *fakeToken
	}{
		{"error", &fakeToken{err: errors.New("not connected")}},
		{"timeout", &fakeToken{hang: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{open: true, token: tt.token}
			p := newPublisher(client, 10)

			if err := p.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventDesync}); err == nil {
				t.Error("expected error")
			}
			if p.Buffered() != 1 {
				t.Errorf("expected failed message buffered, got %d", p.Buffered())
			}
		})
	}
}

func TestRealPublisherReplaysOnConnect(t *testing.T) {
	client := &fakeClient{}
	p := newPublisher(client, 10)

	p.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventDesync, Second: 1})
	p.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventDesync, Second: 2})

	// First connection: buffered messages only.
	client.open = true
	p.onConnect()

	if len(client.sent) != 2 {
		t.Fatalf("expected 2 replayed messages, got %d", len(client.sent))
	}
	for i, m := range client.sent {
		var parsed Payload
		if err := json.Unmarshal([]byte(m.payload), &parsed); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if parsed.DCF77.Second != i+1 {
			t.Errorf("message %d out of order: second %d", i, parsed.DCF77.Second)
		}
	}
	if p.Buffered() != 0 {
		t.Errorf("expected buffer drained, got %d", p.Buffered())
	}

	// Reconnect: RECONNECTED goes out ahead of the backlog.
	client.open = false
	client.sent = nil
	p.Publish(logic.Event{Timestamp: time.Now(), Type: logic.EventDesync, Second: 3})
	client.open = true
	p.onConnect()

	if len(client.sent) != 2 {
		t.Fatalf("expected 2 messages after reconnect, got %d", len(client.sent))
	}
	first := client.sent[0]
	if first.topic != TopicSystem || !first.retained || !strings.Contains(first.payload, `"event":"RECONNECTED"`) {
		t.Errorf("expected retained RECONNECTED first, got %+v", first)
	}
	if client.sent[1].topic != Topic {
		t.Errorf("expected buffered event second, got %s", client.sent[1].topic)
	}
}

func TestRealPublisherClose(t *testing.T) {
	client := &fakeClient{open: true}
	p := newPublisher(client, 10)
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.disconnected != 1000 {
		t.Errorf("expected disconnect quiesce 1000, got %d", client.disconnected)
	}
}

func TestPublisherInterfaces(t *testing.T) {
	var _ Publisher = (*RealPublisher)(nil)
	var _ Publisher = (*FakePublisher)(nil)
	var _ ConnectionStatus = (*RealPublisher)(nil)
	var _ ConnectionStatus = (*FakePublisher)(nil)
}
