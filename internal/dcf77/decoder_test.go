package dcf77

import (
	"testing"

	"github.com/sweeney/dcf77-receiver/internal/radiotime"
)

func TestAdvanceSecondSameMinute(t *testing.T) {
	d := newStreamingDecoder()
	d.second = 37

	if !d.AdvanceSecond() {
		t.Error("expected normal advance")
	}
	if d.Second() != 38 {
		t.Errorf("second: got %d, want 38", d.Second())
	}
	if !d.FirstMinute() {
		t.Error("advancing must not clear first minute")
	}
}

func TestAdvanceSecondNewMinute(t *testing.T) {
	d := newStreamingDecoder()
	d.second = 58
	d.newMinute = true

	if !d.AdvanceSecond() {
		t.Error("minute marker wrap should report true")
	}
	if d.Second() != 0 {
		t.Errorf("second: got %d, want 0", d.Second())
	}
}

func TestAdvanceSecondForcedWrap(t *testing.T) {
	d := newStreamingDecoder()

	wraps := 0
	for i := 1; i <= 60; i++ {
		if !d.AdvanceSecond() {
			wraps++
			if i != 60 {
				t.Errorf("forced wrap after %d calls, want 60", i)
			}
		}
		if d.Second() > d.NextMinuteLength() {
			t.Fatalf("second %d exceeds minute length", d.Second())
		}
	}
	if wraps != 1 {
		t.Errorf("wraps: got %d, want 1", wraps)
	}
	if d.Second() != 0 {
		t.Errorf("second: got %d, want 0", d.Second())
	}
	if d.Stats().Desyncs != 1 {
		t.Errorf("Desyncs: got %d, want 1", d.Stats().Desyncs)
	}
}

func TestAdvanceSecondForcedWrapLeapMinute(t *testing.T) {
	dt := radiotime.New()
	dt.SetMinute(59, true, false)
	dt.SetLeapSecond(One.Ptr(), 60)
	d := NewDecoder(dt, ModeStreaming)

	for i := 1; i < 61; i++ {
		if !d.AdvanceSecond() {
			t.Fatalf("forced wrap after %d calls, want 61", i)
		}
	}
	if d.Second() != 60 {
		t.Fatalf("second: got %d, want 60", d.Second())
	}
	if d.AdvanceSecond() {
		t.Error("61st call should force-wrap")
	}
}

func TestStreamingDecodesReferenceMinute(t *testing.T) {
	dt := radiotime.New()
	d := NewDecoder(dt, ModeStreaming)
	f := frameFromString(t, referenceFrame)

	const base = 7_000_000
	d.Feed(Edge{Falling: false, Timestamp: base}, false)

	decoded := 0
	for _, e := range edgeTrain(f, 60, base) {
		res := d.Feed(e, false)
		if !res.InSync {
			t.Fatalf("unexpected desync at second %d", res.Second)
		}
		if res.Anomaly != AnomalyNone {
			t.Fatalf("unexpected anomaly %s", res.Anomaly)
		}
		if res.Decoded {
			decoded++
		}
	}

	if decoded != 1 {
		t.Fatalf("decoded: got %d minutes, want 1", decoded)
	}
	if d.Second() != 0 {
		t.Errorf("second: got %d, want 0", d.Second())
	}
	if d.FirstMinute() {
		t.Error("first minute should be cleared")
	}
	assertField(t, "minute", dt.Minute, 46, true)
	assertField(t, "hour", dt.Hour, 16, true)
	assertField(t, "weekday", dt.Weekday, 6, true)
	assertField(t, "day", dt.Day, 22, true)
	assertField(t, "month", dt.Month, 10, true)
	assertField(t, "year", dt.Year, 22, true)
	if d.Parity1() != ParityOK || d.Parity2() != ParityOK || d.Parity3() != ParityOK {
		t.Errorf("parities: got %v %v %v, want all OK", d.Parity1(), d.Parity2(), d.Parity3())
	}
	if _, ok := d.LeapSecondIsOne(); ok {
		t.Error("no leap second anomaly expected")
	}
}

func TestStreamingConsecutiveMinutesAcrossLeapSecond(t *testing.T) {
	dt := radiotime.New()
	d := NewDecoder(dt, ModeStreaming)

	minutes := []struct {
		b       broadcast
		seconds int
	}{
		{broadcast{minute: 58, hour: 0, day: 1, weekday: 7, month: 1, year: 17, leapAnnounce: true}, 60},
		{broadcast{minute: 59, hour: 0, day: 1, weekday: 7, month: 1, year: 17, leapAnnounce: true}, 60},
		// The frame following minute 59 carries the inserted second.
		{broadcast{minute: 0, hour: 1, day: 1, weekday: 7, month: 1, year: 17, leapAnnounce: true}, 61},
	}

	var base uint32 = 4_294_000_000 // wraps during the first minute
	d.Feed(Edge{Falling: false, Timestamp: base}, true)
	for i, m := range minutes {
		f := encode(m.b)
		decoded := 0
		for _, e := range edgeTrain(f, m.seconds, base) {
			res := d.Feed(e, true)
			if !res.InSync {
				t.Fatalf("minute %d: desync at second %d", i, res.Second)
			}
			if res.Decoded {
				decoded++
			}
		}
		if decoded != 1 {
			t.Fatalf("minute %d: decoded %d times, want 1", i, decoded)
		}
		base += uint32(m.seconds) * 1_000_000
	}

	assertField(t, "minute", dt.Minute, 0, true)
	assertField(t, "hour", dt.Hour, 1, true)
	assertField(t, "leap second", dt.LeapSecond, radiotime.LeapProcessed, true)
	if isOne, ok := d.LeapSecondIsOne(); !ok || isOne {
		t.Errorf("LeapSecondIsOne: got (%v, %v), want (false, true)", isOne, ok)
	}
	if dt.JumpMinute() || dt.JumpHour() {
		t.Error("no jumps expected")
	}
	if d.Stats().Minutes != 3 {
		t.Errorf("Minutes: got %d, want 3", d.Stats().Minutes)
	}
}

func TestStreamingMissedMarker(t *testing.T) {
	d := newStreamingDecoder()
	f := frameFromString(t, referenceFrame)

	// Replace the marker with a regular second: no minute is ever seen.
	edges := edgeTrain(f, 60, 0)
	edges[len(edges)-1].Timestamp = 59_000_000
	edges = append(edges,
		Edge{Falling: true, Timestamp: 59_100_000},
		Edge{Falling: false, Timestamp: 60_000_000},
	)

	d.Feed(Edge{Falling: false, Timestamp: 0}, false)
	desyncs := 0
	for _, e := range edges {
		if res := d.Feed(e, false); res.Ticked && !res.InSync {
			desyncs++
		}
	}
	if desyncs != 1 {
		t.Errorf("desyncs: got %d, want 1", desyncs)
	}
	if d.Second() != 0 {
		t.Errorf("second: got %d, want 0", d.Second())
	}
}

func TestStreamingSpikesAbsorbed(t *testing.T) {
	d := newStreamingDecoder()
	d.Feed(Edge{Falling: false, Timestamp: 0}, false)

	res := d.Feed(Edge{Falling: true, Timestamp: 5_000}, false)
	if !res.Spike || res.Ticked {
		t.Errorf("spike: got %+v", res)
	}
	res = d.Feed(Edge{Falling: false, Timestamp: 10_000}, false)
	if !res.Spike || res.Ticked {
		t.Errorf("spike: got %+v", res)
	}
	if d.Stats().Spikes != 2 {
		t.Errorf("Spikes: got %d, want 2", d.Stats().Spikes)
	}
}

func TestOfflineBitLogReplay(t *testing.T) {
	dt := radiotime.New()
	d := NewDecoder(dt, ModeOffline)

	feed := func(bits string) {
		for _, c := range bits {
			b := Unknown
			switch c {
			case '0':
				b = Zero
			case '1':
				b = One
			}
			d.SetCurrentBit(b)
			d.Tick(false)
		}
		d.ForceNewMinute()
		d.Tick(false)
	}

	// A partial minute first; it must not decode.
	feed("0101")
	if dt.MinutesRunning() != 0 {
		t.Fatalf("partial minute decoded")
	}
	if d.Second() != 0 {
		t.Fatalf("second after marker: got %d, want 0", d.Second())
	}

	feed(referenceFrame)
	if !d.FrameComplete() {
		t.Fatal("frame should be complete on the marker")
	}
	assertField(t, "minute", dt.Minute, 46, true)
	assertField(t, "year", dt.Year, 22, true)
	if d.FirstMinute() {
		t.Error("first minute should be cleared")
	}

	next := encode(broadcast{minute: 47, hour: 16, day: 22, weekday: 6, month: 10, year: 22, summer: true})
	feed(next.String(59))
	assertField(t, "minute", dt.Minute, 47, true)
	if dt.JumpMinute() {
		t.Error("no jump expected for consecutive minutes")
	}
}

func TestSetCurrentBitClearsNewMinute(t *testing.T) {
	d := NewDecoder(radiotime.New(), ModeOffline)
	d.ForceNewMinute()
	d.SetCurrentBit(One)
	if d.NewMinute() {
		t.Error("SetCurrentBit should clear new minute")
	}
	if d.CurrentBit() != One {
		t.Errorf("CurrentBit: got %v, want One", d.CurrentBit())
	}
}

func TestFrameIsNeverCleared(t *testing.T) {
	d, _ := newOfflineDecoder(t, referenceFrame)
	d.DecodeTime(false)
	d.ForceNewMinute()
	d.AdvanceSecond()

	f := d.Frame()
	if got := f.String(59); got != referenceFrame {
		t.Errorf("frame changed after wrap:\n got %s\nwant %s", got, referenceFrame)
	}
}
