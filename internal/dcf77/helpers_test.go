package dcf77

import (
	"testing"

	"github.com/sweeney/dcf77-receiver/internal/radiotime"
)

// referenceFrame is a broadcast of 2022-10-22 (Saturday) 16:46 CEST with the
// call bit set, third-party payload 0x18f2 and no leap second announcement.
// The minute marker is not included.
const referenceFrame = "0" + // bit 0
	"01001111000110" + // third-party payload
	"1" + // call bit
	"010" + // no DST change, CEST
	"0" + // no leap second
	"1" + // bit 20
	"0110001" + "1" + // minute 46 + parity
	"011010" + "1" + // hour 16 + parity
	"010001" + // day 22
	"011" + // Saturday
	"00001" + // October
	"01000100" + // year 22
	"1" // date parity

func frameFromString(t *testing.T, s string) Frame {
	t.Helper()
	var f Frame
	for i, c := range s {
		switch c {
		case '0':
			f.Set(i, Zero)
		case '1':
			f.Set(i, One)
		case '_':
			f.Set(i, Unknown)
		default:
			t.Fatalf("invalid bit %q at %d", c, i)
		}
	}
	return f
}

// putBCD writes v as BCD into width bits starting at start, LSB first.
func putBCD(f *Frame, start, width int, v uint8) {
	units, tens := v%10, v/10
	for i := 0; i < width; i++ {
		var bit uint8
		if i < 4 {
			bit = (units >> i) & 1
		} else {
			bit = (tens >> (i - 4)) & 1
		}
		f.Set(start+i, BitOf(bit == 1))
	}
}

func setParity(f *Frame, start, stop, parityBit int) {
	ones := 0
	for i := start; i <= stop; i++ {
		if f.Get(i) == One {
			ones++
		}
	}
	f.Set(parityBit, BitOf(ones%2 == 1))
}

type broadcast struct {
	minute, hour, day, weekday, month, year uint8
	summer                                  bool
	dstAnnounce                             bool
	leapAnnounce                            bool
}

// encode builds a parity-correct 59 bit frame for b.
func encode(b broadcast) Frame {
	var f Frame
	for i := 0; i < 59; i++ {
		f.Set(i, Zero)
	}
	f.Set(bitTimeStart, One)
	f.Set(bitDSTAnnounce, BitOf(b.dstAnnounce))
	f.Set(bitDSTSummer, BitOf(b.summer))
	f.Set(bitDSTWinter, BitOf(!b.summer))
	f.Set(bitLeapAnnounce, BitOf(b.leapAnnounce))
	putBCD(&f, bitMinuteFirst, 7, b.minute)
	setParity(&f, bitMinuteFirst, bitMinuteLast, bitMinuteParity)
	putBCD(&f, bitHourFirst, 6, b.hour)
	setParity(&f, bitHourFirst, bitHourLast, bitHourParity)
	putBCD(&f, bitDayFirst, 6, b.day)
	putBCD(&f, bitWeekdayFirst, 3, b.weekday)
	putBCD(&f, bitMonthFirst, 5, b.month)
	putBCD(&f, bitYearFirst, 8, b.year)
	setParity(&f, bitDayFirst, bitYearLast, bitDateParity)
	return f
}

// newOfflineDecoder returns an offline decoder whose frame holds bits and
// whose second sits on the minute marker of a regular minute.
func newOfflineDecoder(t *testing.T, bits string) (*Decoder, *radiotime.DateTime) {
	t.Helper()
	dt := radiotime.New()
	d := NewDecoder(dt, ModeOffline)
	d.frame = frameFromString(t, bits)
	d.second = 59
	return d, dt
}

func flip(d *Decoder, i int) {
	if d.frame.Get(i) == One {
		d.frame.Set(i, Zero)
	} else {
		d.frame.Set(i, One)
	}
}

func setBits(d *Decoder, bits map[int]Bit) {
	for i, b := range bits {
		d.frame.Set(i, b)
	}
}

func assertField(t *testing.T, name string, get func() (uint8, bool), want uint8, wantOK bool) {
	t.Helper()
	got, ok := get()
	if ok != wantOK || (ok && got != want) {
		if wantOK {
			t.Errorf("%s: got (%d, %v), want %d", name, got, ok, want)
		} else {
			t.Errorf("%s: got (%d, %v), want undetermined", name, got, ok)
		}
	}
}

// edgeTrain produces the edges a receiver emits for one frame of the given
// number of seconds starting at base: a rising edge at the start of each
// second, a falling edge after the pulse, and no pulse in the marker second.
// The rising edge at base is left out; the one opening the next minute is
// included, so trains can be chained.
func edgeTrain(f Frame, seconds int, base uint32) []Edge {
	var edges []Edge
	for s := 0; s < seconds-1; s++ {
		start := base + uint32(s)*1_000_000
		pulse := uint32(100_000)
		if f.Get(s) == One {
			pulse = 200_000
		}
		if s > 0 {
			edges = append(edges, Edge{Falling: false, Timestamp: start})
		}
		edges = append(edges, Edge{Falling: true, Timestamp: start + pulse})
	}
	return append(edges, Edge{Falling: false, Timestamp: base + uint32(seconds)*1_000_000})
}
