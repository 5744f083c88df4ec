package dcf77

import "math"

// TimeDiff returns later - earlier for a free-running 32-bit counter,
// accounting for a single rollover between the two readings.
func TimeDiff(earlier, later uint32) uint32 {
	if later >= earlier {
		return later - earlier
	}
	return (math.MaxUint32 - earlier) + later + 1
}

// Frame holds one bit per second of the minute being received.
//
// Slots are only ever overwritten when their second is reached; the frame is
// never cleared, so slots not yet reached still hold last minute's bits.
// Decoded fields are trusted through their parity, not through freshness.
type Frame struct {
	bits [FrameCapacity]Bit
}

// Get returns the bit at second i, or Unknown when i is out of range.
func (f *Frame) Get(i int) Bit {
	if i < 0 || i >= FrameCapacity {
		return Unknown
	}
	return f.bits[i]
}

// Set overwrites the bit at second i. Out of range indices are ignored.
func (f *Frame) Set(i int, b Bit) {
	if i < 0 || i >= FrameCapacity {
		return
	}
	f.bits[i] = b
}

// Bits returns a copy of the first n slots.
func (f *Frame) Bits(n int) []Bit {
	n = max(0, min(n, FrameCapacity))
	out := make([]Bit, n)
	copy(out, f.bits[:n])
	return out
}

// String renders the first n slots in bit-log form.
func (f *Frame) String(n int) string {
	bits := f.Bits(n)
	buf := make([]byte, 0, len(bits))
	for _, b := range bits {
		buf = append(buf, b.String()...)
	}
	return string(buf)
}

// binary returns the value of bits start..stop, least significant bit first.
func (f *Frame) binary(start, stop int) (uint16, bool) {
	var val, mult uint16 = 0, 1
	for i := start; i <= stop; i++ {
		switch f.Get(i) {
		case One:
			val += mult
		case Unknown:
			return 0, false
		}
		mult *= 2
	}
	return val, true
}

// bcd decodes bits start..stop as BCD, least significant bit first: the first
// four bits hold the units, the remaining bits the tens.
func (f *Frame) bcd(start, stop int) (uint8, bool) {
	unitsStop := stop
	if stop-start > 3 {
		unitsStop = start + 3
	}
	units, ok := f.binary(start, unitsStop)
	if !ok || units > 9 {
		return 0, false
	}
	if unitsStop == stop {
		return uint8(units), true
	}
	tens, ok := f.binary(unitsStop+1, stop)
	if !ok || tens > 9 {
		return 0, false
	}
	return uint8(tens*10 + units), true
}

// parity checks even parity over bits start..stop plus the parity bit.
func (f *Frame) parity(start, stop, parityBit int) Parity {
	ones := 0
	for i := start; i <= stop; i++ {
		switch f.Get(i) {
		case One:
			ones++
		case Unknown:
			return ParityUnknown
		}
	}
	switch f.Get(parityBit) {
	case One:
		ones++
	case Unknown:
		return ParityUnknown
	}
	if ones%2 == 0 {
		return ParityOK
	}
	return ParityBad
}
