// Package radiotime holds the calendar date and time decoded from a radio
// time signal. It validates each field, flags values that jump against the
// previous minute, tracks DST and leap second announcements, and can advance
// itself by one minute between broadcasts.
package radiotime

import "time"

// DST state bits.
const (
	DSTSummer    uint8 = 1 << iota // summer time is in effect
	DSTAnnounced                   // a change is announced for the top of the hour
	DSTProcessed                   // a change happened at the top of this hour
	DSTJump                        // the DST flag changed without announcement
)

// Leap second state bits.
const (
	LeapAnnounced uint8 = 1 << iota // a leap second is announced for the top of the hour
	LeapProcessed                   // the minute just received carried a leap second
	LeapMissing                     // an announced leap second did not arrive
)

// Sunday is the weekday number of Sunday; Monday is 1.
const Sunday = 7

type field struct {
	value uint8
	ok    bool
}

// DateTime is a radio-broadcast calendar value. The zero value is not usable;
// create one with New.
type DateTime struct {
	year    field
	month   field
	day     field
	weekday field
	hour    field
	minute  field

	dst       uint8
	dstKnown  bool
	leap      uint8
	leapKnown bool

	jumpYear    bool
	jumpMonth   bool
	jumpDay     bool
	jumpWeekday bool
	jumpHour    bool
	jumpMinute  bool

	dstCount       int // minutes this hour with a DST announcement
	leapCount      int // minutes this hour with a leap second announcement
	hourMinutes    int // minutes received this hour
	minutesRunning int
}

// New returns an empty DateTime with every field undetermined.
func New() *DateTime {
	return &DateTime{}
}

// Year returns the two-digit year.
func (dt *DateTime) Year() (uint8, bool) { return dt.year.value, dt.year.ok }

// Month returns the month, 1-12.
func (dt *DateTime) Month() (uint8, bool) { return dt.month.value, dt.month.ok }

// Day returns the day of the month.
func (dt *DateTime) Day() (uint8, bool) { return dt.day.value, dt.day.ok }

// Weekday returns the weekday, Monday = 1 to Sunday = 7.
func (dt *DateTime) Weekday() (uint8, bool) { return dt.weekday.value, dt.weekday.ok }

// Hour returns the hour, 0-23.
func (dt *DateTime) Hour() (uint8, bool) { return dt.hour.value, dt.hour.ok }

// Minute returns the minute, 0-59.
func (dt *DateTime) Minute() (uint8, bool) { return dt.minute.value, dt.minute.ok }

// DST returns the DST state bits.
func (dt *DateTime) DST() (uint8, bool) { return dt.dst, dt.dstKnown }

// LeapSecond returns the leap second state bits.
func (dt *DateTime) LeapSecond() (uint8, bool) { return dt.leap, dt.leapKnown }

// LeapSecondAnnounced reports whether a leap second is announced.
func (dt *DateTime) LeapSecondAnnounced() bool {
	return dt.leapKnown && dt.leap&LeapAnnounced != 0
}

// LeapSecondProcessed reports whether the last minute carried a leap second.
func (dt *DateTime) LeapSecondProcessed() bool {
	return dt.leapKnown && dt.leap&LeapProcessed != 0
}

// JumpYear reports whether the last year update disagreed with the expected value.
func (dt *DateTime) JumpYear() bool { return dt.jumpYear }

// JumpMonth reports whether the last month update disagreed with the expected value.
func (dt *DateTime) JumpMonth() bool { return dt.jumpMonth }

// JumpDay reports whether the last day update disagreed with the expected value.
func (dt *DateTime) JumpDay() bool { return dt.jumpDay }

// JumpWeekday reports whether the last weekday update disagreed with the expected value.
func (dt *DateTime) JumpWeekday() bool { return dt.jumpWeekday }

// JumpHour reports whether the last hour update disagreed with the expected value.
func (dt *DateTime) JumpHour() bool { return dt.jumpHour }

// JumpMinute reports whether the last minute update disagreed with the expected value.
func (dt *DateTime) JumpMinute() bool { return dt.jumpMinute }

// MinutesRunning returns the number of minutes processed so far.
func (dt *DateTime) MinutesRunning() int { return dt.minutesRunning }

// IsValid reports whether every date, time and DST field is determined.
func (dt *DateTime) IsValid() bool {
	return dt.year.ok && dt.month.ok && dt.day.ok && dt.weekday.ok &&
		dt.hour.ok && dt.minute.ok && dt.dstKnown
}

// ClearJumps resets all jump flags.
func (dt *DateTime) ClearJumps() {
	dt.jumpYear = false
	dt.jumpMonth = false
	dt.jumpDay = false
	dt.jumpWeekday = false
	dt.jumpHour = false
	dt.jumpMinute = false
	dt.dst &^= DSTJump
}

// BumpMinutesRunning counts one more processed minute.
func (dt *DateTime) BumpMinutesRunning() {
	dt.minutesRunning++
	if dt.minute.ok && dt.minute.value == 0 {
		dt.hourMinutes = 0
		return
	}
	dt.hourMinutes++
}

// Time converts a valid value to a time.Time in the broadcast's local zone
// (CET or CEST). ok is false when any field is undetermined.
func (dt *DateTime) Time() (t time.Time, ok bool) {
	if !dt.IsValid() {
		return time.Time{}, false
	}
	loc := cet
	if dt.dst&DSTSummer != 0 {
		loc = cest
	}
	return time.Date(2000+int(dt.year.value), time.Month(dt.month.value), int(dt.day.value),
		int(dt.hour.value), int(dt.minute.value), 0, 0, loc), true
}

var (
	cet  = time.FixedZone("CET", 1*60*60)
	cest = time.FixedZone("CEST", 2*60*60)
)
