package dcf77

// Bit positions within a minute frame.
const (
	bitStart        = 0
	bitThirdFirst   = 1
	bitThirdLast    = 14
	bitCall         = 15
	bitDSTAnnounce  = 16
	bitDSTSummer    = 17
	bitDSTWinter    = 18
	bitLeapAnnounce = 19
	bitTimeStart    = 20
	bitMinuteFirst  = 21
	bitMinuteLast   = 27
	bitMinuteParity = 28
	bitHourFirst    = 29
	bitHourLast     = 34
	bitHourParity   = 35
	bitDayFirst     = 36
	bitDayLast      = 41
	bitWeekdayFirst = 42
	bitWeekdayLast  = 44
	bitMonthFirst   = 45
	bitMonthLast    = 49
	bitYearFirst    = 50
	bitYearLast     = 57
	bitDateParity   = 58
	bitLeapSecond   = 59
)

// ThisMinuteLength returns the length in seconds of the minute last decoded.
// An undetermined leap second state counts as a regular minute.
func (d *Decoder) ThisMinuteLength() int {
	if d.dt.LeapSecondProcessed() {
		return LeapMinuteLength
	}
	return MinuteLength
}

// NextMinuteLength returns the length in seconds of the minute being received.
// An undetermined leap second state counts as a regular minute.
func (d *Decoder) NextMinuteLength() int {
	if m, ok := d.dt.Minute(); ok && m == 59 && d.dt.LeapSecondAnnounced() {
		return LeapMinuteLength
	}
	return MinuteLength
}

// AdvanceSecond moves to the next second, or back to 0 when a minute marker
// was seen. If the marker was missed and the second would run past the end of
// the minute, it wraps to 0 and returns false.
//
// In offline mode call AdvanceSecond after DecodeTime; in streaming mode call
// it before.
func (d *Decoder) AdvanceSecond() bool {
	length := d.NextMinuteLength()
	d.prevSecond = d.second
	if d.newMinute {
		d.second = 0
		return true
	}
	d.second++
	if d.second >= length {
		d.second = 0
		d.stats.Desyncs++
		return false
	}
	return true
}

// frameEnd reports whether the minute marker second of a minute of the given
// length has been reached.
func (d *Decoder) frameEnd(length int) bool {
	marker := length - 1
	if d.mode == ModeStreaming {
		return d.prevSecond+1 == marker
	}
	return d.second == marker
}

// DecodeTime decodes the minute frame once it is complete and hands the
// fields to the calendar aggregate. With strict set, every field is trusted
// only when all parities, bit 0, bit 20 and the DST bits check out.
func (d *Decoder) DecodeTime(strict bool) {
	length := d.NextMinuteLength()
	d.frameComplete = d.frameEnd(length)
	if !d.frameComplete {
		return
	}

	// Jumps are judged against the previous minute plus one, so only once
	// a minute has been decoded and could be advanced.
	checkJump := false
	if !d.firstMinute {
		d.dt.ClearJumps()
		checkJump = d.dt.AddMinute()
	}

	f := &d.frame
	d.bit0 = f.Get(bitStart)
	d.thirdParty, d.thirdPartyOK = f.binary(bitThirdFirst, bitThirdLast)
	d.callBit = f.Get(bitCall)
	d.bit20 = f.Get(bitTimeStart)

	d.parity1 = f.parity(bitMinuteFirst, bitMinuteLast, bitMinuteParity)
	d.parity2 = f.parity(bitHourFirst, bitHourLast, bitHourParity)
	d.parity3 = f.parity(bitDayFirst, bitYearLast, bitDateParity)

	minute, minuteOK := f.bcd(bitMinuteFirst, bitMinuteLast)
	hour, hourOK := f.bcd(bitHourFirst, bitHourLast)
	day, dayOK := f.bcd(bitDayFirst, bitDayLast)
	weekday, weekdayOK := f.bcd(bitWeekdayFirst, bitWeekdayLast)
	month, monthOK := f.bcd(bitMonthFirst, bitMonthLast)
	year, yearOK := f.bcd(bitYearFirst, bitYearLast)

	dst := Unknown
	if b17, b18 := f.Get(bitDSTSummer), f.Get(bitDSTWinter); b17.Known() && b18.Known() && b17 != b18 {
		dst = b17
	}

	bit0OK := d.bit0 == Zero
	bit20OK := d.bit20 == One
	minuteValid := d.parity1 == ParityOK
	hourValid := d.parity2 == ParityOK
	dateValid := d.parity3 == ParityOK
	if strict {
		ok := minuteValid && hourValid && dateValid && bit0OK && bit20OK && dst.Known()
		minuteValid, hourValid, dateValid = ok, ok, ok
	}

	d.fields = Fields{
		Minute:  Field{Value: minute, OK: minuteOK, Valid: minuteValid},
		Hour:    Field{Value: hour, OK: hourOK, Valid: hourValid},
		Weekday: Field{Value: weekday, OK: weekdayOK, Valid: dateValid},
		Day:     Field{Value: day, OK: dayOK, Valid: dateValid},
		Month:   Field{Value: month, OK: monthOK, Valid: dateValid},
		Year:    Field{Value: year, OK: yearOK, Valid: dateValid},
	}

	d.dt.SetMinute(minute, minuteOK && minuteValid, checkJump)
	d.dt.SetHour(hour, hourOK && hourValid, checkJump)
	d.dt.SetWeekday(weekday, weekdayOK && dateValid, checkJump)
	d.dt.SetMonth(month, monthOK && dateValid, checkJump)
	d.dt.SetYear(year, yearOK && dateValid, checkJump)
	// Day after month and year so the aggregate can check the day against them.
	d.dt.SetDay(day, dayOK && dateValid, checkJump)
	d.dt.SetDST(dst.Ptr(), f.Get(bitDSTAnnounce).Ptr(), checkJump)

	d.dt.SetLeapSecond(f.Get(bitLeapAnnounce).Ptr(), length)
	d.leapSecondIsOne = Unknown
	if d.dt.LeapSecondProcessed() {
		d.leapSecondIsOne = BitOf(f.Get(bitLeapSecond) == One)
	}

	if d.firstMinute && bit0OK && bit20OK && d.dt.IsValid() {
		d.firstMinute = false
	}

	d.dt.BumpMinutesRunning()
	d.stats.Minutes++
}
