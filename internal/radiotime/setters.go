package radiotime

// set stores value when it is valid and within [lo, hi]. A jump is flagged
// when checkJump is set and a stored value is replaced by a different one.
// The new value is kept either way: the broadcast wins over our own count.
func set(f *field, jump *bool, value uint8, valid, checkJump bool, lo, hi uint8) {
	if !valid || value < lo || value > hi {
		return
	}
	*jump = checkJump && f.ok && f.value != value
	f.value = value
	f.ok = true
}

// SetMinute updates the minute.
func (dt *DateTime) SetMinute(value uint8, valid, checkJump bool) {
	set(&dt.minute, &dt.jumpMinute, value, valid, checkJump, 0, 59)
}

// SetHour updates the hour.
func (dt *DateTime) SetHour(value uint8, valid, checkJump bool) {
	set(&dt.hour, &dt.jumpHour, value, valid, checkJump, 0, 23)
}

// SetWeekday updates the weekday, Monday = 1 to Sunday = 7.
func (dt *DateTime) SetWeekday(value uint8, valid, checkJump bool) {
	set(&dt.weekday, &dt.jumpWeekday, value, valid, checkJump, 1, Sunday)
}

// SetDay updates the day of the month. When the year and month are known the
// day is checked against the length of that month.
func (dt *DateTime) SetDay(value uint8, valid, checkJump bool) {
	hi := uint8(31)
	if dt.year.ok && dt.month.ok {
		hi = LastDay(dt.year.value, dt.month.value)
	}
	set(&dt.day, &dt.jumpDay, value, valid, checkJump, 1, hi)
}

// SetMonth updates the month.
func (dt *DateTime) SetMonth(value uint8, valid, checkJump bool) {
	set(&dt.month, &dt.jumpMonth, value, valid, checkJump, 1, 12)
}

// SetYear updates the two-digit year.
func (dt *DateTime) SetYear(value uint8, valid, checkJump bool) {
	set(&dt.year, &dt.jumpYear, value, valid, checkJump, 0, 99)
}

// SetDST updates the DST state. summer is nil when bits 17 and 18 could not
// be determined, in which case nothing changes. announce is nil when bit 16
// could not be read; the summer flag is still stored but the minute does not
// count towards an announcement.
//
// An announcement counts when it was received in the majority of the minutes
// of this hour. At the top of the hour an announced change is marked as
// processed; an unannounced change is flagged as a jump.
func (dt *DateTime) SetDST(summer, announce *bool, checkJump bool) {
	if summer == nil {
		return
	}
	if announce != nil && *announce {
		dt.dstCount++
	}
	topOfHour := dt.minute.ok && dt.minute.value == 0
	announced := dt.dstCount*2 > dt.hourMinutes

	var state uint8
	if *summer {
		state |= DSTSummer
	}
	if dt.dstKnown && (dt.dst&DSTSummer != 0) != *summer {
		if topOfHour && (announced || dt.dst&DSTAnnounced != 0) {
			state |= DSTProcessed
		} else if checkJump {
			state |= DSTJump
		}
	}
	if topOfHour {
		dt.dstCount = 0
	} else if announced {
		state |= DSTAnnounced
	}
	dt.dst = state
	dt.dstKnown = true
}

// SetLeapSecond updates the leap second state. announce is nil when the
// broadcast bit could not be determined. minuteLength is the length in
// seconds of the minute that was just received.
func (dt *DateTime) SetLeapSecond(announce *bool, minuteLength int) {
	if announce == nil {
		return
	}
	wasAnnounced := dt.LeapSecondAnnounced()
	if !dt.leapKnown {
		dt.leap = 0
		dt.leapKnown = true
	}
	dt.leap &^= LeapProcessed | LeapMissing
	if *announce {
		dt.leapCount++
	}
	announced := dt.leapCount*2 > dt.hourMinutes

	if dt.minute.ok && dt.minute.value == 0 {
		if wasAnnounced || announced {
			if minuteLength == 61 {
				dt.leap |= LeapProcessed
			} else {
				dt.leap |= LeapMissing
			}
		}
		dt.leap &^= LeapAnnounced
		dt.leapCount = 0
		return
	}
	if announced {
		dt.leap |= LeapAnnounced
	} else {
		dt.leap &^= LeapAnnounced
	}
}
