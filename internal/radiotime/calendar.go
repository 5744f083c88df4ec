package radiotime

// IsLeapYear reports whether the two-digit year 20yy is a leap year.
func IsLeapYear(year uint8) bool {
	return year%4 == 0
}

// LastDay returns the number of days in the given month of year 20yy, or 0
// for an invalid month.
func LastDay(year, month uint8) uint8 {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

// AddMinute advances the value by one minute, rolling over hours, days,
// months and years. An announced DST change is applied at the top of the
// hour. It returns false, leaving the value untouched, when any date or time
// field is undetermined.
func (dt *DateTime) AddMinute() bool {
	if !(dt.year.ok && dt.month.ok && dt.day.ok && dt.weekday.ok && dt.hour.ok && dt.minute.ok) {
		return false
	}
	dt.minute.value++
	if dt.minute.value < 60 {
		return true
	}
	dt.minute.value = 0

	hours := 1
	if dt.dstKnown && dt.dst&DSTAnnounced != 0 {
		if dt.dst&DSTSummer != 0 {
			hours = 0 // 03:00 CEST becomes 02:00 CET
		} else {
			hours = 2 // 02:00 CET becomes 03:00 CEST
		}
	}
	h := int(dt.hour.value) + hours
	if h < 24 {
		dt.hour.value = uint8(h)
		return true
	}
	dt.hour.value = uint8(h - 24)
	dt.addDay()
	return true
}

func (dt *DateTime) addDay() {
	dt.weekday.value = dt.weekday.value%Sunday + 1
	dt.day.value++
	if dt.day.value <= LastDay(dt.year.value, dt.month.value) {
		return
	}
	dt.day.value = 1
	dt.month.value++
	if dt.month.value <= 12 {
		return
	}
	dt.month.value = 1
	dt.year.value = (dt.year.value + 1) % 100
}
