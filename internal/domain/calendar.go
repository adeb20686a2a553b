package domain

import "time"

// DateOf truncates t to midnight UTC of its calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from `from` to `to`.
// Negative when `to` is before `from`.
func DaysBetween(from, to time.Time) int32 {
	return int32(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// AgeOn returns the age in whole years of someone born on birth at the given date.
func AgeOn(birth, on time.Time) int32 {
	b, o := DateOf(birth), DateOf(on)
	age := o.Year() - b.Year()
	if o.Month() < b.Month() || (o.Month() == b.Month() && o.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return int32(age)
}
