package markethours

import "time"

// date is a calendar day with no time or location component.
type date struct {
	y int
	m time.Month
	d int
}

func dateOf(t time.Time) date {
	y, m, d := t.Date()
	return date{y, m, d}
}

func (d date) weekday() time.Weekday {
	return time.Date(d.y, d.m, d.d, 12, 0, 0, 0, time.UTC).Weekday()
}

func (d date) addDays(n int) date {
	return dateOf(time.Date(d.y, d.m, d.d+n, 12, 0, 0, 0, time.UTC))
}

// nthWeekday returns the n-th (1-based) given weekday of the month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) date {
	first := date{year, month, 1}
	offset := (int(wd) - int(first.weekday()) + 7) % 7
	return first.addDays(offset + 7*(n-1))
}

// lastWeekday returns the last given weekday of the month.
func lastWeekday(year int, month time.Month, wd time.Weekday) date {
	last := dateOf(time.Date(year, month+1, 0, 12, 0, 0, 0, time.UTC))
	offset := (int(last.weekday()) - int(wd) + 7) % 7
	return last.addDays(-offset)
}

// observed shifts a fixed-date holiday off the weekend: Saturday to Friday,
// Sunday to Monday.
func observed(d date) date {
	switch d.weekday() {
	case time.Saturday:
		return d.addDays(-1)
	case time.Sunday:
		return d.addDays(1)
	}
	return d
}

// easter returns Easter Sunday (Gregorian) using the anonymous algorithm.
func easter(year int) date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date{year, time.Month(month), day}
}

// nyseHolidays returns the full-day NYSE closures for a year.
func nyseHolidays(year int) []date {
	days := make([]date, 0, 10)

	// New Year's Day falling on Saturday is not observed on the prior Friday.
	ny := date{year, time.January, 1}
	switch ny.weekday() {
	case time.Saturday:
	case time.Sunday:
		days = append(days, ny.addDays(1))
	default:
		days = append(days, ny)
	}

	days = append(days,
		nthWeekday(year, time.January, time.Monday, 3),  // Martin Luther King Jr. Day
		nthWeekday(year, time.February, time.Monday, 3), // Presidents Day
		easter(year).addDays(-2),                        // Good Friday
		lastWeekday(year, time.May, time.Monday),        // Memorial Day
	)
	if year >= 2022 {
		days = append(days, observed(date{year, time.June, 19}))
	}
	days = append(days,
		observed(date{year, time.July, 4}),
		nthWeekday(year, time.September, time.Monday, 1),  // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4), // Thanksgiving
		observed(date{year, time.December, 25}),
	)
	return days
}
