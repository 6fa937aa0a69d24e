package util

import "time"

const daysPerYear = 365.25

// YearFraction returns the calendar years between start and end. It is
// negative when end precedes start.
func YearFraction(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / daysPerYear
}

// TradingDays counts weekdays in [start, end]. Exchange holidays are not
// excluded.
func TradingDays(start, end time.Time) int {
	start = truncateDay(start)
	end = truncateDay(end)
	n := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return n
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(time.DateOnly, s)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
