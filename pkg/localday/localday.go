// Package localday buckets instants into calendar days observed in a fixed
// reference timezone, independent of the host timezone.
package localday

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const Zone = "Asia/Ho_Chi_Minh"

var loc = mustLoad(Zone)

func mustLoad(name string) *time.Location {
	l, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("localday: load %s: %v", name, err))
	}
	return l
}

// Location returns the reference timezone.
func Location() *time.Location { return loc }

// StartOfDay returns the UTC instant of 00:00 in the reference zone on the
// calendar date t falls on there.
func StartOfDay(t time.Time) time.Time {
	return StartOfDayIn(t, loc)
}

// Today is StartOfDay(time.Now()).
func Today() time.Time {
	return StartOfDay(time.Now())
}

// StartOfDayIn is StartOfDay for an arbitrary zone. time.Date normalizes
// wall clocks that fall into a DST gap.
func StartOfDayIn(t time.Time, l *time.Location) time.Time {
	lt := t.In(l)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, l).UTC()
}

// Date returns the start of the given local calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, loc).UTC()
}

// MonthRange returns [from, to) for a local calendar month; month is 1..12.
func MonthRange(year, month int) (from, to time.Time) {
	from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	to = from.AddDate(0, 1, 0)
	return from.UTC(), to.UTC()
}

// ParseYMD parses "2006-01-02" as a local calendar date.
func ParseYMD(s string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// ParseYM parses "2006-01" into year and month.
func ParseYM(s string) (int, int, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q: %w", s, err)
	}
	return t.Year(), int(t.Month()), nil
}

// Parse accepts either a bare local date or an RFC 3339 instant and returns
// the start of its local day.
func Parse(s string) (time.Time, error) {
	if t, err := ParseYMD(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return StartOfDay(t), nil
}

// MonthKey formats the local month of t as "2006-01".
func MonthKey(t time.Time) string {
	return t.In(loc).Format("2006-01")
}
