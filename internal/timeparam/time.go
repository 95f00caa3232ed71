// Package timeparam parses time filters and decides whether a file's time
// coverage satisfies them. It also decodes numeric CF time axes under the
// calendars used by climate model output.
package timeparam

import (
	"fmt"
	"strconv"
	"strings"
)

// Time is a calendar-agnostic timestamp. Fields are not validated against a
// calendar, so 2000-02-30 is a legal 360_day date.
type Time struct {
	Year, Month, Day     int
	Hour, Minute, Second int
}

// Bounds used by catalogs for open interval ends.
var (
	MinTime = Time{Year: 1, Month: 1, Day: 1}
	MaxTime = Time{Year: 9999, Month: 12, Day: 30}
)

// Compare returns -1, 0 or 1.
func (t Time) Compare(o Time) int {
	a := [6]int{t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second}
	b := [6]int{o.Year, o.Month, o.Day, o.Hour, o.Minute, o.Second}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// String renders the ISO-like form used by catalogs: 2000-01-01T00:00:00.
func (t Time) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hour, t.Minute, t.Second)
}

// ParseTime accepts YYYY[-MM[-DD[Thh[:mm[:ss]]]]]. A space may replace the T.
// Missing month and day default to 1.
func ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Time{}, fmt.Errorf("timeparam: empty timestamp")
	}
	date, clock, _ := strings.Cut(strings.Replace(s, " ", "T", 1), "T")

	t := Time{Month: 1, Day: 1}
	dparts := strings.Split(date, "-")
	if len(dparts) > 3 {
		return Time{}, fmt.Errorf("timeparam: bad date %q", s)
	}
	dst := []*int{&t.Year, &t.Month, &t.Day}
	for i, p := range dparts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Time{}, fmt.Errorf("timeparam: bad date %q: %w", s, err)
		}
		*dst[i] = n
	}
	if clock != "" {
		clock = strings.TrimSuffix(clock, "Z")
		cparts := strings.Split(clock, ":")
		if len(cparts) > 3 {
			return Time{}, fmt.Errorf("timeparam: bad clock %q", s)
		}
		cdst := []*int{&t.Hour, &t.Minute, &t.Second}
		for i, p := range cparts {
			// Fractional seconds are truncated.
			p, _, _ = strings.Cut(p, ".")
			n, err := strconv.Atoi(p)
			if err != nil {
				return Time{}, fmt.Errorf("timeparam: bad clock %q: %w", s, err)
			}
			*cdst[i] = n
		}
	}
	if t.Month < 1 || t.Month > 12 {
		return Time{}, fmt.Errorf("timeparam: month out of range in %q", s)
	}
	if t.Day < 1 || t.Day > 31 {
		return Time{}, fmt.Errorf("timeparam: day out of range in %q", s)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 60 {
		return Time{}, fmt.Errorf("timeparam: clock out of range in %q", s)
	}
	return t, nil
}

// LeadingYear returns the leading run of at least four digits in s.
func LeadingYear(s string) (int, bool) {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n < 4 {
		return 0, false
	}
	// Tokens like 200001011200 carry the year in the first four digits.
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return 0, false
	}
	return y, true
}
