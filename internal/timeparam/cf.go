package timeparam

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Calendar is a CF calendar name in its canonical spelling.
type Calendar string

const (
	Standard Calendar = "standard"
	NoLeap   Calendar = "noleap"
	AllLeap  Calendar = "all_leap"
	Day360   Calendar = "360_day"
)

// ParseCalendar maps CF calendar aliases onto a Calendar. Empty is standard.
func ParseCalendar(s string) (Calendar, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "gregorian", "proleptic_gregorian":
		return Standard, nil
	case "noleap", "365_day":
		return NoLeap, nil
	case "all_leap", "366_day":
		return AllLeap, nil
	case "360_day":
		return Day360, nil
	}
	return "", fmt.Errorf("timeparam: unsupported calendar %q", s)
}

var (
	noLeapMonths  = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	allLeapMonths = [12]int{31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	day360Months  = [12]int{30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30, 30}
)

func (c Calendar) months() *[12]int {
	switch c {
	case NoLeap:
		return &noLeapMonths
	case AllLeap:
		return &allLeapMonths
	case Day360:
		return &day360Months
	}
	return nil
}

// Valid reports whether t is a real date in calendar c.
func (c Calendar) Valid(t Time) bool {
	if t.Month < 1 || t.Month > 12 || t.Day < 1 {
		return false
	}
	if ml := c.months(); ml != nil {
		return t.Day <= ml[t.Month-1]
	}
	g := time.Date(t.Year, time.Month(t.Month), t.Day, 0, 0, 0, 0, time.UTC)
	return g.Day() == t.Day
}

// Units is a parsed CF "<unit> since <date>" string.
type Units struct {
	Step time.Duration
	Ref  Time
}

// ParseUnits reads e.g. "days since 1850-01-01 00:00:00".
func ParseUnits(s string) (Units, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(s), " since ")
	if !ok {
		return Units{}, fmt.Errorf("timeparam: units %q lack 'since'", s)
	}
	var step time.Duration
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "days", "day", "d":
		step = 24 * time.Hour
	case "hours", "hour", "h", "hr":
		step = time.Hour
	case "minutes", "minute", "min":
		step = time.Minute
	case "seconds", "second", "s", "sec":
		step = time.Second
	default:
		return Units{}, fmt.Errorf("timeparam: unsupported time unit %q", unit)
	}
	t, err := ParseTime(stripOffset(ref))
	if err != nil {
		return Units{}, err
	}
	return Units{Step: step, Ref: t}, nil
}

// stripOffset drops a trailing timezone such as " UTC", "Z", "+00:00" or
// "-05:00" from a reference date. A bare signed offset after the date,
// as in "1850-01-01 -5", is also dropped.
func stripOffset(ref string) string {
	ref = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(ref), "UTC"))
	date, clock, hasClock := strings.Cut(strings.Replace(ref, " ", "T", 1), "T")
	if !hasClock {
		return date
	}
	if i := strings.IndexAny(clock, "+-"); i >= 0 {
		clock = strings.TrimSpace(clock[:i])
	}
	clock = strings.TrimSuffix(strings.TrimSpace(clock), "Z")
	if clock == "" {
		return date
	}
	return date + "T" + clock
}

// DecodeCF converts numeric offsets into timestamps under the given calendar.
func DecodeCF(values []float64, units, calendar string) ([]Time, error) {
	u, err := ParseUnits(units)
	if err != nil {
		return nil, err
	}
	cal, err := ParseCalendar(calendar)
	if err != nil {
		return nil, err
	}
	if !cal.Valid(u.Ref) {
		return nil, fmt.Errorf("timeparam: reference date %s is not valid in calendar %s", u.Ref, cal)
	}
	out := make([]Time, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("timeparam: non-finite time value at index %d", i)
		}
		secs := int64(math.Round(v * u.Step.Seconds()))
		out[i] = cal.addSeconds(u.Ref, secs)
	}
	return out, nil
}

func floorDiv(a, b int64) (q, r int64) {
	q, r = a/b, a%b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

func (c Calendar) addSeconds(ref Time, secs int64) Time {
	refSecs := int64(ref.Hour*3600 + ref.Minute*60 + ref.Second)
	days, rem := floorDiv(refSecs+secs, 86400)

	var y, m, d int
	if ml := c.months(); ml != nil {
		y, m, d = c.addDaysFixed(ml, ref, days)
	} else {
		g := time.Date(ref.Year, time.Month(ref.Month), ref.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, int(days))
		y, m, d = g.Year(), int(g.Month()), g.Day()
	}
	return Time{
		Year: y, Month: m, Day: d,
		Hour: int(rem / 3600), Minute: int(rem % 3600 / 60), Second: int(rem % 60),
	}
}

// addDaysFixed handles calendars where every year has the same length.
func (c Calendar) addDaysFixed(ml *[12]int, ref Time, days int64) (int, int, int) {
	var cum [13]int64
	for i, n := range ml {
		cum[i+1] = cum[i] + int64(n)
	}
	yearLen := cum[12]
	ord := int64(ref.Year)*yearLen + cum[ref.Month-1] + int64(ref.Day-1) + days
	y, doy := floorDiv(ord, yearLen)
	m := 0
	for m < 11 && doy >= cum[m+1] {
		m++
	}
	return int(y), m + 1, int(doy-cum[m]) + 1
}

// seconds counts seconds from 0001-01-01T00:00:00 to t in calendar c.
func (c Calendar) seconds(t Time) int64 {
	clock := int64(t.Hour*3600 + t.Minute*60 + t.Second)
	if ml := c.months(); ml != nil {
		var cum [13]int64
		for i, n := range ml {
			cum[i+1] = cum[i] + int64(n)
		}
		days := int64(t.Year-1)*cum[12] + cum[t.Month-1] + int64(t.Day-1)
		return days*86400 + clock
	}
	g := time.Date(t.Year, time.Month(t.Month), t.Day, 0, 0, 0, 0, time.UTC)
	epoch := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	return g.Unix() - epoch.Unix() + clock
}

// DaysBetween returns the whole days from a to b in calendar c, rounded
// towards negative infinity.
func (c Calendar) DaysBetween(a, b Time) int64 {
	d, _ := floorDiv(c.seconds(b)-c.seconds(a), 86400)
	return d
}
