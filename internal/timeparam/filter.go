package timeparam

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the active form of a Filter.
type Kind int

const (
	KindNone Kind = iota
	KindInterval
	KindSeries
	KindComponents
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInterval:
		return "interval"
	case KindSeries:
		return "series"
	case KindComponents:
		return "components"
	}
	return "unknown"
}

// Filter is an immutable time filter. Only the fields of the active kind are
// meaningful.
type Filter struct {
	Kind Kind

	// Interval ends; nil means unbounded.
	Start, End *Time

	Series []Time

	// Components maps year, month, day, hour, minute or second to the
	// accepted values.
	Components map[string][]int
}

// None is the absent filter.
var None = Filter{}

// NewInterval builds an interval filter; either end may be nil.
func NewInterval(start, end *Time) Filter {
	return Filter{Kind: KindInterval, Start: start, End: end}
}

// NewSeries builds a series filter.
func NewSeries(ts ...Time) Filter {
	cp := make([]Time, len(ts))
	copy(cp, ts)
	return Filter{Kind: KindSeries, Series: cp}
}

// IsNone reports whether the filter is absent.
func (f Filter) IsNone() bool { return f.Kind == KindNone }

// String renders the filter in the syntax accepted by Parse and
// ParseComponents.
func (f Filter) String() string {
	switch f.Kind {
	case KindInterval:
		var a, b string
		if f.Start != nil {
			a = f.Start.String()
		}
		if f.End != nil {
			b = f.End.String()
		}
		return a + "/" + b
	case KindSeries:
		parts := make([]string, len(f.Series))
		for i, t := range f.Series {
			parts[i] = t.String()
		}
		return strings.Join(parts, ",")
	case KindComponents:
		keys := make([]string, 0, len(f.Components))
		for k := range f.Components {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return componentRank[keys[i]] < componentRank[keys[j]] })
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			vals := make([]string, len(f.Components[k]))
			for i, v := range f.Components[k] {
				vals[i] = strconv.Itoa(v)
			}
			parts = append(parts, k+":"+strings.Join(vals, ","))
		}
		return strings.Join(parts, "|")
	}
	return ""
}

// Parse reads "start/end" (either side may be empty) or "t1,t2,...". A
// single timestamp is a one-element series. Empty input is None.
func Parse(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, nil
	}
	if a, b, ok := strings.Cut(s, "/"); ok {
		var f Filter
		f.Kind = KindInterval
		if strings.TrimSpace(a) != "" {
			t, err := ParseTime(a)
			if err != nil {
				return None, err
			}
			f.Start = &t
		}
		if strings.TrimSpace(b) != "" {
			t, err := ParseTime(b)
			if err != nil {
				return None, err
			}
			f.End = &t
		}
		if f.Start != nil && f.End != nil && f.Start.Compare(*f.End) > 0 {
			return None, fmt.Errorf("timeparam: start %s is after end %s", f.Start, f.End)
		}
		return f, nil
	}
	parts := strings.Split(s, ",")
	ts := make([]Time, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		t, err := ParseTime(p)
		if err != nil {
			return None, err
		}
		ts = append(ts, t)
	}
	if len(ts) == 0 {
		return None, nil
	}
	return NewSeries(ts...), nil
}

var componentRank = map[string]int{
	"year": 0, "month": 1, "day": 2, "hour": 3, "minute": 4, "second": 5,
}

var monthNames = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ParseComponents reads "year:2000,2001|month:dec,jan,feb". Month values may
// be names (first three letters are significant) or numbers.
func ParseComponents(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, nil
	}
	comps := map[string][]int{}
	for _, group := range strings.Split(s, "|") {
		key, vals, ok := strings.Cut(group, ":")
		key = strings.ToLower(strings.TrimSpace(key))
		if !ok {
			return None, fmt.Errorf("timeparam: component %q has no values", group)
		}
		if _, known := componentRank[key]; !known {
			return None, fmt.Errorf("timeparam: unknown time component %q", key)
		}
		for _, v := range strings.Split(vals, ",") {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "" {
				continue
			}
			if key == "month" && len(v) >= 3 {
				if m, ok := monthNames[v[:3]]; ok {
					comps[key] = append(comps[key], m)
					continue
				}
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return None, fmt.Errorf("timeparam: bad %s value %q", key, v)
			}
			comps[key] = append(comps[key], n)
		}
	}
	if len(comps) == 0 {
		return None, nil
	}
	return Filter{Kind: KindComponents, Components: comps}, nil
}

// Bounds returns the closed window a catalog should search. Open ends use
// MinTime and MaxTime.
func (f Filter) Bounds() (Time, Time) {
	switch f.Kind {
	case KindInterval:
		lo, hi := MinTime, MaxTime
		if f.Start != nil {
			lo = *f.Start
		}
		if f.End != nil {
			hi = *f.End
		}
		return lo, hi
	case KindSeries:
		if len(f.Series) == 0 {
			return MinTime, MaxTime
		}
		lo, hi := f.Series[0], f.Series[0]
		for _, t := range f.Series[1:] {
			if t.Compare(lo) < 0 {
				lo = t
			}
			if t.Compare(hi) > 0 {
				hi = t
			}
		}
		return lo, hi
	case KindComponents:
		years := f.Components["year"]
		if len(years) == 0 {
			return MinTime, MaxTime
		}
		lo, hi := years[0], years[0]
		for _, y := range years[1:] {
			lo = min(lo, y)
			hi = max(hi, y)
		}
		return Time{Year: lo, Month: 1, Day: 1}, Time{Year: hi, Month: 12, Day: 31, Hour: 23, Minute: 59, Second: 59}
	}
	return MinTime, MaxTime
}

// Coverage describes the years a file spans. Years, when set, lists the
// distinct years actually present; otherwise every year in [Min, Max] is
// assumed present.
type Coverage struct {
	Known    bool
	Min, Max int
	Years    []int
}

// CoverageOf derives a coverage from decoded timestamps.
func CoverageOf(ts []Time) Coverage {
	if len(ts) == 0 {
		return Coverage{}
	}
	seen := map[int]struct{}{}
	c := Coverage{Known: true, Min: math.MaxInt, Max: math.MinInt}
	for _, t := range ts {
		c.Min = min(c.Min, t.Year)
		c.Max = max(c.Max, t.Year)
		if _, ok := seen[t.Year]; !ok {
			seen[t.Year] = struct{}{}
			c.Years = append(c.Years, t.Year)
		}
	}
	sort.Ints(c.Years)
	return c
}

func (c Coverage) hasYear(y int) bool {
	if c.Years == nil {
		return y >= c.Min && y <= c.Max
	}
	i := sort.SearchInts(c.Years, y)
	return i < len(c.Years) && c.Years[i] == y
}

// Keep reports whether a file with coverage c satisfies the filter. Unknown
// coverage is kept.
func (f Filter) Keep(c Coverage) bool {
	if f.Kind == KindNone || !c.Known {
		return true
	}
	switch f.Kind {
	case KindInterval:
		lo, hi := math.MinInt, math.MaxInt
		if f.Start != nil {
			lo = f.Start.Year
		}
		if f.End != nil {
			hi = f.End.Year
		}
		return c.Min <= hi && c.Max >= lo
	case KindSeries:
		for _, t := range f.Series {
			if c.hasYear(t.Year) {
				return true
			}
		}
		return false
	case KindComponents:
		years, ok := f.Components["year"]
		if !ok {
			return true
		}
		for _, y := range years {
			if c.hasYear(y) {
				return true
			}
		}
		return false
	}
	return true
}
