package dataset

import (
	"errors"
	"fmt"
	"sort"

	"daops/internal/timeparam"
)

// ErrNothingToMerge is returned by Merge for an empty input.
var ErrNothingToMerge = errors.New("dataset: nothing to merge")

// Merge combines per-file datasets into one. Variables with a time
// dimension are concatenated along it (outer join); a timestamp present in
// several parts is taken from the earliest part only. When every part's
// time axis decodes, parts are ordered by their first timestamp and the
// merged axis is sorted; otherwise the input order is kept. Every part must
// pass Validate. Variables without a time dimension, variable
// metadata and global attributes come from the first part that has them.
// A part lacking a time-varying variable contributes nil values for it.
func Merge(parts []*Dataset) (*Dataset, error) {
	for i, p := range parts {
		if p == nil {
			return nil, fmt.Errorf("dataset: part %d is nil", i)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("dataset: part %d: %w", i, err)
		}
	}
	switch len(parts) {
	case 0:
		return nil, ErrNothingToMerge
	case 1:
		return parts[0].Clone(), nil
	}

	attrs := parts[0].Attrs.Clone()
	hasTime := false
	for _, p := range parts {
		if _, ok := p.Coords[TimeDim]; ok {
			hasTime = true
			break
		}
	}
	if !hasTime {
		out := unionFirstWins(parts)
		out.Attrs = attrs
		return out, out.Validate()
	}

	if err := checkTimeEncoding(parts); err != nil {
		return nil, err
	}
	ordered, keys, times := orderByTime(parts)

	// Pick (part, index) pairs for every distinct timestamp.
	type pick struct{ part, idx int }
	var picks []pick
	seen := map[string]bool{}
	for pi := range ordered {
		for i, k := range keys[pi] {
			if seen[k] {
				continue
			}
			seen[k] = true
			picks = append(picks, pick{pi, i})
		}
	}
	if times != nil {
		sort.SliceStable(picks, func(a, b int) bool {
			return times[picks[a].part][picks[a].idx].Compare(times[picks[b].part][picks[b].idx]) < 0
		})
	}

	out := New()
	out.Attrs = attrs
	names := unionNames(ordered)
	for _, name := range names {
		first, isCoord := firstWith(ordered, name)
		if first.DimIndex(TimeDim) < 0 {
			cp := first.Clone()
			if isCoord {
				out.Coords[name] = cp
			} else {
				out.DataVars[name] = cp
			}
			continue
		}
		if first.DimIndex(TimeDim) != 0 {
			return nil, fmt.Errorf("dataset: %q must have time as its leading dimension to merge", name)
		}
		inner := 1
		for _, s := range first.Shape[1:] {
			inner *= s
		}
		data := make([]any, 0, len(picks)*inner)
		for _, pk := range picks {
			v, ok := ordered[pk.part].Var(name)
			if !ok {
				for j := 0; j < inner; j++ {
					data = append(data, nil)
				}
				continue
			}
			if len(v.Shape) != len(first.Shape) || v.DimIndex(TimeDim) != 0 || v.Size()/max(v.Shape[0], 1) != inner {
				return nil, fmt.Errorf("dataset: %q has incompatible shapes across files", name)
			}
			if v.Shape[0] != len(keys[pk.part]) || len(v.Data) != v.Size() {
				return nil, fmt.Errorf("dataset: %q has %d time steps but the time axis has %d", name, v.Shape[0], len(keys[pk.part]))
			}
			data = append(data, v.Data[pk.idx*inner:(pk.idx+1)*inner]...)
		}
		merged := &Variable{
			Dims:     append([]string{}, first.Dims...),
			Shape:    append([]int{len(picks)}, first.Shape[1:]...),
			Attrs:    first.Attrs.Clone(),
			Encoding: first.Encoding.Clone(),
			Data:     data,
		}
		if isCoord {
			out.Coords[name] = merged
		} else {
			out.DataVars[name] = merged
		}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

func unionNames(parts []*Dataset) []string {
	set := map[string]struct{}{}
	for _, p := range parts {
		for _, n := range p.VarNames() {
			set[n] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func firstWith(parts []*Dataset, name string) (*Variable, bool) {
	for _, p := range parts {
		if v, ok := p.Coords[name]; ok {
			return v, true
		}
		if v, ok := p.DataVars[name]; ok {
			return v, false
		}
	}
	return nil, false
}

func unionFirstWins(parts []*Dataset) *Dataset {
	out := New()
	for _, name := range unionNames(parts) {
		v, isCoord := firstWith(parts, name)
		if isCoord {
			out.Coords[name] = v.Clone()
		} else {
			out.DataVars[name] = v.Clone()
		}
	}
	return out
}

// checkTimeEncoding rejects parts whose numeric time axes use different
// units or calendars; their raw offsets cannot be concatenated.
func checkTimeEncoding(parts []*Dataset) error {
	var units, cal string
	set := false
	for _, p := range parts {
		t, ok := p.Coords[TimeDim]
		if !ok {
			return fmt.Errorf("dataset: some files lack a time coordinate")
		}
		u, c := t.TimeAttr("units"), t.TimeAttr("calendar")
		if !set {
			units, cal, set = u, c, true
			continue
		}
		if u != units || c != cal {
			return fmt.Errorf("dataset: time encoding differs across files (%q/%q vs %q/%q)", units, cal, u, c)
		}
	}
	return nil
}

// orderByTime sorts parts by first timestamp and returns the per-part
// de-duplication keys of each time value. The decoded times are returned
// only when every axis decodes.
func orderByTime(parts []*Dataset) ([]*Dataset, [][]string, [][]timeparam.Time) {
	type item struct {
		ds    *Dataset
		keys  []string
		times []timeparam.Time
	}
	items := make([]item, len(parts))
	allDecoded := true
	for i, p := range parts {
		tv := p.Coords[TimeDim]
		items[i].ds = p
		ts, err := decodeTimes(tv)
		if err != nil || len(ts) != len(tv.Data) {
			allDecoded = false
			items[i].keys = make([]string, len(tv.Data))
			for j, x := range tv.Data {
				items[i].keys[j] = fmt.Sprint(x)
			}
			continue
		}
		items[i].times = ts
		items[i].keys = make([]string, len(ts))
		for j, t := range ts {
			items[i].keys[j] = t.String()
		}
	}
	if allDecoded {
		sort.SliceStable(items, func(a, b int) bool {
			ka, kb := items[a].keys, items[b].keys
			if len(ka) == 0 || len(kb) == 0 {
				return len(ka) > len(kb)
			}
			return items[a].times[0].Compare(items[b].times[0]) < 0
		})
	}
	ds := make([]*Dataset, len(items))
	keys := make([][]string, len(items))
	var times [][]timeparam.Time
	if allDecoded {
		times = make([][]timeparam.Time, len(items))
	}
	for i, it := range items {
		ds[i], keys[i] = it.ds, it.keys
		if allDecoded {
			times[i] = it.times
		}
	}
	return ds, keys, times
}
