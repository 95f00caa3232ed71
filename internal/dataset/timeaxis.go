package dataset

import (
	"errors"
	"fmt"

	"daops/internal/timeparam"
)

// TimeDim is the shared ordering dimension for multi-file merges.
const TimeDim = "time"

// ErrNoTimeAxis is returned when the dataset has no time coordinate.
var ErrNoTimeAxis = errors.New("dataset: no time coordinate")

// TimeAttr returns a time-coordinate attribute from attrs or, failing that,
// from encoding (where decoded files keep units and calendar).
func (v *Variable) TimeAttr(key string) string {
	if s, ok := v.Attrs[key].(string); ok {
		return s
	}
	if s, ok := v.Encoding[key].(string); ok {
		return s
	}
	return ""
}

// TimeAxis decodes the time coordinate. String values are parsed as
// timestamps; numeric values are decoded with the CF units and calendar.
func (d *Dataset) TimeAxis() ([]timeparam.Time, error) {
	v, ok := d.Coords[TimeDim]
	if !ok {
		return nil, ErrNoTimeAxis
	}
	return decodeTimes(v)
}

func decodeTimes(v *Variable) ([]timeparam.Time, error) {
	if len(v.Data) == 0 {
		return nil, nil
	}
	if _, ok := v.Data[0].(string); ok {
		out := make([]timeparam.Time, len(v.Data))
		for i, x := range v.Data {
			s, ok := x.(string)
			if !ok {
				return nil, fmt.Errorf("dataset: mixed time values at index %d", i)
			}
			t, err := timeparam.ParseTime(s)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	}
	vals, err := v.Floats()
	if err != nil {
		return nil, err
	}
	units := v.TimeAttr("units")
	if units == "" {
		return nil, fmt.Errorf("dataset: numeric time coordinate has no units")
	}
	return timeparam.DecodeCF(vals, units, v.TimeAttr("calendar"))
}

// Calendar returns the time coordinate's canonical calendar name.
func (d *Dataset) Calendar() (timeparam.Calendar, error) {
	v, ok := d.Coords[TimeDim]
	if !ok {
		return "", ErrNoTimeAxis
	}
	return timeparam.ParseCalendar(v.TimeAttr("calendar"))
}
