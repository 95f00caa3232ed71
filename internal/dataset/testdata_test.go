package dataset

// monthly builds a one-variable dataset with numeric noleap times.
func monthly(times []any, vals []any, attrs Attrs) *Dataset {
	ds := New()
	ds.Attrs = attrs
	ds.Coords["time"] = &Variable{
		Dims:  []string{"time"},
		Shape: []int{len(times)},
		Attrs: Attrs{"units": "days since 2000-01-01", "calendar": "noleap", "standard_name": "time"},
		Data:  times,
	}
	ds.Coords["lat"] = New1D("lat", []any{10.0}, Attrs{"units": "degrees_north"})
	ds.DataVars["tas"] = &Variable{
		Dims:  []string{"time", "lat"},
		Shape: []int{len(vals), 1},
		Attrs: Attrs{"units": "K"},
		Data:  vals,
	}
	return ds
}
