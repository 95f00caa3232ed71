package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daops/internal/config"
	"daops/internal/dataset"
	"daops/internal/fix"
	"daops/internal/registry"
)

const decadalID = "c3s-cmip6.DCPP.MOHC.HadGEM3-GC31-MM.dcppA-hindcast.s1960-r1i1p1f2.Amon.tas.gn.v20200417"

// sample is a small decadal-style dataset: tas(time, lat, lon) on a 360_day
// calendar with lat/lon/time bounds.
func sample() *dataset.Dataset {
	ds := dataset.New()
	ds.Attrs["further_info_url"] = "https://furtherinfo.es-doc.org/CMIP6.MOHC.HadGEM3-GC31-MM.dcppA-hindcast.none.r1i1p1f2"
	ds.Attrs["startdate"] = "s196011"
	ds.Coords["time"] = &dataset.Variable{
		Dims: []string{"time"}, Shape: []int{2},
		Attrs: dataset.Attrs{"units": "days since 1960-11-01", "calendar": "360_day", "bounds": "time_bnds"},
		Data:  []any{15.0, 45.0},
	}
	ds.Coords["lat"] = dataset.New1D("lat", []any{-45.0, 45.0}, dataset.Attrs{"standard_name": "latitude", "bounds": "lat_bnds"})
	ds.Coords["lon"] = dataset.New1D("lon", []any{90.0}, dataset.Attrs{"standard_name": "longitude", "bounds": "lon_bnds"})
	ds.DataVars["tas"] = &dataset.Variable{
		Dims: []string{"time", "lat", "lon"}, Shape: []int{2, 2, 1},
		Attrs: dataset.Attrs{"units": "K", "long_name": "Near-Surface Air Temperature"},
		Data:  []any{1.0e20, 280.0, 281.0, 1.0e20},
	}
	ds.DataVars["time_bnds"] = &dataset.Variable{Dims: []string{"time", "bnds"}, Shape: []int{2, 2}, Data: []any{0.0, 30.0, 30.0, 60.0}}
	return ds
}

func newRegistry() *registry.Registry {
	r := registry.New()
	Register(r)
	return r
}

func post(t *testing.T, reg *registry.Registry, name string, ds *dataset.Dataset, ops config.Options) *dataset.Dataset {
	t.Helper()
	fn, ok := reg.Post(name)
	require.True(t, ok, name)
	out, err := fn(decadalID, ds, ops)
	require.NoError(t, err)
	return out
}

func derive(t *testing.T, reg *registry.Registry, name string, ds *dataset.Dataset, args ...string) any {
	t.Helper()
	fn, ok := reg.Derive(name)
	require.True(t, ok, name)
	v, err := fn(decadalID, ds, args...)
	require.NoError(t, err)
	return v
}

func TestRegisteredOnDefault(t *testing.T) {
	_, ok := registry.Default.Post(EditVarAttrs)
	assert.True(t, ok)
	_, ok = registry.Default.Derive(GetLeadTimes)
	assert.True(t, ok)
	m := newRegistry().Manifest()
	assert.Len(t, m.Post, 11)
	assert.Len(t, m.Derive, 9)
}

func TestEditAttrs_ResolvesNestedDerive(t *testing.T) {
	t.Parallel()
	reg := newRegistry()

	ds := post(t, reg, EditVarAttrs, sample(), config.Options{
		"var_id": "time",
		"attrs":  map[string]any{"long_name": "valid_time", "calendar_copy": "derive: " + GetTimeCalendar},
	})
	assert.Equal(t, "valid_time", ds.Coords["time"].Attrs["long_name"])
	assert.Equal(t, "360_day", ds.Coords["time"].Attrs["calendar_copy"])

	ds = post(t, reg, EditGlobalAttrs, ds, config.Options{
		"attrs": map[string]any{
			"forcing_description": "derive: " + GetDecadalModelAttrFromDict + ": forcing_description",
			"further_info_url":    "derive: " + FixFurtherInfoURL,
			"sub_experiment_id":   "derive: " + GetSubExperimentID,
		},
	})
	assert.Equal(t, "f2, CMIP6 v6.2.0 forcings; no ozone remapping", ds.Attrs["forcing_description"])
	assert.Equal(t, "https://furtherinfo.es-doc.org/CMIP6.MOHC.HadGEM3-GC31-MM.dcppA-hindcast.s1960.r1i1p1f2", ds.Attrs["further_info_url"])
	assert.Equal(t, "s196011", ds.Attrs["sub_experiment_id"])

	fn, _ := reg.Post(EditVarAttrs)
	_, err := fn(decadalID, sample(), config.Options{"var_id": "nope", "attrs": map[string]any{}})
	require.Error(t, err)
}

func TestAddGlobalAttrsIfNeeded(t *testing.T) {
	t.Parallel()

	ds := sample()
	ds.Attrs["source"] = ""
	ds.Attrs["institution"] = "MOHC"
	ds = post(t, newRegistry(), AddGlobalAttrsIfNeeded, ds, config.Options{
		"attrs": map[string]any{"source": "HadGEM3", "institution": "other", "startdate": "derive: " + GetSubExperimentID},
	})
	assert.Equal(t, "HadGEM3", ds.Attrs["source"])
	assert.Equal(t, "MOHC", ds.Attrs["institution"])
	assert.Equal(t, "s196011", ds.Attrs["startdate"])
}

func TestRemoveVarAttrsAndCoordAttr(t *testing.T) {
	t.Parallel()
	reg := newRegistry()

	ds := post(t, reg, RemoveVarAttrs, sample(), config.Options{"var_id": "tas", "attrs": []any{"long_name"}})
	assert.NotContains(t, ds.DataVars["tas"].Attrs, "long_name")

	fn, _ := reg.Post(RemoveVarAttrs)
	_, err := fn(decadalID, ds, config.Options{"var_id": "tas", "attrs": []any{"long_name"}})
	require.Error(t, err)

	ds.DataVars["lat_bnds"] = &dataset.Variable{Dims: []string{"lat", "bnds"}, Shape: []int{2, 2}, Data: []any{-90.0, 0.0, 0.0, 90.0}}
	ds.DataVars["lon_bnds"] = &dataset.Variable{Dims: []string{"lon", "bnds"}, Shape: []int{1, 2}, Data: []any{0.0, 180.0}}
	ds.DataVars["realization"] = dataset.NewScalar(int64(1), nil)

	ds = post(t, reg, RemoveCoordAttr, ds, config.Options{"var_ids": "derive: " + GetDecadalBndsList})
	for _, name := range []string{"lat_bnds", "lon_bnds", "time_bnds", "realization"} {
		v, _ := ds.Var(name)
		assert.Contains(t, v.Encoding, "coordinates", name)
		assert.Nil(t, v.Encoding["coordinates"], name)
	}
}

func TestFixMetadata(t *testing.T) {
	t.Parallel()

	ds := post(t, newRegistry(), FixMetadata, sample(), config.Options{"fixes": []any{"units,degC", "comment,a,b"}})
	assert.Equal(t, "degC", ds.DataVars["tas"].Attrs["units"])
	assert.Equal(t, "a,b", ds.DataVars["tas"].Attrs["comment"])
}

func TestSqueezeAndScalarCoord(t *testing.T) {
	t.Parallel()
	reg := newRegistry()

	ds := post(t, reg, SqueezeDims, sample(), config.Options{"dims": []any{"lon"}})
	assert.Equal(t, []string{"time", "lat"}, ds.DataVars["tas"].Dims)

	ds = post(t, reg, AddScalarCoord, ds, config.Options{
		"var_id":   "reftime",
		"value":    "derive: " + GetReftime,
		"dtype":    "str",
		"attrs":    map[string]any{"long_name": "Start date of the forecast"},
		"encoding": map[string]any{"dtype": "int32", "units": "days since 1850-01-01"},
	})
	rt := ds.Coords["reftime"]
	require.NotNil(t, rt)
	assert.Equal(t, []any{"1960-11-01T00:00:00"}, rt.Data)
	assert.Equal(t, "int32", rt.Encoding["dtype"])
	assert.Equal(t, "reftime", ds.DataVars["tas"].Encoding["coordinates"])
	require.NoError(t, ds.Validate())
}

func TestAddCoord_LeadTimes(t *testing.T) {
	t.Parallel()
	reg := newRegistry()

	ds := post(t, reg, AddCoord, sample(), config.Options{
		"var_id":   "leadtime",
		"dim":      "time",
		"value":    "derive: " + GetLeadTimes,
		"dtype":    "float64",
		"attrs":    map[string]any{"units": "days"},
		"encoding": map[string]any{},
	})
	lt := ds.Coords["leadtime"]
	require.NotNil(t, lt)
	assert.Equal(t, []string{"time"}, lt.Dims)
	assert.Equal(t, []any{15.0, 45.0}, lt.Data)
	assert.Equal(t, "leadtime", ds.DataVars["tas"].Encoding["coordinates"])

	fn, _ := reg.Post(AddCoord)
	_, err := fn(decadalID, sample(), config.Options{"var_id": "x", "dim": "time", "value": []any{1.0, 2.0, 3.0}})
	require.Error(t, err)
}

func TestAddDataVarAndMask(t *testing.T) {
	t.Parallel()
	reg := newRegistry()

	ds := post(t, reg, AddDataVar, sample(), config.Options{
		"var_id": "realization", "value": "1", "dtype": "int32",
		"attrs": map[string]any{"long_name": "realization"},
	})
	assert.Equal(t, []any{int64(1)}, ds.DataVars["realization"].Data)

	ds = post(t, reg, MaskData, ds, config.Options{"value": "1.0e20"})
	assert.Equal(t, []any{nil, 280.0, 281.0, nil}, ds.DataVars["tas"].Data)
}

func TestDecadalDerives(t *testing.T) {
	t.Parallel()
	reg := newRegistry()
	ds := sample()

	assert.Equal(t, "1960-11-01T00:00:00", derive(t, reg, GetStartDate, ds))
	assert.Equal(t, "s196011", derive(t, reg, GetSubExperimentID, ds))
	assert.Equal(t, []any{int64(15), int64(45)}, derive(t, reg, GetLeadTimes, ds))
	assert.Equal(t, []string{"lat_bnds", "lon_bnds", "time_bnds"}, derive(t, reg, GetBndVars, ds))

	ds.Attrs["startdate"] = "s196102"
	assert.Equal(t, "1961-02-01T00:00:00", derive(t, reg, GetReftime, ds))
	ds.Attrs["startdate"] = "s196113"
	assert.Equal(t, "1960-11-01T00:00:00", derive(t, reg, GetReftime, ds))

	fn, _ := reg.Derive(GetDecadalModelAttrFromDict)
	_, err := fn("c3s-cmip6.DCPP.X.Unknown-Model.a.s1960-r1.b", ds, "forcing_description")
	require.Error(t, err)
	_, err = fn(decadalID, ds)
	require.Error(t, err)

	fn, _ = reg.Derive(GetStartDate)
	_, err = fn("short.id", ds)
	require.Error(t, err)
}

func TestCast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    any
		dtype string
		want  any
		err   bool
	}{
		{3.0, "int32", int64(3), false},
		{"7", "<i8", int64(7), false},
		{3.5, "int64", nil, true},
		{-1.0, "uint8", nil, true},
		{"2.5", "float32", 2.5, false},
		{2.0, "str", "2", false},
		{"s1960", "<U5", "s1960", false},
		{"true", "bool", true, false},
		{1.0, "complex64", nil, true},
		{"x", "", "x", false},
	}
	for _, tt := range tests {
		got, err := cast(tt.in, tt.dtype)
		if tt.err {
			assert.Error(t, err, "%v as %s", tt.in, tt.dtype)
			continue
		}
		require.NoError(t, err, "%v as %s", tt.in, tt.dtype)
		assert.Equal(t, tt.want, got)
	}
}

func TestResolveAnyUsesSameRegistry(t *testing.T) {
	t.Parallel()

	reg := newRegistry()
	v, err := fix.ResolveAny("derive: "+GetSubExperimentID, decadalID, sample(), reg)
	require.NoError(t, err)
	assert.Equal(t, "s196011", v)
}
