package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_ConcatenatesAndDeduplicatesTime(t *testing.T) {
	t.Parallel()

	later := monthly([]any{45.0, 75.0}, []any{2.0, 3.0}, Attrs{"part": "later"})
	earlier := monthly([]any{15.0, 45.0}, []any{1.0, 99.0}, Attrs{"part": "earlier"})

	out, err := Merge([]*Dataset{later, earlier})
	require.NoError(t, err)

	// Parts are ordered by time; 45.0 comes from the earlier part.
	assert.Equal(t, []any{15.0, 45.0, 75.0}, out.Coords["time"].Data)
	assert.Equal(t, []any{1.0, 99.0, 3.0}, out.DataVars["tas"].Data)
	assert.Equal(t, []int{3, 1}, out.DataVars["tas"].Shape)
	// Global attributes come from the first input.
	assert.Equal(t, "later", out.Attrs["part"])
	// Non-time coordinates come through untouched.
	assert.Equal(t, []any{10.0}, out.Coords["lat"].Data)
}

func TestMerge_OuterJoinFillsMissingVariables(t *testing.T) {
	t.Parallel()

	a := monthly([]any{15.0}, []any{1.0}, Attrs{})
	b := monthly([]any{45.0}, []any{2.0}, Attrs{})
	b.DataVars["pr"] = &Variable{Dims: []string{"time", "lat"}, Shape: []int{1, 1}, Data: []any{0.5}}

	out, err := Merge([]*Dataset{a, b})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, 0.5}, out.DataVars["pr"].Data)
}

func TestMerge_Errors(t *testing.T) {
	t.Parallel()

	_, err := Merge(nil)
	assert.ErrorIs(t, err, ErrNothingToMerge)

	a := monthly([]any{15.0}, []any{1.0}, Attrs{})
	b := monthly([]any{45.0}, []any{2.0}, Attrs{})
	b.Coords["time"].Attrs["calendar"] = "360_day"
	_, err = Merge([]*Dataset{a, b})
	assert.ErrorContains(t, err, "time encoding differs")
}

func TestMerge_SingleAndTimeless(t *testing.T) {
	t.Parallel()

	a := monthly([]any{15.0}, []any{1.0}, Attrs{})
	out, err := Merge([]*Dataset{a})
	require.NoError(t, err)
	out.DataVars["tas"].Data[0] = 7.0
	assert.Equal(t, 1.0, a.DataVars["tas"].Data[0], "single-part merge returns a copy")

	x := New()
	x.DataVars["orog"] = New1D("lat", []any{1.0}, nil)
	y := New()
	y.DataVars["orog"] = New1D("lat", []any{2.0}, nil)
	y.DataVars["sftlf"] = New1D("lat", []any{3.0}, nil)
	out, err = Merge([]*Dataset{x, y})
	require.NoError(t, err)
	assert.Equal(t, []any{1.0}, out.DataVars["orog"].Data)
	assert.Contains(t, out.DataVars, "sftlf")
}

func TestMerge_OverlappingPartsGiveSortedAxis(t *testing.T) {
	t.Parallel()

	a := monthly([]any{0.0, 59.0}, []any{1.0, 3.0}, Attrs{})
	b := monthly([]any{31.0, 59.0}, []any{2.0, 99.0}, Attrs{})

	out, err := Merge([]*Dataset{a, b})
	require.NoError(t, err)
	assert.Equal(t, []any{0.0, 31.0, 59.0}, out.Coords["time"].Data)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, out.DataVars["tas"].Data)
}

func TestMerge_RejectsInconsistentParts(t *testing.T) {
	t.Parallel()

	a := monthly([]any{15.0, 45.0}, []any{1.0, 2.0}, Attrs{})
	b := monthly([]any{75.0, 105.0}, []any{3.0, 4.0}, Attrs{})
	// Variable truncated to one step while the time axis keeps two.
	b.DataVars["tas"].Data = b.DataVars["tas"].Data[:1]
	b.DataVars["tas"].Shape = []int{1, 1}

	var err error
	assert.NotPanics(t, func() { _, err = Merge([]*Dataset{a, b}) })
	assert.ErrorContains(t, err, "part 1")

	c := monthly([]any{15.0}, []any{1.0}, Attrs{})
	c.DataVars["tas"].Data = nil
	_, err = Merge([]*Dataset{c})
	assert.Error(t, err)
}
