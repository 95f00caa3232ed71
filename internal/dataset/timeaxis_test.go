package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daops/internal/timeparam"
)

func TestTimeAxis_Numeric(t *testing.T) {
	t.Parallel()

	ds := monthly([]any{59.0, 365.0}, []any{1.0, 2.0}, Attrs{})
	ts, err := ds.TimeAxis()
	require.NoError(t, err)
	assert.Equal(t, []timeparam.Time{
		{Year: 2000, Month: 3, Day: 1},
		{Year: 2001, Month: 1, Day: 1},
	}, ts)

	cal, err := ds.Calendar()
	require.NoError(t, err)
	assert.Equal(t, timeparam.NoLeap, cal)
}

func TestTimeAxis_StringsAndEncoding(t *testing.T) {
	t.Parallel()

	ds := New()
	ds.Coords["time"] = New1D("time", []any{"2000-02-30"}, nil)
	ts, err := ds.TimeAxis()
	require.NoError(t, err)
	assert.Equal(t, 30, ts[0].Day)

	// Units may live in encoding instead of attrs.
	ds.Coords["time"] = &Variable{
		Dims: []string{"time"}, Shape: []int{1},
		Encoding: Attrs{"units": "hours since 2000-01-01", "calendar": "360_day"},
		Data:     []any{24.0},
	}
	ts, err = ds.TimeAxis()
	require.NoError(t, err)
	assert.Equal(t, 2, ts[0].Day)
}

func TestTimeAxis_Errors(t *testing.T) {
	t.Parallel()

	_, err := New().TimeAxis()
	assert.ErrorIs(t, err, ErrNoTimeAxis)

	ds := New()
	ds.Coords["time"] = New1D("time", []any{1.0}, nil)
	_, err = ds.TimeAxis()
	assert.ErrorContains(t, err, "no units")
}
