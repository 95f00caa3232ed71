package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daops/internal/config"
	"daops/internal/dataset"
)

func TestRegistry_NamespacesAreSeparate(t *testing.T) {
	t.Parallel()

	r := New()
	r.RegisterPre("fix", func(ds *dataset.Dataset) (*dataset.Dataset, error) { return ds, nil })
	r.RegisterDerive("label", func(string, *dataset.Dataset, ...string) (any, error) { return "X", nil })

	_, ok := r.Pre("fix")
	assert.True(t, ok)
	_, ok = r.Post("fix")
	assert.False(t, ok)

	fn, ok := r.Derive("label")
	require.True(t, ok)
	v, err := fn("id", nil)
	require.NoError(t, err)
	assert.Equal(t, "X", v)

	assert.Equal(t, Manifest{Pre: []string{"fix"}, Post: []string{}, Derive: []string{"label"}}, r.Manifest())
}

func TestRegistry_ReplaceAndConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := New()
	post := func(tag string) PostFunc {
		return func(_ string, ds *dataset.Dataset, _ config.Options) (*dataset.Dataset, error) {
			ds.Attrs["tag"] = tag
			return ds, nil
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); r.RegisterPost("p", post("a")) }()
		go func() { defer wg.Done(); _, _ = r.Post("p") }()
	}
	wg.Wait()

	r.RegisterPost("p", post("b"))
	fn, ok := r.Post("p")
	require.True(t, ok)
	ds, err := fn("id", dataset.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, "b", ds.Attrs["tag"])
}
