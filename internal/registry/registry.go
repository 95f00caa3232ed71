// Package registry is the allow-list of fix functions. Fix records name
// functions by string; only names registered here can run. Built-in fixes
// register themselves from init functions, the same way storage backends do.
package registry

import (
	"sort"
	"sync"

	"daops/internal/config"
	"daops/internal/dataset"
)

// PreFunc runs on each file's dataset before the files are merged.
type PreFunc func(ds *dataset.Dataset) (*dataset.Dataset, error)

// PostFunc runs once on the merged dataset. The returned dataset is
// authoritative; it may be ds itself.
type PostFunc func(id string, ds *dataset.Dataset, operands config.Options) (*dataset.Dataset, error)

// DeriveFunc computes an operand value from the merged dataset. args holds
// the optional literal argument of a derive expression.
type DeriveFunc func(id string, ds *dataset.Dataset, args ...string) (any, error)

// Registry maps names to fix functions. Pre-processors, post-processors and
// derive functions live in separate namespaces.
type Registry struct {
	mu     sync.RWMutex
	pre    map[string]PreFunc
	post   map[string]PostFunc
	derive map[string]DeriveFunc
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		pre:    map[string]PreFunc{},
		post:   map[string]PostFunc{},
		derive: map[string]DeriveFunc{},
	}
}

// Default is populated by built-in fix packages at init time.
var Default = New()

// RegisterPre registers (or replaces) a pre-processor.
func (r *Registry) RegisterPre(name string, fn PreFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pre[name] = fn
}

// RegisterPost registers (or replaces) a post-processor.
func (r *Registry) RegisterPost(name string, fn PostFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.post[name] = fn
}

// RegisterDerive registers (or replaces) a derive function.
func (r *Registry) RegisterDerive(name string, fn DeriveFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.derive[name] = fn
}

// Pre looks up a pre-processor.
func (r *Registry) Pre(name string) (PreFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.pre[name]
	return fn, ok
}

// Post looks up a post-processor.
func (r *Registry) Post(name string) (PostFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.post[name]
	return fn, ok
}

// Derive looks up a derive function.
func (r *Registry) Derive(name string) (DeriveFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.derive[name]
	return fn, ok
}

// Manifest lists registered names per namespace, sorted.
type Manifest struct {
	Pre    []string
	Post   []string
	Derive []string
}

// Manifest returns every registered name.
func (r *Registry) Manifest() Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Manifest{Pre: keys(r.pre), Post: keys(r.post), Derive: keys(r.derive)}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RegisterPre registers a pre-processor on Default.
func RegisterPre(name string, fn PreFunc) { Default.RegisterPre(name, fn) }

// RegisterPost registers a post-processor on Default.
func RegisterPost(name string, fn PostFunc) { Default.RegisterPost(name, fn) }

// RegisterDerive registers a derive function on Default.
func RegisterDerive(name string, fn DeriveFunc) { Default.RegisterDerive(name, fn) }
