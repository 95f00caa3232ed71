// Package fixstore reads fix documents by key from a pluggable backend.
//
// Backends register a Factory for their kind from init; the all subpackage
// imports every built-in backend for its side effects:
//
//	import _ "daops/internal/fixstore/all"
//
//	store, err := fixstore.Open(ctx, cfg.FixStore, fixstore.Deps{Fs: fs, HTTP: client, Log: log})
//
// The memory and dir kinds are built into this package.
package fixstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"daops/internal/config"
	"daops/internal/datasource/httpds"
)

// ErrNotFound is returned by Get when no document exists for a key.
var ErrNotFound = errors.New("fixstore: not found")

// Store is a keyed, read-only document store.
type Store interface {
	// Get returns the raw JSON fix document for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// Deps are the shared clients a backend may use.
type Deps struct {
	Fs   afero.Fs
	HTTP *httpds.Client
	Log  *zap.Logger
}

// Factory opens a store of one kind.
type Factory func(ctx context.Context, cfg config.FixStore, deps Deps) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open builds the store selected by cfg.Kind. An empty kind opens an empty
// memory store, so every lookup reports no fixes.
func Open(ctx context.Context, cfg config.FixStore, deps Deps) (Store, error) {
	if cfg.Kind == "" {
		return NewMemory(nil), nil
	}
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("fixstore: no backend registered for kind %q", cfg.Kind)
	}
	return f(ctx, cfg, deps)
}

func init() {
	Register("memory", func(context.Context, config.FixStore, Deps) (Store, error) {
		return NewMemory(nil), nil
	})
	Register("dir", func(_ context.Context, cfg config.FixStore, deps Deps) (Store, error) {
		return NewDir(deps.Fs, cfg.Dir)
	})
}
