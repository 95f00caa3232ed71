package fix

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"daops/internal/dsref"
	"daops/internal/errs"
	"daops/internal/fixstore"
	"daops/internal/logging"
	"daops/internal/registry"
)

// Getter is the read side of a fix store.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Config wires a Fixer. Zero values get defaults: md5 keys, the default
// registry, ids used as given and a no-op logger.
type Config struct {
	Canonicalizer *dsref.Canonicalizer
	Key           dsref.KeyFunc
	Registry      *registry.Registry
	Logger        *zap.Logger
}

// Fixer looks fix records up by dataset id and builds fix sets. A nil
// store means no dataset has fixes.
type Fixer struct {
	store Getter
	canon *dsref.Canonicalizer
	key   dsref.KeyFunc
	reg   *registry.Registry
	log   *zap.Logger
}

// NewFixer builds a Fixer over store.
func NewFixer(store Getter, cfg Config) *Fixer {
	if cfg.Key == nil {
		cfg.Key = dsref.MD5Key
	}
	if cfg.Registry == nil {
		cfg.Registry = registry.Default
	}
	return &Fixer{
		store: store,
		canon: cfg.Canonicalizer,
		key:   cfg.Key,
		reg:   cfg.Registry,
		log:   logging.OrNop(cfg.Logger),
	}
}

// Registry returns the registry fix names resolve against.
func (f *Fixer) Registry() *registry.Registry { return f.reg }

// Key returns the store key for a canonical id.
func (f *Fixer) Key(id string) string { return f.key(id) }

// Lookup returns the stored records for id in store order. A missing
// document yields no records; any other store failure is StoreUnavailable.
func (f *Fixer) Lookup(ctx context.Context, id string) ([]Record, error) {
	id, err := f.canonical(id)
	if err != nil {
		return nil, err
	}
	return f.lookup(ctx, id)
}

func (f *Fixer) canonical(id string) (string, error) {
	if f.canon == nil {
		return id, nil
	}
	return f.canon.CanonicalizeString(id)
}

func (f *Fixer) lookup(ctx context.Context, id string) ([]Record, error) {
	if f.store == nil {
		return nil, nil
	}
	key := f.key(id)
	b, err := f.store.Get(ctx, key)
	if errors.Is(err, fixstore.ErrNotFound) {
		f.log.Debug("no fixes", zap.String("ds_id", id), zap.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreUnavailable, id, "fix store lookup failed")
	}
	doc, err := DecodeDocument(b)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeStoreUnavailable, id, "malformed fix document %s", key)
	}
	return doc.Fixes, nil
}

// FixSet looks id up exactly as given and builds its fix set. id is a
// consolidated entry id, which may be a reference string when no canonical
// id exists. The set is built fresh on every call.
func (f *Fixer) FixSet(ctx context.Context, id string) (*Set, error) {
	recs, err := f.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	set, err := Build(id, recs, f.reg)
	if err != nil {
		return nil, err
	}
	f.log.Debug("fix set built",
		zap.String("ds_id", id),
		zap.Strings("pre", set.Pre.Names()),
		zap.Int("post", len(set.Post)))
	return set, nil
}
