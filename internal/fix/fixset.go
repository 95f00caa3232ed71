package fix

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"daops/internal/config"
	"daops/internal/dataset"
	"daops/internal/errs"
	"daops/internal/logging"
	"daops/internal/registry"
)

// Post is one resolved post-processor with its parsed operands.
type Post struct {
	Name     string
	Fn       registry.PostFunc
	Operands map[string]Value
}

// ResolveOperands resolves every operand for id and ds. Derive functions run here,
// immediately before the post-processor itself.
func (p Post) ResolveOperands(id string, ds *dataset.Dataset) (config.Options, error) {
	keys := make([]string, 0, len(p.Operands))
	for k := range p.Operands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(config.Options, len(p.Operands))
	for _, k := range keys {
		v, err := p.Operands[k].Resolve(id, ds)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// Set is the runnable form of one dataset's fix records.
type Set struct {
	ID   string
	Pre  Chain
	Post []Post
}

// Empty reports whether the set has no fixes at all.
func (s *Set) Empty() bool { return s == nil || (len(s.Pre) == 0 && len(s.Post) == 0) }

// Build partitions records into a pre-processor chain and a post-processor
// list, resolving every name through reg. Any unresolvable name fails the
// whole set.
func Build(id string, records []Record, reg *registry.Registry) (*Set, error) {
	set := &Set{ID: id}
	for i, r := range records {
		switch r.ProcessType {
		case PreProcessor:
			fn, ok := reg.Pre(r.ReferenceImplementation)
			if !ok {
				return nil, errs.New(errs.CodeFixResolution, id, "fix %d: pre-processor %q is not registered", i, r.ReferenceImplementation)
			}
			set.Pre = append(set.Pre, Step{Name: r.ReferenceImplementation, Fn: fn})
		case PostProcessor:
			fn, ok := reg.Post(r.ReferenceImplementation)
			if !ok {
				return nil, errs.New(errs.CodeFixResolution, id, "fix %d: post-processor %q is not registered", i, r.ReferenceImplementation)
			}
			ops := make(map[string]Value, len(r.Operands))
			for k, raw := range r.Operands {
				v, err := ParseValue(raw, reg)
				if err != nil {
					return nil, errs.Wrap(err, errs.CodeFixResolution, id, "fix %d (%s): operand %q", i, r.ReferenceImplementation, k)
				}
				ops[k] = v
			}
			set.Post = append(set.Post, Post{Name: r.ReferenceImplementation, Fn: fn, Operands: ops})
		default:
			return nil, errs.New(errs.CodeFixResolution, id, "fix %d: unknown process type %q", i, r.ProcessType)
		}
	}
	return set, nil
}

// ApplyPost runs the post-processors in order. Each returned dataset replaces
// the previous one. Errors from fix functions are returned unchanged.
func (s *Set) ApplyPost(ds *dataset.Dataset, log *zap.Logger) (*dataset.Dataset, error) {
	if s == nil {
		return ds, nil
	}
	log = logging.OrNop(log)
	for _, p := range s.Post {
		ops, err := p.ResolveOperands(s.ID, ds)
		if err != nil {
			return nil, err
		}
		log.Info("running post-processor", zap.String("ds_id", s.ID), zap.String("fix", p.Name))
		out, err := p.Fn(s.ID, ds, ops)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, fmt.Errorf("fix: post-processor %s returned no dataset", p.Name)
		}
		ds = out
	}
	return ds, nil
}
