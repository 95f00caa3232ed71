// Package assemble opens the files of one dataset, runs its fixes and
// merges them into a single handle.
package assemble

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"daops/internal/dataset"
	"daops/internal/fix"
	"daops/internal/logging"
)

// FixSource builds the fix set of a dataset id.
type FixSource interface {
	FixSet(ctx context.Context, id string) (*fix.Set, error)
}

// Loader reads one file or Kerchunk reference.
type Loader interface {
	Open(ctx context.Context, loc string) (*dataset.Dataset, error)
}

// Assembler merges file lists into datasets.
type Assembler struct {
	loader Loader
	fixes  FixSource
	log    *zap.Logger
}

// New returns an Assembler. A nil fixes source behaves as if no dataset had
// fixes.
func New(loader Loader, fixes FixSource, log *zap.Logger) *Assembler {
	return &Assembler{loader: loader, fixes: fixes, log: logging.OrNop(log)}
}

// Open assembles id from files. With applyFixes the dataset's
// pre-processors run on every file before the merge and its post-processors
// on the merged result; errors from either are returned unchanged.
func (a *Assembler) Open(ctx context.Context, id string, files []string, applyFixes bool) (*dataset.Dataset, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("assemble: %s: no files", id)
	}
	start := time.Now()

	set := &fix.Set{ID: id}
	if applyFixes && a.fixes != nil {
		s, err := a.fixes.FixSet(ctx, id)
		if err != nil {
			return nil, err
		}
		set = s
	}
	if !set.Pre.Empty() {
		a.log.Info("applying pre-processors", zap.String("ds_id", id), zap.Strings("fixes", set.Pre.Names()))
	}

	parts := make([]*dataset.Dataset, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := a.loader.Open(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("assemble: %s: %w", id, err)
		}
		if !set.Pre.Empty() {
			if ds, err = set.Pre.Apply(ds); err != nil {
				return nil, err
			}
		}
		parts = append(parts, ds)
	}

	merged, err := dataset.Merge(parts)
	if err != nil {
		return nil, fmt.Errorf("assemble: %s: %w", id, err)
	}

	if len(set.Post) > 0 {
		if merged, err = set.ApplyPost(merged, a.log); err != nil {
			return nil, err
		}
	}
	a.log.Debug("dataset assembled",
		zap.String("ds_id", id),
		zap.Int("files", len(files)),
		zap.Bool("fixes", applyFixes),
		zap.Duration("elapsed", time.Since(start)))
	return merged, nil
}
