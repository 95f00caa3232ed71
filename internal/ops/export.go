package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"daops/internal/config"
	"daops/internal/dataset"
)

// Export writes each dataset to <dir>/output_NNN.ncj and returns the path.
// Numbering starts at 001 and continues across calls on the same Export.
type Export struct {
	fs  afero.Fs
	dir string

	mu sync.Mutex
	n  int
}

// NewExport returns an Export writing into dir. A nil fs means the OS
// filesystem.
func NewExport(fs afero.Fs, dir string) *Export {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "."
	}
	return &Export{fs: fs, dir: dir}
}

func (e *Export) Name() string { return "export" }

// Compute writes ds. The "output_dir" param overrides the directory for one
// call.
func (e *Export) Compute(ctx context.Context, id string, ds *dataset.Dataset, params config.Options) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir := params.String("output_dir", e.dir)
	if err := e.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %s: %w", id, err)
	}

	e.mu.Lock()
	e.n++
	name := filepath.Join(dir, fmt.Sprintf("output_%03d%s", e.n, dataset.Extension))
	e.mu.Unlock()

	f, err := e.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("export: %s: %w", id, err)
	}
	if err := dataset.Encode(f, ds); err != nil {
		f.Close()
		return nil, fmt.Errorf("export: %s: %w", id, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("export: %s: %w", id, err)
	}
	return name, nil
}
