// Package file opens dataset files, inventories and reference lists from a
// filesystem abstraction so that tests can run against an in-memory tree.
package file

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"
)

// Local is a data source bound to one path on fs.
type Local struct {
	fs   afero.Fs
	path string
}

// NewLocal returns a Local for path. A nil fs means the OS filesystem.
func NewLocal(fs afero.Fs, path string) *Local {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Local{fs: fs, path: path}
}

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the path for reading. A context that is already done
// short-circuits without touching the filesystem. Errors keep their cause so
// errors.Is(err, os.ErrNotExist) works.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := l.fs.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	// Files are always read front to back; hint the kernel when we can.
	if osf, ok := f.(*os.File); ok {
		adviseSequential(osf)
	}
	return f, nil
}

// ReadAll opens the path and returns its contents.
func (l *Local) ReadAll(ctx context.Context) ([]byte, error) {
	rc, err := l.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.path, err)
	}
	return b, nil
}
