package fixstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Dir serves <dir>/<key>.json documents.
type Dir struct {
	fs  afero.Fs
	dir string
}

// NewDir checks that dir exists on fsys (nil means the OS filesystem).
func NewDir(fsys afero.Fs, dir string) (*Dir, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("fixstore: dir must not be empty")
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	ok, err := afero.DirExists(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("fixstore: stat %s: %w", dir, err)
	}
	if !ok {
		return nil, fmt.Errorf("fixstore: %s is not a directory", dir)
	}
	return &Dir{fs: fsys, dir: dir}, nil
}

func (d *Dir) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return nil, fmt.Errorf("fixstore: invalid key %q", key)
	}
	b, err := afero.ReadFile(d.fs, path.Join(d.dir, key+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fixstore: read %s: %w", key, err)
	}
	return b, nil
}

func (d *Dir) Close() error { return nil }
