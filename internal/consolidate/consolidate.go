// Package consolidate resolves a collection of dataset references and an
// optional time filter into the concrete files of each dataset.
//
// The strategy is chosen once from the first reference: file mappers and
// Kerchunk references always use the filesystem; otherwise the first
// reference's project decides between its catalog and filesystem probing,
// and that choice applies to every entry.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"daops/internal/catalog"
	"daops/internal/config"
	"daops/internal/dataset"
	"daops/internal/dsref"
	"daops/internal/errs"
	"daops/internal/logging"
	"daops/internal/timeparam"
)

// Entry is one consolidated dataset. Files is never empty.
type Entry struct {
	ID    string
	Ref   dsref.Reference
	Files []string
}

// IsKerchunk reports whether the entry is a Kerchunk reference passed
// through unexpanded.
func (e Entry) IsKerchunk() bool { return e.Ref.Kind == dsref.KindKerchunk }

// Searcher is the part of a catalog the consolidator needs.
type Searcher interface {
	Search(ctx context.Context, ids []string, tf timeparam.Filter) (*catalog.Result, error)
}

// CatalogFunc returns the catalog of a project.
type CatalogFunc func(ctx context.Context, project string, p config.Project) (Searcher, error)

// Config wires a Consolidator.
type Config struct {
	Fs            afero.Fs
	Canonicalizer *dsref.Canonicalizer
	// Catalog is consulted for projects with use_catalog. Nil disables
	// catalog resolution.
	Catalog CatalogFunc
	// Opener reads a file's time axis when its name carries no years.
	Opener *dataset.Opener
	Logger *zap.Logger
}

// Consolidator turns references into file lists.
type Consolidator struct {
	fs      afero.Fs
	canon   *dsref.Canonicalizer
	catalog CatalogFunc
	opener  *dataset.Opener
	log     *zap.Logger
}

// New returns a Consolidator. A nil Fs means the OS filesystem.
func New(cfg Config) *Consolidator {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Canonicalizer == nil {
		cfg.Canonicalizer = dsref.NewCanonicalizer(nil)
	}
	if cfg.Opener == nil {
		cfg.Opener = dataset.NewOpener(cfg.Fs, nil)
	}
	return &Consolidator{
		fs:      cfg.Fs,
		canon:   cfg.Canonicalizer,
		catalog: cfg.Catalog,
		opener:  cfg.Opener,
		log:     logging.OrNop(cfg.Logger),
	}
}

// Consolidate resolves refs in order. Duplicates are kept. The first failing
// reference aborts the call.
func (c *Consolidator) Consolidate(ctx context.Context, refs []dsref.Reference, tf timeparam.Filter) ([]Entry, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	cat, err := c.strategy(ctx, refs[0])
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var e Entry
		switch {
		case ref.Kind == dsref.KindKerchunk:
			e = Entry{ID: ref.Value, Ref: ref, Files: []string{ref.Value}}
		case cat != nil:
			e, err = c.fromCatalog(ctx, cat, ref, tf)
		default:
			e, err = c.fromFilesystem(ctx, ref, tf)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// strategy returns the catalog to use for the whole collection, or nil for
// filesystem probing.
func (c *Consolidator) strategy(ctx context.Context, first dsref.Reference) (*projectCatalog, error) {
	if first.Kind == dsref.KindFileMapper || first.Kind == dsref.KindKerchunk || c.catalog == nil {
		c.log.Debug("consolidating from filesystem", zap.String("first", first.String()))
		return nil, nil
	}
	name, p, err := c.canon.ProjectOf(first)
	if err != nil {
		if first.Kind == dsref.KindID {
			return nil, err
		}
		// Paths outside every project are still probed as given.
		c.log.Debug("consolidating from filesystem", zap.String("first", first.String()), zap.Error(err))
		return nil, nil
	}
	if !p.UseCatalog {
		c.log.Debug("consolidating from filesystem", zap.String("project", name))
		return nil, nil
	}
	s, err := c.catalog(ctx, name, p)
	if err != nil {
		return nil, fmt.Errorf("consolidate: catalog for %s: %w", name, err)
	}
	c.log.Debug("consolidating from catalog", zap.String("project", name))
	return &projectCatalog{Searcher: s, project: p}, nil
}

type projectCatalog struct {
	Searcher
	project config.Project
}

func (c *Consolidator) fromCatalog(ctx context.Context, cat *projectCatalog, ref dsref.Reference, tf timeparam.Filter) (Entry, error) {
	id, err := c.canon.Canonicalize(ref)
	if err != nil {
		return Entry{}, err
	}
	res, err := cat.Search(ctx, []string{id}, tf)
	if err != nil {
		return Entry{}, fmt.Errorf("consolidate: search %s: %w", id, err)
	}
	if res.Matches() == 0 {
		if tf.IsNone() {
			return Entry{}, errs.New(errs.CodeDatasetNotFound, id, "not found in catalog")
		}
		all, err := cat.Search(ctx, []string{id}, timeparam.None)
		if err != nil {
			return Entry{}, fmt.Errorf("consolidate: search %s: %w", id, err)
		}
		if all.Matches() == 0 {
			return Entry{}, errs.New(errs.CodeDatasetNotFound, id, "not found in catalog")
		}
		return Entry{}, errs.New(errs.CodeTimeRangeNotFound, id, "no files in time range %s", tf)
	}

	files := res.DownloadURLs()[id]
	if c.isDir(cat.project.BaseDir) {
		files = res.Files()[id]
	}
	c.log.Debug("catalog match", zap.String("ds_id", id), zap.Int("files", len(files)))
	return Entry{ID: id, Ref: ref, Files: files}, nil
}

func (c *Consolidator) isDir(dir string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	fi, err := c.fs.Stat(dir)
	return err == nil && fi.IsDir()
}

func (c *Consolidator) fromFilesystem(ctx context.Context, ref dsref.Reference, tf timeparam.Filter) (Entry, error) {
	id := ref.String()
	if canon, err := c.canon.Canonicalize(ref); err == nil {
		id = canon
	} else if ref.Kind == dsref.KindID {
		return Entry{}, err
	}

	files, err := c.expand(ref, id)
	if err != nil {
		return Entry{}, err
	}
	if len(files) == 0 {
		return Entry{}, errs.New(errs.CodeDatasetNotFound, ref.String(), "no files found")
	}
	if tf.IsNone() {
		return Entry{ID: id, Ref: ref, Files: files}, nil
	}

	kept, err := c.FilterFiles(ctx, files, tf)
	if err != nil {
		return Entry{}, err
	}
	c.log.Debug("time filter applied",
		zap.String("ds_id", id),
		zap.Stringer("time", tf),
		zap.Int("kept", len(kept)),
		zap.Int("dropped", len(files)-len(kept)))
	if len(kept) == 0 {
		return Entry{}, errs.New(errs.CodeEmptyTimeRange, id, "no files in time range %s", tf)
	}
	return Entry{ID: id, Ref: ref, Files: kept}, nil
}

// expand lists the files a reference stands for.
func (c *Consolidator) expand(ref dsref.Reference, id string) ([]string, error) {
	switch ref.Kind {
	case dsref.KindFile:
		return []string{ref.Value}, nil
	case dsref.KindFileMapper:
		return append([]string(nil), ref.Files...), nil
	case dsref.KindDirectory:
		if ref.IsRemote() {
			return nil, errs.New(errs.CodeUnrecognizedReference, ref.Value, "remote directories cannot be listed")
		}
		return c.glob(ref.Value, c.fileGlob(id))
	case dsref.KindID:
		dir, err := c.canon.DirFor(id)
		if err != nil {
			return nil, err
		}
		return c.glob(dir, c.fileGlob(id))
	}
	return nil, errs.New(errs.CodeUnrecognizedReference, ref.Value, "cannot expand %s reference", ref.Kind)
}

func (c *Consolidator) fileGlob(id string) string {
	if p, ok := c.canon.Project(dsref.ProjectName(id)); ok && p.FileGlob != "" {
		return p.FileGlob
	}
	return config.DefaultFileGlob
}

func (c *Consolidator) glob(dir, pattern string) ([]string, error) {
	matches, err := afero.Glob(c.fs, path.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("consolidate: glob %s: %w", dir, err)
	}
	sort.Strings(matches)
	return matches, nil
}

// FilterFiles keeps the files whose year coverage satisfies tf. Coverage
// comes from the filename when it ends in _START-END tokens, otherwise from
// the file's time axis. Files with unknown coverage are kept.
func (c *Consolidator) FilterFiles(ctx context.Context, files []string, tf timeparam.Filter) ([]string, error) {
	if tf.IsNone() {
		return files, nil
	}
	kept := make([]string, 0, len(files))
	for _, f := range files {
		cov, err := c.coverage(ctx, f)
		if err != nil {
			return nil, err
		}
		if tf.Keep(cov) {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

func (c *Consolidator) coverage(ctx context.Context, file string) (timeparam.Coverage, error) {
	if cov, ok := FilenameCoverage(file); ok {
		return cov, nil
	}
	ds, err := c.opener.Open(ctx, file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return timeparam.Coverage{}, errs.Wrap(err, errs.CodeDatasetNotFound, file, "open")
		}
		return timeparam.Coverage{}, err
	}
	ts, err := ds.TimeAxis()
	if errors.Is(err, dataset.ErrNoTimeAxis) {
		return timeparam.Coverage{}, nil
	}
	if err != nil {
		return timeparam.Coverage{}, fmt.Errorf("consolidate: %s: %w", file, err)
	}
	return timeparam.CoverageOf(ts), nil
}

// FilenameCoverage reads the year range from names like
// tas_Amon_X_historical_r1i1p1f1_gn_185001-201412.nc.
func FilenameCoverage(file string) (timeparam.Coverage, bool) {
	base := path.Base(file)
	base = strings.TrimSuffix(base, path.Ext(base))
	i := strings.LastIndex(base, "_")
	if i < 0 {
		return timeparam.Coverage{}, false
	}
	a, b, ok := strings.Cut(base[i+1:], "-")
	if !ok {
		return timeparam.Coverage{}, false
	}
	lo, ok1 := timeparam.LeadingYear(a)
	hi, ok2 := timeparam.LeadingYear(b)
	if !ok1 || !ok2 || lo > hi {
		return timeparam.Coverage{}, false
	}
	return timeparam.Coverage{Known: true, Min: lo, Max: hi}, true
}
