// Package catalog answers "which files make up these datasets within this
// time window" from a precomputed inventory, without opening any file.
//
// Two kinds share one inventory source, an intake YAML catalog whose
// per-project entry points at a CSV inventory (optionally gzipped):
//
//	sources:
//	  c3s-cmip6:
//	    driver: csv
//	    args:
//	      urlpath: "{{ CATALOG_DIR }}/c3s-cmip6.csv.gz"
//
// The "intake" kind filters the inventory in memory; the "db" kind mirrors
// it into a SQLite table on first use and filters with SQL.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"daops/internal/config"
	"daops/internal/datasource"
	"daops/internal/datasource/httpds"
	"daops/internal/logging"
	"daops/internal/timeparam"
)

// Catalog searches one project's inventory.
type Catalog interface {
	// Search returns the files of ids whose coverage overlaps tf. An
	// unfiltered search uses the full time range.
	Search(ctx context.Context, ids []string, tf timeparam.Filter) (*Result, error)
	Close() error
}

// Deps are the shared clients a catalog uses. A nil Cache gets a private
// one; share a Cache to load each inventory once per process.
type Deps struct {
	Fs    afero.Fs
	HTTP  *httpds.Client
	Log   *zap.Logger
	Cache *Cache
}

// Open returns the catalog for project as configured by p.CatalogKind.
func Open(project string, p config.Project, c config.Catalog, deps Deps) (Catalog, error) {
	if deps.Cache == nil {
		deps.Cache = NewCache()
	}
	deps.Log = logging.OrNop(deps.Log)
	src := &source{project: project, url: c.IntakeCatalogURL, deps: deps}
	switch p.CatalogKind {
	case "", "intake":
		if strings.TrimSpace(c.IntakeCatalogURL) == "" {
			return nil, fmt.Errorf("catalog: project %q: no intake catalog URL", project)
		}
		return &Intake{src: src, baseDir: p.BaseDir, baseURL: p.DataNodeRoot}, nil
	case "db":
		return openDB(src, p, c.DBDSN)
	}
	return nil, fmt.Errorf("catalog: project %q: unknown catalog kind %q", project, p.CatalogKind)
}

// source loads a project's inventory through the intake catalog.
type source struct {
	project string
	url     string
	deps    Deps
}

func (s *source) rows(ctx context.Context) ([]Row, error) {
	return s.deps.Cache.Rows(ctx, s.project, s.load)
}

func (s *source) load(ctx context.Context) ([]Row, error) {
	loc, err := inventoryLocation(ctx, s.deps, s.url, s.project)
	if err != nil {
		return nil, err
	}
	b, err := datasource.ReadAll(ctx, s.deps.Fs, s.deps.HTTP, loc)
	if err != nil {
		return nil, fmt.Errorf("catalog: read inventory %s: %w", loc, err)
	}
	r, err := decompress(b)
	if err != nil {
		return nil, err
	}
	skipped := 0
	rows, err := ReadInventory(ctx, r, func(line int, err error) {
		skipped++
		s.deps.Log.Warn("skipping inventory row", zap.String("project", s.project), zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	s.deps.Log.Info("inventory loaded",
		zap.String("project", s.project),
		zap.String("location", loc),
		zap.String("size", humanize.Bytes(uint64(len(b)))),
		zap.Int("rows", len(rows)),
		zap.Int("skipped", skipped))
	return rows, nil
}

// Intake filters the cached inventory in memory.
type Intake struct {
	src     *source
	baseDir string
	baseURL string
}

func (c *Intake) Search(ctx context.Context, ids []string, tf timeparam.Filter) (*Result, error) {
	rows, err := c.src.rows(ctx)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	lo, hi := tf.Bounds()
	start, end := lo.String(), hi.String()

	res := newResult(c.baseDir, c.baseURL)
	for _, r := range rows {
		if want[r.DatasetID] && r.End >= start && r.Start <= end {
			res.add(r.DatasetID, r.Path)
		}
	}
	return res, nil
}

func (c *Intake) Close() error { return nil }
