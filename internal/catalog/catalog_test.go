package catalog

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"daops/internal/config"
	"daops/internal/datasource/httpds"
	"daops/internal/timeparam"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	tasID = "c3s-cmip6.ScenarioMIP.INM.INM-CM5-0.ssp245.r1i1p1f1.Amon.rlds.gr1.v20190619"
	fxID  = "c3s-cmip6.ScenarioMIP.MPI-M.MPI-ESM1-2-LR.ssp370.r1i1p1f1.fx.sftlf.gn.v20190710"
)

const inventoryCSV = "\uFEFFDS_ID,path,size,start_time,end_time\n" +
	tasID + ",ScenarioMIP/INM/rlds_2015-2064.nc,10,2015-01-16T12:00:00,2064-12-16T12:00:00\n" +
	tasID + ",ScenarioMIP/INM/rlds_2065-2100.nc,10,2065-01-16T12:00:00,2100-12-16T12:00:00\n" +
	fxID + ",ScenarioMIP/MPI-M/sftlf_gn.nc,5,undefined,undefined\n" +
	"broken,row\n" +
	"other.id,x.nc,1,not-a-time,2000-01-01\n"

const intakeYAML = `
sources:
  c3s-cmip6:
    driver: csv
    args:
      urlpath: "{{ CATALOG_DIR }}/c3s-cmip6.csv.gz"
`

var project = config.Project{
	BaseDir:      "/data/c3s-cmip6",
	DataNodeRoot: "https://data.example.org/thredds/fileServer/esg_c3s-cmip6/",
	UseCatalog:   true,
	CatalogKind:  "intake",
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func memCatalog(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cat/c3s.yaml", []byte(intakeYAML), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/cat/c3s-cmip6.csv.gz", gz(t, inventoryCSV), 0o644))
	return fs
}

func interval(t *testing.T, s string) timeparam.Filter {
	t.Helper()
	f, err := timeparam.Parse(s)
	require.NoError(t, err)
	return f
}

func TestReadInventory_SkipsBadRows(t *testing.T) {
	t.Parallel()

	var lines []int
	rows, err := ReadInventory(context.Background(), strings.NewReader(inventoryCSV), func(line int, err error) {
		lines = append(lines, line)
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int{5, 6}, lines)

	assert.Equal(t, tasID, rows[0].DatasetID)
	assert.Equal(t, "2015-01-16T12:00:00", rows[0].Start)
	assert.Equal(t, timeparam.MinTime.String(), rows[2].Start)
	assert.Equal(t, timeparam.MaxTime.String(), rows[2].End)
}

func TestReadInventory_RequiresColumns(t *testing.T) {
	t.Parallel()

	_, err := ReadInventory(context.Background(), strings.NewReader("id,file\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"ds_id"`)
}

func TestIntake_Search(t *testing.T) {
	t.Parallel()

	cat, err := Open("c3s-cmip6", project, config.Catalog{IntakeCatalogURL: "/cat/c3s.yaml"}, Deps{Fs: memCatalog(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	ctx := context.Background()

	res, err := cat.Search(ctx, []string{tasID}, timeparam.None)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matches())
	assert.Equal(t, []string{
		"/data/c3s-cmip6/ScenarioMIP/INM/rlds_2015-2064.nc",
		"/data/c3s-cmip6/ScenarioMIP/INM/rlds_2065-2100.nc",
	}, res.Files()[tasID])

	res, err = cat.Search(ctx, []string{tasID}, interval(t, "2070-01-01/2080-12-31"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://data.example.org/thredds/fileServer/esg_c3s-cmip6/ScenarioMIP/INM/rlds_2065-2100.nc",
	}, res.DownloadURLs()[tasID])

	res, err = cat.Search(ctx, []string{tasID}, interval(t, "2101-01-01/2200-12-31"))
	require.NoError(t, err)
	assert.Zero(t, res.Matches())
}

func TestIntake_FixedFieldMatchesAnyWindow(t *testing.T) {
	t.Parallel()

	cat, err := Open("c3s-cmip6", project, config.Catalog{IntakeCatalogURL: "/cat/c3s.yaml"}, Deps{Fs: memCatalog(t)})
	require.NoError(t, err)

	res, err := cat.Search(context.Background(), []string{fxID, tasID}, interval(t, "1850-01-01/1851-01-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{fxID}, res.IDs())
}

func TestIntake_OverHTTPLoadsOnce(t *testing.T) {
	t.Parallel()

	var inventoryHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/catalogs/c3s.yaml", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(intakeYAML))
	})
	mux.HandleFunc("/catalogs/c3s-cmip6.csv.gz", func(w http.ResponseWriter, _ *http.Request) {
		inventoryHits.Add(1)
		_, _ = w.Write(gz(t, inventoryCSV))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := httpds.NewClient(httpds.Config{Transport: srv.Client().Transport})
	cache := NewCache()
	cat, err := Open("c3s-cmip6", project, config.Catalog{IntakeCatalogURL: srv.URL + "/catalogs/c3s.yaml"},
		Deps{HTTP: client, Cache: cache})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := cat.Search(context.Background(), []string{tasID}, timeparam.None)
			assert.NoError(t, err)
			assert.Equal(t, 1, res.Matches())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inventoryHits.Load())
	assert.True(t, cache.Loaded("c3s-cmip6"))
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	t.Parallel()

	c := NewCache()
	boom := errors.New("boom")
	calls := 0
	load := func(context.Context) ([]Row, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return []Row{{DatasetID: "a"}}, nil
	}

	_, err := c.Rows(context.Background(), "p", load)
	require.ErrorIs(t, err, boom)
	assert.False(t, c.Loaded("p"))

	rows, err := c.Rows(context.Background(), "p", load)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 2, calls)
}

func TestOpen_Errors(t *testing.T) {
	t.Parallel()

	_, err := Open("c3s-cmip6", project, config.Catalog{}, Deps{})
	require.Error(t, err)

	p := project
	p.CatalogKind = "solr"
	_, err = Open("c3s-cmip6", p, config.Catalog{IntakeCatalogURL: "/x.yaml"}, Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solr")
}

func TestInventoryLocation_MissingSource(t *testing.T) {
	t.Parallel()

	_, err := inventoryLocation(context.Background(), Deps{Fs: memCatalog(t)}, "/cat/c3s.yaml", "cmip6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"cmip6"`)
}

func TestDB_MirrorsAndSearches(t *testing.T) {
	t.Parallel()

	p := project
	p.CatalogKind = "db"
	dsn := "file:" + filepath.Join(t.TempDir(), "catalog.db")
	cat, err := Open("c3s-cmip6", p, config.Catalog{IntakeCatalogURL: "/cat/c3s.yaml", DBDSN: dsn}, Deps{Fs: memCatalog(t)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	ctx := context.Background()

	res, err := cat.Search(ctx, []string{tasID, fxID}, interval(t, "2050-01-01/2070-01-01"))
	require.NoError(t, err)
	assert.Equal(t, []string{tasID, fxID}, res.IDs())
	assert.Len(t, res.Files()[tasID], 2)

	// A second search reuses the existing table.
	res, err = cat.Search(ctx, []string{tasID}, interval(t, "2090-01-01/"))
	require.NoError(t, err)
	assert.Equal(t, []string{"/data/c3s-cmip6/ScenarioMIP/INM/rlds_2065-2100.nc"}, res.Files()[tasID])

	db := cat.(*DB)
	ok, err := db.exists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTableName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "catalog_c3s_cmip6", TableName("c3s-cmip6"))
	assert.Equal(t, "catalog_cmip5", TableName("CMIP5"))
}
