package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"daops/internal/dataset"
	"daops/internal/dsref"
	"daops/internal/errs"
	"daops/internal/fix/builtin"
)

const (
	testID  = "cmip6.CMIP.MOHC.HadGEM3-GC31-LL.historical.r1i1p1f3.Amon.tas.gn.v20190624"
	testDir = "/data/cmip6/CMIP/MOHC/HadGEM3-GC31-LL/historical/r1i1p1f3/Amon/tas/gn/v20190624"
)

const testConfig = `
projects:
  cmip6:
    base_dir: /data/cmip6
fix_store:
  kind: dir
  dir: /fixes
logging:
  level: error
`

func writeYears(t *testing.T, fs afero.Fs, y0, y1 int) {
	t.Helper()
	ds := dataset.New()
	var times, vals []any
	for y := y0; y <= y1; y++ {
		times = append(times, fmt.Sprintf("%04d-07-01", y))
		vals = append(vals, 280.0)
	}
	ds.Coords["time"] = dataset.New1D("time", times, nil)
	ds.DataVars["tas"] = dataset.New1D("time", vals, dataset.Attrs{"units": "K"})
	var buf bytes.Buffer
	require.NoError(t, dataset.Encode(&buf, ds))
	name := fmt.Sprintf("%s/tas_Amon_gn_%d01-%d12.ncj", testDir, y0, y1)
	require.NoError(t, afero.WriteFile(fs, name, buf.Bytes(), 0o644))
}

func fixture(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/daops.yaml", []byte(testConfig), 0o644))
	writeYears(t, fs, 2000, 2009)
	writeYears(t, fs, 2010, 2014)
	doc := fmt.Sprintf(`{"fixes":[{"reference_implementation":%q,"process_type":"post_processor","operands":{"attrs":{"title":"fixed"}}}]}`,
		builtin.EditGlobalAttrs)
	require.NoError(t, afero.WriteFile(fs, "/fixes/"+dsref.MD5Key(testID)+".json", []byte(doc), 0o644))
	return fs
}

func noEnv(string) string { return "" }

func run(t *testing.T, fs afero.Fs, getenv func(string) string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(fs, getenv, &out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConsolidateCmd(t *testing.T) {
	fs := fixture(t)
	out, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "consolidate", testID, "--time", "2012/2013")
	require.NoError(t, err)

	var rows []struct {
		ID    string   `yaml:"ds_id"`
		Files []string `yaml:"files"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, testID, rows[0].ID)
	assert.Equal(t, []string{testDir + "/tas_Amon_gn_201001-201412.ncj"}, rows[0].Files)
}

func TestConsolidateCmd_Errors(t *testing.T) {
	fs := fixture(t)

	_, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "consolidate")
	require.Error(t, err)

	_, err = run(t, fs, noEnv, "--config", "/etc/daops.yaml", "consolidate", testID, "--time", "1900/1901")
	require.ErrorIs(t, err, errs.ErrEmptyTimeRange)

	_, err = run(t, fs, noEnv, "--config", "/etc/daops.yaml", "consolidate", testID, "--time", "2000", "--time-components", "year:2000")
	require.Error(t, err)
}

func TestExportCmd_AppliesFixes(t *testing.T) {
	fs := fixture(t)
	out, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "export", testID, "--output-dir", "/out")
	require.NoError(t, err)
	assert.Equal(t, "/out/output_001.ncj\n", out)

	b, err := afero.ReadFile(fs, "/out/output_001.ncj")
	require.NoError(t, err)
	ds, err := dataset.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "fixed", ds.Attrs["title"])
	assert.Equal(t, 15, ds.DataVars["tas"].Size())
}

func TestExportCmd_WithoutFixesFromListFile(t *testing.T) {
	fs := fixture(t)
	require.NoError(t, afero.WriteFile(fs, "/refs.txt", []byte("# datasets\n"+testID+"\n\n"+testID+"\n"), 0o644))

	out, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "export",
		"--from-file", "/refs.txt", "--apply-fixes=false", "--output-dir", "/out", "--mode", "parallel")
	require.NoError(t, err)
	assert.Equal(t, []string{"/out/output_001.ncj", "/out/output_002.ncj"}, strings.Fields(out))

	b, err := afero.ReadFile(fs, "/out/output_002.ncj")
	require.NoError(t, err)
	ds, err := dataset.Decode(b)
	require.NoError(t, err)
	assert.NotContains(t, ds.Attrs, "title")
}

func TestFixesCmd(t *testing.T) {
	fs := fixture(t)
	out, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "fixes", testDir)
	require.NoError(t, err)

	var got []struct {
		ID    string `json:"ds_id"`
		Key   string `json:"key"`
		Fixes []struct {
			Name string `json:"reference_implementation"`
			Type string `json:"process_type"`
		} `json:"fixes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, testID, got[0].ID)
	assert.Equal(t, dsref.MD5Key(testID), got[0].Key)
	require.Len(t, got[0].Fixes, 1)
	assert.Equal(t, builtin.EditGlobalAttrs, got[0].Fixes[0].Name)
	assert.Equal(t, "post_processor", got[0].Fixes[0].Type)
}

func TestEnvFileFillsUnsetSettings(t *testing.T) {
	fs := fixture(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/daops.env", []byte("DAOPS_FIX_STORE_DIR=/other-fixes\nDAOPS_MODE=async\n"), 0o644))

	// The env file points at an empty fix directory and an invalid mode.
	_, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "--env-file", "/etc/daops.env", "validate")
	require.Error(t, err)

	// Process env wins over the file.
	env := func(k string) string {
		if k == "DAOPS_MODE" {
			return "serial"
		}
		return ""
	}
	require.NoError(t, fs.MkdirAll("/other-fixes", 0o755))
	out, err := run(t, fs, env, "--config", "/etc/daops.yaml", "--env-file", "/etc/daops.env", "fixes", testID)
	require.NoError(t, err)
	assert.Contains(t, out, `"fixes": []`)
}

func TestValidateCmd(t *testing.T) {
	fs := fixture(t)
	out, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	require.NoError(t, afero.WriteFile(fs, "/etc/bad.yaml", []byte("fix_store:\n  kind: http\n"), 0o644))
	out, err = run(t, fs, noEnv, "--config", "/etc/bad.yaml", "validate")
	require.Error(t, err)
	assert.Contains(t, out, "fix_store.endpoint")
}

func TestManifestCmd(t *testing.T) {
	out, err := run(t, afero.NewMemMapFs(), noEnv, "manifest")
	require.NoError(t, err)

	var m map[string][]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &m))
	assert.Contains(t, m["post_processors"], builtin.EditGlobalAttrs)
	assert.Contains(t, m["derive_functions"], builtin.GetTimeCalendar)
	assert.Empty(t, m["pre_processors"])
}

func TestExportCmd_FileOutsideProjects(t *testing.T) {
	fs := fixture(t)
	ds := dataset.New()
	ds.Coords["time"] = dataset.New1D("time", []any{"2000-07-01"}, nil)
	ds.DataVars["tas"] = dataset.New1D("time", []any{280.0}, nil)
	var buf bytes.Buffer
	require.NoError(t, dataset.Encode(&buf, ds))
	const loose = "/scratch/tas_2000-2000.ncj"
	require.NoError(t, afero.WriteFile(fs, loose, buf.Bytes(), 0o644))

	out, err := run(t, fs, noEnv, "--config", "/etc/daops.yaml", "consolidate", loose)
	require.NoError(t, err)
	assert.Contains(t, out, "ds_id: "+loose)

	// Fixes are keyed by the entry id consolidate reported.
	doc := fmt.Sprintf(`{"fixes":[{"reference_implementation":%q,"process_type":"post_processor","operands":{"attrs":{"title":"loose"}}}]}`,
		builtin.EditGlobalAttrs)
	require.NoError(t, afero.WriteFile(fs, "/fixes/"+dsref.MD5Key(loose)+".json", []byte(doc), 0o644))

	out, err = run(t, fs, noEnv, "--config", "/etc/daops.yaml", "export", loose, "--output-dir", "/out")
	require.NoError(t, err)
	assert.Equal(t, "/out/output_001.ncj\n", out)

	b, err := afero.ReadFile(fs, "/out/output_001.ncj")
	require.NoError(t, err)
	got, err := dataset.Decode(b)
	require.NoError(t, err)
	assert.Equal(t, "loose", got.Attrs["title"])
}
