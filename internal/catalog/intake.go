package catalog

import (
	"context"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"daops/internal/datasource"
	"daops/internal/dsref"
)

// intakeFile is the subset of the intake YAML catalog format used here.
type intakeFile struct {
	Sources map[string]struct {
		Driver string `yaml:"driver"`
		Args   struct {
			URLPath string `yaml:"urlpath"`
		} `yaml:"args"`
	} `yaml:"sources"`
}

const catalogDirVar = "{{ CATALOG_DIR }}"

// inventoryLocation reads the intake catalog at url and returns the
// inventory location for project, resolved against the catalog's directory.
func inventoryLocation(ctx context.Context, deps Deps, url, project string) (string, error) {
	b, err := datasource.ReadAll(ctx, deps.Fs, deps.HTTP, url)
	if err != nil {
		return "", fmt.Errorf("catalog: read intake catalog %s: %w", url, err)
	}
	var f intakeFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return "", fmt.Errorf("catalog: decode intake catalog %s: %w", url, err)
	}
	src, ok := f.Sources[project]
	if !ok {
		return "", fmt.Errorf("catalog: intake catalog %s has no source %q", url, project)
	}
	loc := strings.TrimSpace(src.Args.URLPath)
	if loc == "" {
		return "", fmt.Errorf("catalog: source %q has no urlpath", project)
	}
	dir := catalogDir(url)
	loc = strings.ReplaceAll(loc, catalogDirVar, dir)
	loc = strings.ReplaceAll(loc, "{{CATALOG_DIR}}", dir)
	if !dsref.HasScheme(loc) && !path.IsAbs(loc) {
		if dsref.HasScheme(dir) {
			loc = dir + "/" + loc
		} else {
			loc = path.Join(dir, loc)
		}
	}
	return loc, nil
}

func catalogDir(url string) string {
	i := strings.LastIndex(url, "/")
	if i < 0 {
		return "."
	}
	if i == 0 {
		return "/"
	}
	return url[:i]
}
