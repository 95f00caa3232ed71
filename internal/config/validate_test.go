package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validConfig() Config {
	c := Config{
		Projects: map[string]Project{
			"cmip6": {BaseDir: "/badc/cmip6/data"},
		},
		FixStore: FixStore{Kind: "sqlite", DSN: "file:fixes.db"},
	}
	c.applyDefaults()
	return c
}

func TestValidate_ValidMinimal(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Validate(validConfig()))
}

func TestValidate_Findings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{
			name:   "empty base dir",
			mutate: func(c *Config) { c.Projects["cmip6"] = Project{CatalogKind: "intake"} },
			sev:    SeverityError,
			path:   "projects.cmip6.base_dir",
			msg:    "must not be empty",
		},
		{
			name: "intake catalog without url",
			mutate: func(c *Config) {
				c.Projects["c3s"] = Project{BaseDir: "/x", UseCatalog: true, CatalogKind: "intake", DataNodeRoot: "https://n"}
			},
			sev:  SeverityError,
			path: "catalog.intake_catalog_url",
			msg:  `project "c3s"`,
		},
		{
			name: "unknown catalog kind",
			mutate: func(c *Config) {
				c.Projects["c3s"] = Project{BaseDir: "/x", UseCatalog: true, CatalogKind: "solr"}
			},
			sev:  SeverityError,
			path: "projects.c3s.catalog_kind",
			msg:  "unknown catalog kind",
		},
		{
			name:   "http store without endpoint",
			mutate: func(c *Config) { c.FixStore = FixStore{Kind: "http", KeyHash: "md5"} },
			sev:    SeverityError,
			path:   "fix_store.endpoint",
			msg:    "absolute endpoint URL",
		},
		{
			name:   "unknown store kind",
			mutate: func(c *Config) { c.FixStore.Kind = "redis" },
			sev:    SeverityWarning,
			path:   "fix_store.kind",
			msg:    "unknown fix store kind",
		},
		{
			name:   "no store",
			mutate: func(c *Config) { c.FixStore.Kind = "" },
			sev:    SeverityWarning,
			path:   "fix_store.kind",
			msg:    "without fixes",
		},
		{
			name:   "bad key hash",
			mutate: func(c *Config) { c.FixStore.KeyHash = "crc32" },
			sev:    SeverityError,
			path:   "fix_store.key_hash",
			msg:    "crc32",
		},
		{
			name:   "pushgateway without url",
			mutate: func(c *Config) { c.Metrics.Backend = "pushgateway" },
			sev:    SeverityError,
			path:   "metrics.pushgateway_url",
			msg:    "requires pushgateway_url",
		},
		{
			name:   "bad mode",
			mutate: func(c *Config) { c.Execution.Mode = "async" },
			sev:    SeverityError,
			path:   "execution.mode",
			msg:    "async",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "trace" },
			sev:    SeverityError,
			path:   "logging.level",
			msg:    "trace",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := validConfig()
			tt.mutate(&c)
			issues := Validate(c)
			assert.True(t, hasIssue(t, issues, tt.sev, tt.path, tt.msg), "issues: %+v", issues)
		})
	}
}

func TestHasErrors(t *testing.T) {
	t.Parallel()
	assert.False(t, HasErrors([]Issue{{Severity: SeverityWarning}}))
	assert.True(t, HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}))
}
