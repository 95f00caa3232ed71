// Package config defines the configuration model for dataset resolution:
// per-project archive layout, the fix store, the catalog, HTTP transport,
// logging, and metrics.
//
// Configuration is read from a YAML file and then overlaid with environment
// variables. Environment access goes through an injected getenv function so
// tests stay hermetic:
//
//	cfg, err := config.Load(afero.NewOsFs(), "daops.yaml", os.Getenv)
//
// Example (trimmed):
//
//	projects:
//	  cmip5:
//	    base_dir: /badc/cmip5/data
//	    file_glob: "*.ncj"
//	  c3s-cmip6:
//	    base_dir: /data/c3s-cmip6
//	    data_node_root: https://data.example.org/thredds/fileServer/c3s-cmip6
//	    use_catalog: true
//	catalog:
//	  intake_catalog_url: https://example.org/catalogs/c3s.yaml
//	fix_store:
//	  kind: http
//	  endpoint: https://elasticsearch.example.org:443
//	  index: roocs-fix
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Default values applied by Load and Defaults.
const (
	DefaultFileGlob    = "*.ncj"
	DefaultKeyHash     = "md5"
	DefaultFixIndex    = "roocs-fix"
	DefaultFixTable    = "fixes"
	DefaultCatalogKind = "intake"
)

// Config is the top-level configuration document.
type Config struct {
	Projects  map[string]Project `yaml:"projects"`
	Catalog   Catalog            `yaml:"catalog"`
	FixStore  FixStore           `yaml:"fix_store"`
	HTTP      HTTP               `yaml:"http"`
	Logging   Logging            `yaml:"logging"`
	Metrics   Metrics            `yaml:"metrics"`
	Execution Execution          `yaml:"execution"`
}

// Project describes how one archive project is laid out on disk and whether
// its datasets are resolved through the catalog.
type Project struct {
	// BaseDir is the local root the dotted id is resolved against.
	BaseDir string `yaml:"base_dir"`

	// DataNodeRoot prefixes catalog paths when download URLs are requested.
	DataNodeRoot string `yaml:"data_node_root"`

	// UseCatalog routes consolidation through the catalog instead of
	// filesystem probing.
	UseCatalog bool `yaml:"use_catalog"`

	// CatalogKind selects the catalog implementation: "intake" or "db".
	CatalogKind string `yaml:"catalog_kind"`

	// FileGlob is appended to a dataset directory when probing the filesystem.
	FileGlob string `yaml:"file_glob"`

	// StripVersion drops a trailing version segment (vYYYYMMDD or "latest")
	// when a path is converted to a dotted id.
	StripVersion bool `yaml:"strip_version"`
}

// Catalog configures the inventory catalog shared by all projects.
type Catalog struct {
	// IntakeCatalogURL points at an intake YAML catalog (URL or local path).
	IntakeCatalogURL string `yaml:"intake_catalog_url"`

	// DBDSN is the SQLite DSN backing the "db" catalog kind.
	DBDSN string `yaml:"db_dsn"`
}

// FixStore configures the keyed fix record store.
type FixStore struct {
	// Kind selects the backend: http, sqlite, postgres, mssql, mysql, dir,
	// memory.
	Kind string `yaml:"kind"`

	// Endpoint is the base URL of an HTTP (Elasticsearch-style) store.
	Endpoint string `yaml:"endpoint"`

	// Index is the document index used by the HTTP store.
	Index string `yaml:"index"`

	// DSN is the connection string for SQL backends.
	DSN string `yaml:"dsn"`

	// Table holds (key, doc) rows for SQL backends.
	Table string `yaml:"table"`

	// Dir holds one <key>.json document per dataset for the "dir" backend.
	Dir string `yaml:"dir"`

	// KeyHash selects the store key function: md5, sha256 or xxh3.
	KeyHash string `yaml:"key_hash"`
}

// HTTP configures the retrying HTTP client used for remote stores, catalogs
// and datasets. Zero values fall back to the client defaults.
type HTTP struct {
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	InitialBackoff     time.Duration `yaml:"initial_backoff"`
	MaxBackoff         time.Duration `yaml:"max_backoff"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// Logging configures the zap logger.
type Logging struct {
	Level    string `yaml:"level"`    // debug, info, warn, error
	Encoding string `yaml:"encoding"` // json or console
}

// Metrics selects a metrics backend.
type Metrics struct {
	Backend        string `yaml:"backend"` // none, pushgateway, datadog
	Job            string `yaml:"job"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	DatadogAddr    string `yaml:"datadog_addr"`
}

// Execution selects the dispatch mode for per-dataset operations.
type Execution struct {
	Mode string `yaml:"mode"` // serial or parallel
}

// Defaults returns a Config with every default applied and no projects.
func Defaults() Config {
	var c Config
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Projects == nil {
		c.Projects = map[string]Project{}
	}
	for name, p := range c.Projects {
		if p.FileGlob == "" {
			p.FileGlob = DefaultFileGlob
		}
		if p.CatalogKind == "" {
			p.CatalogKind = DefaultCatalogKind
		}
		c.Projects[name] = p
	}
	if c.FixStore.KeyHash == "" {
		c.FixStore.KeyHash = DefaultKeyHash
	}
	if c.FixStore.Index == "" {
		c.FixStore.Index = DefaultFixIndex
	}
	if c.FixStore.Table == "" {
		c.FixStore.Table = DefaultFixTable
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Encoding == "" {
		c.Logging.Encoding = "console"
	}
	if c.Metrics.Backend == "" {
		c.Metrics.Backend = "none"
	}
	if c.Metrics.Job == "" {
		c.Metrics.Job = "daops"
	}
	if c.Execution.Mode == "" {
		c.Execution.Mode = "serial"
	}
}

// Parse decodes a YAML document, applies env overrides and defaults.
func Parse(b []byte, getenv func(string) string) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := c.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	c.applyDefaults()
	return c, nil
}

// Load reads path from fs and parses it. An empty path yields defaults
// overlaid with the environment.
func Load(fs afero.Fs, path string, getenv func(string) string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Parse(nil, getenv)
	}
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(b, getenv)
}

// Project returns the named project (case-insensitive).
func (c Config) Project(name string) (Project, bool) {
	if p, ok := c.Projects[name]; ok {
		return p, true
	}
	for k, p := range c.Projects {
		if strings.EqualFold(k, name) {
			return p, true
		}
	}
	return Project{}, false
}

// applyEnv overlays DAOPS_* environment variables. Env values win over the
// file so deployments can repoint stores without editing YAML.
func (c *Config) applyEnv(getenv func(string) string) error {
	if getenv == nil {
		return nil
	}
	str := func(k string, dst *string) {
		if v := strings.TrimSpace(getenv(k)); v != "" {
			*dst = v
		}
	}
	str("DAOPS_FIX_STORE_KIND", &c.FixStore.Kind)
	str("DAOPS_FIX_STORE_ENDPOINT", &c.FixStore.Endpoint)
	str("DAOPS_FIX_STORE_INDEX", &c.FixStore.Index)
	str("DAOPS_FIX_STORE_DSN", &c.FixStore.DSN)
	str("DAOPS_FIX_STORE_DIR", &c.FixStore.Dir)
	str("DAOPS_KEY_HASH", &c.FixStore.KeyHash)
	str("DAOPS_INTAKE_CATALOG_URL", &c.Catalog.IntakeCatalogURL)
	str("DAOPS_CATALOG_DB_DSN", &c.Catalog.DBDSN)
	str("DAOPS_LOG_LEVEL", &c.Logging.Level)
	str("DAOPS_LOG_ENCODING", &c.Logging.Encoding)
	str("DAOPS_METRICS_BACKEND", &c.Metrics.Backend)
	str("PUSHGATEWAY_URL", &c.Metrics.PushgatewayURL)
	str("DD_AGENT_ADDR", &c.Metrics.DatadogAddr)
	str("DAOPS_MODE", &c.Execution.Mode)

	if v := strings.TrimSpace(getenv("DAOPS_HTTP_MAX_RETRIES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: DAOPS_HTTP_MAX_RETRIES: %w", err)
		}
		c.HTTP.MaxRetries = n
	}
	if v := strings.TrimSpace(getenv("DAOPS_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: DAOPS_HTTP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	return nil
}
