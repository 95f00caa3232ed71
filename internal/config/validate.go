package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that should be surfaced to users but
	// does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "fix_store.kind",
// "projects.cmip6.base_dir"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over a loaded Config. It does not mutate
// the config. Callers decide whether warnings are fatal.
//
//	issues := config.Validate(cfg)
//	if config.HasErrors(issues) { ... }
func Validate(c Config) []Issue {
	var issues []Issue
	issues = append(issues, validateProjects(c)...)
	issues = append(issues, validateFixStore(c.FixStore)...)
	issues = append(issues, validateLogging(c.Logging)...)
	issues = append(issues, validateMetrics(c.Metrics)...)
	issues = append(issues, validateExecution(c.Execution)...)
	return issues
}

func validateProjects(c Config) []Issue {
	var issues []Issue

	if len(c.Projects) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "projects",
			Message:  "no projects configured; dotted ids cannot be resolved to paths",
		})
		return issues
	}

	names := make([]string, 0, len(c.Projects))
	for name := range c.Projects {
		names = append(names, name)
	}
	sort.Strings(names)

	knownCatalogs := map[string]struct{}{"intake": {}, "db": {}}

	for _, name := range names {
		p := c.Projects[name]
		base := "projects." + name
		if strings.TrimSpace(p.BaseDir) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     base + ".base_dir",
				Message:  "base_dir must not be empty",
			})
		}
		if !p.UseCatalog {
			continue
		}
		if _, ok := knownCatalogs[p.CatalogKind]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     base + ".catalog_kind",
				Message:  fmt.Sprintf("unknown catalog kind %q; expected intake or db", p.CatalogKind),
			})
			continue
		}
		switch p.CatalogKind {
		case "intake":
			if strings.TrimSpace(c.Catalog.IntakeCatalogURL) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "catalog.intake_catalog_url",
					Message:  fmt.Sprintf("project %q uses the intake catalog but no catalog URL is set", name),
				})
			}
		case "db":
			if strings.TrimSpace(c.Catalog.DBDSN) == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     "catalog.db_dsn",
					Message:  fmt.Sprintf("project %q uses the db catalog but no DSN is set", name),
				})
			}
		}
		if strings.TrimSpace(p.DataNodeRoot) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     base + ".data_node_root",
				Message:  "catalog project has no data_node_root; download URLs will be bare paths",
			})
		}
	}
	return issues
}

func validateFixStore(s FixStore) []Issue {
	var issues []Issue

	if strings.TrimSpace(s.Kind) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "fix_store.kind",
			Message:  "no fix store configured; datasets will be opened without fixes",
		})
		return issues
	}

	known := map[string]struct{}{
		"http":     {},
		"sqlite":   {},
		"postgres": {},
		"mssql":    {},
		"mysql":    {},
		"dir":      {},
		"memory":   {},
	}
	if _, ok := known[s.Kind]; !ok {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "fix_store.kind",
			Message:  fmt.Sprintf("unknown fix store kind %q; ensure a matching backend is registered", s.Kind),
		})
	}

	switch s.Kind {
	case "http":
		if u, err := url.Parse(s.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "fix_store.endpoint",
				Message:  fmt.Sprintf("http fix store requires an absolute endpoint URL, got %q", s.Endpoint),
			})
		}
	case "sqlite", "postgres", "mssql", "mysql":
		if strings.TrimSpace(s.DSN) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "fix_store.dsn",
				Message:  fmt.Sprintf("%s fix store requires a dsn", s.Kind),
			})
		}
	case "dir":
		if strings.TrimSpace(s.Dir) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "fix_store.dir",
				Message:  "dir fix store requires a directory",
			})
		}
	}

	switch s.KeyHash {
	case "md5", "sha256", "xxh3":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "fix_store.key_hash",
			Message:  fmt.Sprintf("unknown key hash %q; expected md5, sha256 or xxh3", s.KeyHash),
		})
	}
	return issues
}

func validateLogging(l Logging) []Issue {
	var issues []Issue
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "logging.level",
			Message:  fmt.Sprintf("unknown log level %q", l.Level),
		})
	}
	switch l.Encoding {
	case "json", "console":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "logging.encoding",
			Message:  fmt.Sprintf("unknown log encoding %q; expected json or console", l.Encoding),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "none", "":
	case "pushgateway":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend requires pushgateway_url (or PUSHGATEWAY_URL)",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.DatadogAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend has no address; the client default will be used",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}
	return issues
}

func validateExecution(e Execution) []Issue {
	switch e.Mode {
	case "serial", "parallel":
		return nil
	}
	return []Issue{{
		Severity: SeverityError,
		Path:     "execution.mode",
		Message:  fmt.Sprintf("unknown execution mode %q; expected serial or parallel", e.Mode),
	}}
}
