package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"daops/internal/assemble"
	"daops/internal/catalog"
	"daops/internal/config"
	"daops/internal/consolidate"
	"daops/internal/dataset"
	"daops/internal/datasource/httpds"
	"daops/internal/dsref"
	"daops/internal/fix"
	"daops/internal/fixstore"
	"daops/internal/logging"
	"daops/internal/metrics"
	"daops/internal/metrics/datadog"
	"daops/internal/metrics/prompush"
	"daops/internal/ops"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath string
	envFile    string
	verbose    bool
}

// app holds the clients built from the config for one command run.
type app struct {
	fs     afero.Fs
	out    io.Writer
	cfg    config.Config
	log    *zap.Logger
	http   *httpds.Client
	canon  *dsref.Canonicalizer
	store  fixstore.Store
	fixer  *fix.Fixer
	opener *dataset.Opener
	cache  *catalog.Cache

	mu       sync.Mutex
	catalogs map[string]catalog.Catalog
	flush    bool
}

// mergedEnv layers an optional dotenv file under the process environment.
func mergedEnv(fs afero.Fs, getenv func(string) string, envFile string) (func(string) string, error) {
	if envFile == "" {
		return getenv, nil
	}
	b, err := afero.ReadFile(fs, envFile)
	if err != nil {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	fileEnv, err := godotenv.Parse(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("parse env file %s: %w", envFile, err)
	}
	return func(k string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return fileEnv[k]
	}, nil
}

// loadConfig reads and validates the config. Warnings are returned with a
// nil error.
func loadConfig(fs afero.Fs, getenv func(string) string, o options) (config.Config, []config.Issue, error) {
	env, err := mergedEnv(fs, getenv, o.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	path := o.configPath
	if path == "" {
		path = env("DAOPS_CONFIG")
	}
	cfg, err := config.Load(fs, path, env)
	if err != nil {
		return config.Config{}, nil, err
	}
	issues := config.Validate(cfg)
	if config.HasErrors(issues) {
		return cfg, issues, errors.New("configuration is invalid")
	}
	return cfg, issues, nil
}

func newApp(ctx context.Context, fs afero.Fs, getenv func(string) string, out io.Writer, o options) (*app, error) {
	cfg, issues, err := loadConfig(fs, getenv, o)
	if err != nil {
		for _, iss := range issues {
			fmt.Fprintln(out, iss.Error())
		}
		return nil, err
	}
	log, err := logging.New(cfg.Logging, o.verbose)
	if err != nil {
		return nil, err
	}
	for _, iss := range issues {
		log.Warn("config", zap.String("path", iss.Path), zap.String("issue", iss.Message))
	}

	a := &app{
		fs:       fs,
		out:      out,
		cfg:      cfg,
		log:      log,
		http:     httpds.NewClient(httpds.FromConfig(cfg.HTTP, log)),
		canon:    dsref.NewCanonicalizer(cfg.Projects),
		cache:    catalog.NewCache(),
		catalogs: map[string]catalog.Catalog{},
	}
	a.opener = dataset.NewOpener(fs, a.http)

	a.store, err = fixstore.Open(ctx, cfg.FixStore, fixstore.Deps{Fs: fs, HTTP: a.http, Log: log})
	if err != nil {
		return nil, err
	}
	key, err := dsref.KeyFuncFor(cfg.FixStore.KeyHash)
	if err != nil {
		a.store.Close()
		return nil, err
	}
	a.fixer = fix.NewFixer(a.store, fix.Config{Canonicalizer: a.canon, Key: key, Logger: log})

	a.setupMetrics()
	return a, nil
}

func (a *app) setupMetrics() {
	m := a.cfg.Metrics
	switch m.Backend {
	case "pushgateway":
		b, err := prompush.NewBackend(m.Job, m.PushgatewayURL)
		if err != nil {
			a.log.Warn("metrics disabled", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		a.flush = true
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: m.DatadogAddr, Namespace: "daops."})
		if err != nil {
			a.log.Warn("metrics disabled", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
		a.flush = true
	case "", "none":
	default:
		a.log.Warn("unknown metrics backend; metrics disabled", zap.String("backend", m.Backend))
		return
	}
	a.log.Debug("metrics", zap.String("backend", m.Backend))
}

// catalogFor opens each project's catalog once per run.
func (a *app) catalogFor(_ context.Context, project string, p config.Project) (consolidate.Searcher, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.catalogs[project]; ok {
		return c, nil
	}
	c, err := catalog.Open(project, p, a.cfg.Catalog, catalog.Deps{Fs: a.fs, HTTP: a.http, Log: a.log, Cache: a.cache})
	if err != nil {
		return nil, err
	}
	a.catalogs[project] = c
	return c, nil
}

func (a *app) consolidator() *consolidate.Consolidator {
	return consolidate.New(consolidate.Config{
		Fs:            a.fs,
		Canonicalizer: a.canon,
		Catalog:       a.catalogFor,
		Opener:        a.opener,
		Logger:        a.log,
	})
}

func (a *app) orchestrator(mode ops.Mode) *ops.Orchestrator {
	return ops.New(a.consolidator(), assemble.New(a.opener, a.fixer, a.log), mode, a.log)
}

func (a *app) Close() error {
	var errs []error
	if a.flush {
		if err := metrics.Flush(); err != nil {
			a.log.Warn("metrics flush failed", zap.Error(err))
		}
	}
	a.mu.Lock()
	for _, c := range a.catalogs {
		errs = append(errs, c.Close())
	}
	a.mu.Unlock()
	errs = append(errs, a.store.Close())
	_ = a.log.Sync()
	return errors.Join(errs...)
}
