// Package metrics records operational metrics from daops runs behind a
// backend-agnostic interface.
//
// A process installs at most one Backend with SetBackend; until then every
// call is a no-op, so instrumented code never checks whether metrics are
// enabled. Concrete backends live in subpackages (prompush, datadog) so the
// rest of the module depends only on this package.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal           = "daops_step_total"
	StepDurationSeconds = "daops_step_duration_seconds"
	DatasetsTotal       = "daops_datasets_total"
	FilesTotal          = "daops_files_total"
)

// Steps of one orchestrated run.
const (
	StepConsolidate = "consolidate"
	StepAssemble    = "assemble"
	StepCompute     = "compute"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one step execution and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordDatasets counts datasets by kind, e.g. "consolidated", "assembled"
// or "fixed".
func RecordDatasets(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(DatasetsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordFiles counts resolved input files.
func RecordFiles(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(FilesTotal, float64(delta), Labels{
		"job": job,
	})
}
