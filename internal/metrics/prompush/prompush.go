// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package. Runs are short-lived, so metrics are pushed at the end of
// a run instead of being scraped.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"daops/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string
	jobName    string
	reg        *prometheus.Registry

	stepCounter    *prometheus.CounterVec
	stepDuration   *prometheus.SummaryVec
	datasetCounter *prometheus.CounterVec
	fileCounter    prometheus.Counter
}

// NewBackend constructs a Pushgateway backend. jobName is the Pushgateway
// grouping job and defaults to "daops".
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "daops"
	}

	reg := prometheus.NewRegistry()

	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Step executions (consolidate, assemble, compute) by status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDurationSeconds,
			Help:       "Step duration in seconds by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	datasetCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.DatasetsTotal,
			Help: "Datasets by kind (consolidated, assembled, fixed).",
		},
		[]string{"kind"},
	)
	fileCounter := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.FilesTotal,
			Help: "Input files resolved by consolidation.",
		},
	)

	for _, c := range []struct {
		what string
		c    prometheus.Collector
	}{
		{"step counter", stepCounter},
		{"step summary", stepDuration},
		{"dataset counter", datasetCounter},
		{"file counter", fileCounter},
	} {
		if err := reg.Register(c.c); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", c.what, err)
		}
	}

	return &Backend{
		gatewayURL:     gatewayURL,
		jobName:        jobName,
		reg:            reg,
		stepCounter:    stepCounter,
		stepDuration:   stepDuration,
		datasetCounter: datasetCounter,
		fileCounter:    fileCounter,
	}, nil
}

func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		if b.stepCounter == nil {
			return
		}
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)
	case metrics.DatasetsTotal:
		if b.datasetCounter == nil {
			return
		}
		b.datasetCounter.WithLabelValues(labels["kind"]).Add(delta)
	case metrics.FilesTotal:
		if b.fileCounter == nil {
			return
		}
		b.fileCounter.Add(delta)
	}
}

func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDurationSeconds || b.stepDuration == nil {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
