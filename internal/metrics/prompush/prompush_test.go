package prompush

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daops/internal/metrics"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	require.NotNil(t, m.GetCounter())
	return m.GetCounter().GetValue()
}

func summaryCountSum(t *testing.T, v *prometheus.SummaryVec, labels ...string) (uint64, float64) {
	t.Helper()
	m := &dto.Metric{}
	metric, ok := v.WithLabelValues(labels...).(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, metric.Write(m))
	return m.GetSummary().GetSampleCount(), m.GetSummary().GetSampleSum()
}

func TestNewBackend(t *testing.T) {
	t.Parallel()

	_, err := NewBackend("job", "")
	require.Error(t, err)

	b, err := NewBackend("", "http://pushgateway:9091")
	require.NoError(t, err)
	assert.Equal(t, "daops", b.jobName)

	b, err = NewBackend("nightly", "http://pushgateway:9091")
	require.NoError(t, err)
	assert.Equal(t, "nightly", b.jobName)
}

func TestIncCounterRoutesByName(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("daops", "http://example.com")
	require.NoError(t, err)

	b.IncCounter(metrics.StepTotal, 3, metrics.Labels{"step": "assemble", "status": "success"})
	b.IncCounter(metrics.DatasetsTotal, 2, metrics.Labels{"kind": "fixed"})
	b.IncCounter(metrics.FilesTotal, 4, nil)
	b.IncCounter(metrics.FilesTotal, 0.5, nil)
	b.IncCounter("unknown_metric", 10, metrics.Labels{"foo": "bar"})

	assert.Equal(t, 3.0, counterValue(t, b.stepCounter.WithLabelValues("assemble", "success")))
	assert.Equal(t, 2.0, counterValue(t, b.datasetCounter.WithLabelValues("fixed")))
	assert.Equal(t, 4.5, counterValue(t, b.fileCounter))
	assert.Equal(t, 0.0, counterValue(t, b.stepCounter.WithLabelValues("x", "y")))
}

func TestZeroBackendIsSafe(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	assert.NotPanics(t, func() {
		b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "s", "status": "ok"})
		b.IncCounter(metrics.DatasetsTotal, 1, metrics.Labels{"kind": "fixed"})
		b.IncCounter(metrics.FilesTotal, 1, nil)
		b.ObserveHistogram(metrics.StepDurationSeconds, 1, nil)
	})
}

func TestObserveHistogram(t *testing.T) {
	t.Parallel()

	b, err := NewBackend("daops", "http://example.com")
	require.NoError(t, err)

	b.ObserveHistogram(metrics.StepDurationSeconds, 1.5, metrics.Labels{"step": "compute", "status": "success"})
	b.ObserveHistogram("other_metric", 2, metrics.Labels{"step": "compute", "status": "success"})

	n, sum := summaryCountSum(t, b.stepDuration, "compute", "success")
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, 1.5, sum)
}

func TestFlushPushesToGateway(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		method string
		path   string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		method, path, body = r.Method, r.URL.Path, string(b)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend("daops", srv.URL)
	require.NoError(t, err)
	b.IncCounter(metrics.FilesTotal, 3, nil)
	require.NoError(t, b.Flush())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.True(t, strings.HasPrefix(path, "/metrics/job/daops"), path)
	assert.NotEmpty(t, body)
}

func TestFlushReportsGatewayErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	b, err := NewBackend("daops", srv.URL)
	require.NoError(t, err)
	require.Error(t, b.Flush())
}
