package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_IncrementCounter(t *testing.T) {
	// Reset the default registry to avoid conflicts
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewPrometheusCollector()
	collector.IncrementCounter("test_counter", "label1", "value1")
	collector.IncrementCounter("test_counter", "label1", "value1")

	counter := collector.(*PrometheusCollector).counters["test_counter"]
	require.NotNil(t, counter, "Counter should be created")

	value := testutil.ToFloat64(counter.WithLabelValues("value1"))
	assert.Equal(t, float64(2), value, "Counter should be incremented twice")
}

func TestPrometheusCollector_RecordHistogram(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewPrometheusCollector()
	collector.RecordHistogram("test_histogram", 42.0, "label1", "value1")

	histogram := collector.(*PrometheusCollector).histograms["test_histogram"]
	require.NotNil(t, histogram, "Histogram should be created")

	count := testutil.CollectAndCount(histogram)
	assert.Equal(t, 1, count, "Histogram should have one observation")
}

func TestPrometheusCollector_RecordGauge(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewPrometheusCollector()
	collector.RecordGauge("test_gauge", 42.0, "label1", "value1")

	gauge := collector.(*PrometheusCollector).gauges["test_gauge"]
	require.NotNil(t, gauge, "Gauge should be created")

	value := testutil.ToFloat64(gauge.WithLabelValues("value1"))
	assert.Equal(t, 42.0, value, "Gauge should be set to 42.0")
}

func TestPrometheusCollector_StartTimer(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	collector := NewPrometheusCollector()
	timer := collector.StartTimer("test_timer")

	time.Sleep(10 * time.Millisecond)

	duration := timer.Stop()
	assert.Greater(t, duration, 0.0, "Timer duration should be greater than 0")
	assert.Less(t, duration, 1.0, "Timer duration should be less than 1 second")

	// Stopping the timer lands the observation in the derived histogram.
	histogram := collector.(*PrometheusCollector).histograms["test_timer_seconds"]
	require.NotNil(t, histogram, "Timer histogram should be created on Stop")
	assert.Equal(t, 1, testutil.CollectAndCount(histogram))
}

func TestParseLabelPairs(t *testing.T) {
	tests := []struct {
		name       string
		labels     []string
		wantNames  []string
		wantValues []string
	}{
		{
			name:       "empty labels",
			labels:     []string{},
			wantNames:  []string{},
			wantValues: []string{},
		},
		{
			name:       "single pair",
			labels:     []string{"key1", "value1"},
			wantNames:  []string{"key1"},
			wantValues: []string{"value1"},
		},
		{
			name:       "multiple pairs",
			labels:     []string{"key1", "value1", "key2", "value2"},
			wantNames:  []string{"key1", "key2"},
			wantValues: []string{"value1", "value2"},
		},
		{
			name:       "odd number of labels drops the last",
			labels:     []string{"key1", "value1", "key2"},
			wantNames:  []string{"key1"},
			wantValues: []string{"value1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, values := parseLabelPairs(tt.labels)
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantValues, values)
		})
	}
}

func TestOpsServer_Healthz(t *testing.T) {
	srv := NewOpsServer("", nil, zerolog.Nop())

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestOpsServer_ReadyzReady(t *testing.T) {
	srv := NewOpsServer("", func(ctx context.Context) error { return nil }, zerolog.Nop())

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpsServer_ReadyzNotReady(t *testing.T) {
	probeErr := errors.New("connection pool is not initialized")
	srv := NewOpsServer("", func(ctx context.Context) error { return probeErr }, zerolog.Nop())

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "connection pool is not initialized")
}

func TestOpsServer_MetricsEndpoint(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	srv := NewOpsServer("", nil, zerolog.Nop())

	ts := httptest.NewServer(srv.routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpsServer_StopWithoutStart(t *testing.T) {
	srv := NewOpsServer(":0", nil, zerolog.Nop())
	assert.NoError(t, srv.Stop(), "Stopping an unstarted server should not error")
}
