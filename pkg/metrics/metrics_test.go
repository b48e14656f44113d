package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name {
			return label.GetValue()
		}
	}
	return ""
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.IncInFlight()
	m.Observe("GET", "/api/v1/products", "200", 120*time.Millisecond)
	m.Observe("GET", "/api/v1/products", "200", 80*time.Millisecond)
	m.DecInFlight()

	requests := gatherFamily(t, reg, "http_requests_total")
	require.NotNil(t, requests)
	require.Len(t, requests.GetMetric(), 1)
	metric := requests.GetMetric()[0]
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
	assert.Equal(t, "GET", labelValue(metric, "method"))
	assert.Equal(t, "/api/v1/products", labelValue(metric, "route"))
	assert.Equal(t, "200", labelValue(metric, "status"))

	duration := gatherFamily(t, reg, "http_request_duration_seconds")
	require.NotNil(t, duration)
	require.Len(t, duration.GetMetric(), 1)
	assert.Equal(t, uint64(2), duration.GetMetric()[0].GetHistogram().GetSampleCount())

	inFlight := gatherFamily(t, reg, "http_requests_in_flight")
	require.NotNil(t, inFlight)
	assert.Equal(t, float64(0), inFlight.GetMetric()[0].GetGauge().GetValue())
}

func TestHTTPMetricsNormalizesEmptyLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("", "", "", time.Millisecond)

	requests := gatherFamily(t, reg, "http_requests_total")
	require.NotNil(t, requests)
	require.Len(t, requests.GetMetric(), 1)
	assert.Equal(t, "unknown", labelValue(requests.GetMetric()[0], "route"))
}

func TestJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewJobMetrics(reg)

	m.ObserveDuration("outbox-publisher", 250*time.Millisecond)
	m.IncSuccess("outbox-publisher")
	m.IncSuccess("outbox-publisher")
	m.IncFailure("outbox-publisher")

	success := gatherFamily(t, reg, "job_success")
	require.NotNil(t, success)
	assert.Equal(t, float64(2), success.GetMetric()[0].GetCounter().GetValue())

	failure := gatherFamily(t, reg, "job_failure")
	require.NotNil(t, failure)
	assert.Equal(t, float64(1), failure.GetMetric()[0].GetCounter().GetValue())

	duration := gatherFamily(t, reg, "job_duration_seconds")
	require.NotNil(t, duration)
	assert.Equal(t, uint64(1), duration.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestMetricsNilReceiversAreSafe(t *testing.T) {
	var httpMetrics *HTTPMetrics
	httpMetrics.IncInFlight()
	httpMetrics.DecInFlight()
	httpMetrics.Observe("GET", "/", "200", time.Second)

	var jobMetrics *JobMetrics
	jobMetrics.ObserveDuration("job", time.Second)
	jobMetrics.IncSuccess("job")
	jobMetrics.IncFailure("job")

	unregistered := NewHTTPMetrics(nil)
	unregistered.Observe("GET", "/", "200", time.Second)
}
