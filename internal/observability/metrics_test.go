package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestMetrics_Usable verifies that label dimensions match usage across client, http, service, cache and mapview.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/weather", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/weather").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("weather", "success").Inc()
	UpstreamDuration.WithLabelValues("style", "client_error").Observe(0.2)
	UpstreamErrorsTotal.WithLabelValues("geocode", "schema").Inc()
	SchemaFailuresTotal.WithLabelValues("weather").Inc()
	CacheHitsTotal.WithLabelValues("weather").Inc()
	CacheMissesTotal.WithLabelValues("weather").Inc()
	StyleBreakerState.Set(0)
}

func TestRecordMapTransition_TracksAttachedGauge(t *testing.T) {
	before := testutil.ToFloat64(MapLayersAttached)
	RecordMapTransition("style_ready", "attached")
	if got := testutil.ToFloat64(MapLayersAttached); got != before+1 {
		t.Errorf("after attach gauge = %v, want %v", got, before+1)
	}
	RecordMapTransition("attached", "aborted")
	if got := testutil.ToFloat64(MapLayersAttached); got != before {
		t.Errorf("after abort gauge = %v, want %v", got, before)
	}
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
