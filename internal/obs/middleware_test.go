package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/unimart-ng/backend-unimart/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("unimart", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204"))
	require.Equal(t, float64(1), total, "request counter must record the labelled hit")

	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur), "latency histogram must have a sample")
	require.Zero(t, testutil.ToFloat64(metrics.InFlight), "in-flight gauge must return to zero")
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("unimart", nil, registry)
	second := obs.NewHTTPMetrics("unimart", nil, registry)

	first.ReqTotal.WithLabelValues(http.MethodGet, "/", "200").Inc()
	got := testutil.ToFloat64(second.ReqTotal.WithLabelValues(http.MethodGet, "/", "200"))
	require.Equal(t, float64(1), got, "both instances must share the same counter")
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 10, 25}, obs.ParseBucketsCSV(" 5, 10 ,25"))
	require.Nil(t, obs.ParseBucketsCSV("   "))
	require.Equal(t, []float64{50}, obs.ParseBucketsCSV("50,bogus,-1"), "bad entries are skipped")
}
