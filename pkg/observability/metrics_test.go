package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/submissions/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["id"] == "2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/submissions/1", "/submissions/3", "/submissions/2"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	const route = "/submissions/{id:[0-9]+}"
	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", route, "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", route, "403")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthzDenialsTotal.WithLabelValues(route)))
}

func TestMetricsRecorders(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	m.RecordWorkflowOperation("assign_reviewer", "ok")
	m.RecordWorkflowOperation("assign_reviewer", "permission_denied")
	m.RecordStatusTransition("submitted", "under_review")
	m.RecordStorageOperation("save", "fs", time.Millisecond, errors.New("disk full"))
	m.RecordCacheHit("roles")
	m.RecordCacheMiss("roles")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowOperationsTotal.WithLabelValues("assign_reviewer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowOperationsTotal.WithLabelValues("assign_reviewer", "permission_denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusTransitionsTotal.WithLabelValues("submitted", "under_review")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("save", "fs", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("roles")))

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "folio_submission_status_transitions_total"))
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != name {
				continue
			}
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestOTelMetricsAndFanOut(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otelMetrics, err := NewOTelMetrics(provider.Meter("test"))
	require.NoError(t, err)
	prom := NewMetrics(prometheus.NewRegistry())

	rs := Recorders{prom, otelMetrics}
	rs.RecordWorkflowOperation("change_status", "ok")
	rs.RecordStatusTransition("under_review", "accepted")
	storageRecs := StorageRecorders{prom, otelMetrics}
	storageRecs.RecordStorageOperation("open", "s3", time.Millisecond, nil)
	storageRecs.RecordUploadSize("s3", 2048)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), sumOf(t, rm, "folio.workflow.operations"))
	assert.Equal(t, int64(1), sumOf(t, rm, "folio.submission.transitions"))
	assert.Equal(t, int64(1), sumOf(t, rm, "folio.storage.operations"))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.StatusTransitionsTotal.WithLabelValues("under_review", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(prom.StorageOperationsTotal.WithLabelValues("open", "s3", "ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(prom.ManuscriptBytes))
}
