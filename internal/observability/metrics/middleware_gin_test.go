package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherFamily(t *testing.T, registry *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric family %s not found", name)
	return nil
}

func labelValue(metric *dto.Metric, name string) string {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name {
			return pair.GetValue()
		}
	}
	return ""
}

func TestGinMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := New(registry, Config{ServiceName: "bookkeeping", Environment: "test"})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/v1/vouchers/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, guid := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/vouchers/"+guid, nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	requests := gatherFamily(t, registry, "bookkeeping_http_requests_total")
	counts := map[string]float64{}
	for _, metric := range requests.GetMetric() {
		assert.Equal(t, "test", labelValue(metric, "env"))
		counts[labelValue(metric, "route")+" "+labelValue(metric, "status")] = metric.GetCounter().GetValue()
	}
	assert.Equal(t, float64(2), counts["/v1/vouchers/:id 404"])
	assert.Equal(t, float64(1), counts["unknown 404"])

	latency := gatherFamily(t, registry, "bookkeeping_http_request_duration_seconds")
	assert.Equal(t, dto.MetricType_HISTOGRAM, latency.GetType())
	var samples uint64
	for _, metric := range latency.GetMetric() {
		samples += metric.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, uint64(3), samples)
}

func TestGinMiddlewareNilMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
