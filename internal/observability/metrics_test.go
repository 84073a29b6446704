package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveImportCountsByOutcome(t *testing.T) {
	m := NewMetrics()
	m.ObserveImport("imported")
	m.ObserveImport("imported")
	m.ObserveImport("duplicate")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImportOutcomes().WithLabelValues("imported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImportOutcomes().WithLabelValues("duplicate")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ImportOutcomes().WithLabelValues("unparseable")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.ObserveImport("imported") })
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `sigreg_http_requests_total{method="GET",path="/ping",status="200"} 1`), body)
}
