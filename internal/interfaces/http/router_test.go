package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/config"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/KnotWeave/internal/interfaces/http/handlers"
	"github.com/turtacn/KnotWeave/internal/interfaces/http/middleware"
	"github.com/turtacn/KnotWeave/internal/testutil"
)

func newFullRouter(t *testing.T) (http.Handler, prometheus.MetricsCollector) {
	t.Helper()
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{Namespace: "knotweave"}, nil)
	require.NoError(t, err)
	metrics := prometheus.NewEngineMetrics(collector)
	logger := testutil.NewMockLogger()

	svc, err := matching.NewService(config.NewDefaultConfig(), logger, metrics)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	cors := middleware.DefaultCORSConfig("*")
	return NewRouter(RouterConfig{
		KnotHandler:    handlers.NewKnotHandler(svc, logger, 0),
		CompatHandler:  handlers.NewCompatHandler(svc, logger, 0),
		HealthHandler:  handlers.NewHealthHandler("test"),
		CORS:           &cors,
		Logging:        middleware.DefaultLoggingConfig(),
		Logger:         logger,
		Recorder:       metrics,
		MetricsHandler: collector.Handler(),
	}), collector
}

func TestNewRouter_RoutesRegistered(t *testing.T) {
	h, _ := newFullRouter(t)

	tests := []struct {
		method, path string
		body         string
		want         int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodPost, "/api/v1/knots", `{"entity_type":"brand","attributes":[0.9,0.1]}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/knots/evolve", `{"knot":{"braid":{"strands":2,"generators":[1]}},"seed":3}`, http.StatusOK},
		{http.MethodPost, "/api/v1/knots/stability", `{"knot":{"braid":{"strands":2,"generators":[1]}}}`, http.StatusOK},
		{http.MethodPost, "/api/v1/compatibility", `{"a":{"braid":{"strands":2,"generators":[1]}},"b":{"braid":{"strands":2,"generators":[1,1,1]}},"quantum_score":0.5}`, http.StatusOK},
		{http.MethodPost, "/api/v1/compatibility/weave", `{"knots":[{"braid":{"strands":2,"generators":[1]}},{"braid":{"strands":2,"generators":[1,1,1]}},{"braid":{"strands":3,"generators":[1,-2]}}],"quantum_scores":[0.5,0.5,0.5]}`, http.StatusOK},
		{http.MethodGet, "/api/v1/knots", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestNewRouter_NilHandlers_NoPanic(t *testing.T) {
	h := NewRouter(RouterConfig{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/knots", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_RequestIDAndCORS(t *testing.T) {
	h, _ := newFullRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/knots/stability",
		strings.NewReader(`{"knot":{"braid":{"strands":2,"generators":[1,1,1]}}}`))
	req.Header.Set("Origin", "https://ui.example.com")
	req.Header.Set("X-Request-Id", "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRouter_MetricsExposeEngineSeries(t *testing.T) {
	h, _ := newFullRouter(t)

	body := `{"entity_type":"company","attributes":[0.95,0.05,0.5]}`
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/knots", strings.NewReader(body)))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	out := w.Body.String()
	assert.Contains(t, out, `knotweave_http_requests_total{method="POST"`)
	assert.Contains(t, out, `status_code="201"`)
	assert.Contains(t, out, `knotweave_operations_total{operation="build",status="ok"} 1`)
	assert.Contains(t, out, `knotweave_cache_misses_total{cache="knot"} 1`)
}
