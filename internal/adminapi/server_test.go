package adminapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/tchatsapp/core/internal/metrics"
)

func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	return New(0, reg)
}

func TestHealthzReturnsOK(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsExposesRegisteredCounters(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tchatsapp_relay_connections_opened_total")
}

func TestStartStopWithPortZeroIsNoop(t *testing.T) {
	s := New(0, prometheus.NewRegistry())

	assert.NoError(t, s.Start())
	assert.NoError(t, s.Stop(nil))
}
