package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/services/health"
	"iprisk-backend/internal/shared/config"
)

func TestHealthRoutes(t *testing.T) {
	r := NewRouter(RouterDeps{Config: config.Config{}})

	for _, path := range []string{"/healthz", "/api/v1/health"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	}
}

func TestHealthReportsDownDependency(t *testing.T) {
	r := NewRouter(RouterDeps{Health: health.NewService(map[string]health.Pinger{
		"db": health.PingFunc(func(context.Context) error { return errors.New("down") }),
	})})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	r := NewRouter(RouterDeps{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":8080", Addr(""))
	assert.Equal(t, ":9000", Addr("9000"))
	assert.Equal(t, ":9000", Addr(":9000"))
}
