package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthAndLive(t *testing.T) {
	s := NewServer(Config{ServiceName: "quail-api", Version: "1.2.3"})

	rec, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "quail-api", body["service"])
	assert.Equal(t, "1.2.3", body["version"])

	rec, _ = get(t, s, "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	runnerErr := errors.New("connection refused")
	var runnerDown bool

	s := NewServer(Config{
		ServiceName: "quail-api",
		Checks: map[string]Checker{
			"database": CheckerFunc(func(context.Context) error { return nil }),
			"runner": CheckerFunc(func(context.Context) error {
				if runnerDown {
					return runnerErr
				}
				return nil
			}),
			"skipped": nil,
		},
	})

	rec, body := get(t, s, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not_ready", body["status"])

	s.SetReady(true)
	rec, body = get(t, s, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "ok", checks["runner"])
	assert.NotContains(t, checks, "skipped")

	runnerDown = true
	rec, body = get(t, s, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks = body["checks"].(map[string]interface{})
	assert.Equal(t, "error: connection refused", checks["runner"])
}

func TestNewServerDefaultPort(t *testing.T) {
	assert.Equal(t, 8081, NewServer(Config{}).port)
	assert.Equal(t, 9000, NewServer(Config{Port: 9000}).port)
}
