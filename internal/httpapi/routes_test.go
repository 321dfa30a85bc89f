package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, mutate func(*Options)) http.Handler {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	opts := Options{
		Env:         "test",
		ClientURL:   "http://localhost:5173",
		Connections: func() int { return 7 },
		Clock:       mock,
		Logger:      zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return SetupRoutes(opts)
}

func do(h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := do(newTestRouter(t, nil), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, healthResponse{Status: "ok", Timestamp: "2026-01-02T03:04:05Z", Version: DefaultVersion}, body)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	rec := do(newTestRouter(t, nil), http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, statusResponse{Server: ServerName, Version: DefaultVersion, Environment: "test", Connections: 7}, body)
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	rec := do(newTestRouter(t, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Request-Id"))
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, nil)

	rec := do(h, http.MethodGet, "/health", map[string]string{"Origin": "http://localhost:5173"})
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = do(h, http.MethodGet, "/health", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsAndSocketMounts(t *testing.T) {
	t.Parallel()

	h := newTestRouter(t, func(o *Options) {
		o.Metrics = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("metrics"))
		})
		o.SocketPath = "/ws"
		o.Socket = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
	})

	rec := do(h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, "metrics", rec.Body.String())

	rec = do(h, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"), "socket route bypasses middleware")
}

func TestMetricsAbsent(t *testing.T) {
	t.Parallel()

	rec := do(newTestRouter(t, nil), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
