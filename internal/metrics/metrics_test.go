package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peronio/realmnet/protocol"
)

func TestConnectionGauge(t *testing.T) {
	t.Parallel()

	c := New()
	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.opened))
}

func TestObserveDispatch(t *testing.T) {
	t.Parallel()

	c := New()
	c.ObserveDispatch(protocol.KindPing, "handled", time.Millisecond)
	c.ObserveDispatch(protocol.KindPing, "handled", time.Millisecond)
	c.ObserveDispatch("invalid", "rejected", 0)
	c.RateLimited()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.messages.WithLabelValues("system:ping", "handled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("invalid", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rateLimited))
	assert.Equal(t, 1, testutil.CollectAndCount(c.latency))
}

func TestHandler(t *testing.T) {
	t.Parallel()

	c := New()
	c.ConnectionOpened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "realmnet_connections 1")
	assert.Contains(t, string(body), "go_goroutines")
}
