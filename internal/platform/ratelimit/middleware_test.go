package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Result, error) {
	return Result{}, errors.New("redis unavailable")
}

func serve(t *testing.T, h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/applications/ack/WR-20260301-ABCD", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLimitRejectsBeyondQuota(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := New(NewMemory(), logger, 2, time.Minute).Limit("ack")(next)

	for range 2 {
		rr := serve(t, h, "192.0.2.10:4100")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	}

	rr := serve(t, h, "192.0.2.10:4101")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), `"kind":"rate_limited"`)

	rr = serve(t, h, "198.51.100.7:4100")
	assert.Equal(t, http.StatusOK, rr.Code, "another client has its own window")
}

func TestLimitFailsOpen(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	h := New(failingStore{}, logger, 1, time.Minute).Limit("submit")(next)

	rr := serve(t, h, "192.0.2.10:4100")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)
}

func TestLimitDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	for _, m := range []*Middleware{
		New(NewMemory(), logger, 1, time.Minute, WithDisabled(true)),
		New(NewMemory(), logger, 0, time.Minute),
	} {
		h := m.Limit("ack")(next)
		for range 3 {
			assert.Equal(t, http.StatusOK, serve(t, h, "192.0.2.10:4100").Code)
		}
	}
}
