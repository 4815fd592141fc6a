package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ryhazerus/ratelimit"
	"github.com/ryhazerus/ratelimit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, limit int64, trustProxy bool) *httptest.Server {
	t.Helper()
	window, err := ratelimit.NewSlidingWindow(limit, 1, ratelimit.Hours)
	require.NoError(t, err)

	limiter := ratelimit.New(window, ratelimit.WithLogger(slog.New(slog.DiscardHandler)))
	t.Cleanup(func() { limiter.Close() })

	srv := httptest.NewServer(newHandler(limiter, window, ratelimit.FailClosed, trustProxy))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_LimitsRequests(t *testing.T) {
	srv := newTestServer(t, 2, false)

	for i := 0; i < 2; i++ {
		resp := get(t, srv.URL+"/work")
		assert.Equal(t, http.StatusOK, resp.StatusCode, "request %d", i+1)
	}

	resp := get(t, srv.URL+"/work")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestHandler_RemainingIsNotCounted(t *testing.T) {
	srv := newTestServer(t, 5, false)

	get(t, srv.URL+"/work")
	for i := 0; i < 3; i++ {
		resp := get(t, srv.URL+"/remaining")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var got remainingResponse
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, int64(5), got.Limit)
		assert.Equal(t, int64(4), got.Remaining)
		assert.Equal(t, "127.0.0.1", got.Identifier)
		assert.Positive(t, got.Reset)
	}
}

func getFrom(t *testing.T, url, forwardedFor string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandler_ForwardedForIgnoredByDefault(t *testing.T) {
	srv := newTestServer(t, 1, false)

	admitted := 0
	for i := 0; i < 10; i++ {
		resp := getFrom(t, srv.URL+"/work", fmt.Sprintf("203.0.113.%d", i))
		if resp.StatusCode == http.StatusOK {
			admitted++
		}
	}
	assert.Equal(t, 1, admitted)
}

func TestHandler_TrustProxyHeaders(t *testing.T) {
	srv := newTestServer(t, 1, true)

	for i := 0; i < 3; i++ {
		resp := getFrom(t, srv.URL+"/work", fmt.Sprintf("203.0.113.%d", i))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := getFrom(t, srv.URL+"/work", "203.0.113.0")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHandler_HealthzIsNotLimited(t *testing.T) {
	srv := newTestServer(t, 1, false)

	for i := 0; i < 5; i++ {
		resp := get(t, srv.URL+"/healthz")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestOpenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.DiscardHandler)

	tests := []struct {
		name string
		cfg  config.StoreConfig
	}{
		{"memory", config.StoreConfig{Type: "memory"}},
		{"sqlite", config.StoreConfig{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "counters.db")}},
		{"redis", config.StoreConfig{Type: "redis", RedisAddr: mr.Addr()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s, err := openStore(ctx, tt.cfg, logger)
			require.NoError(t, err)
			defer s.Close()

			cur, prev, err := s.IncrementAndPeek(ctx, "a:1", "a:0", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, int64(1), cur)
			assert.Equal(t, int64(0), prev)
		})
	}
}

func TestOpenStore_Errors(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	_, err := openStore(context.Background(), config.StoreConfig{Type: "etcd"}, logger)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = openStore(context.Background(), config.StoreConfig{Type: "redis", RedisAddr: addr}, logger)
	assert.Error(t, err)
}
