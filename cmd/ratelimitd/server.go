package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/ryhazerus/ratelimit"
	"github.com/ryhazerus/ratelimit/internal/config"
	"github.com/ryhazerus/ratelimit/store"
	"github.com/ryhazerus/ratelimit/store/redis"
)

const pruneInterval = time.Minute

// pruner is a store that can delete its expired counters on demand.
type pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// openStore builds the configured counter backend. The memory and SQLite
// backends get a background pruner that stops with ctx.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Type {
	case "memory":
		s := store.NewMemoryStore()
		go prune(ctx, s, logger)
		return s, nil
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		go prune(ctx, s, logger)
		return s, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		return redis.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %q", cfg.Type)
	}
}

func prune(ctx context.Context, s pruner, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx)
			if err != nil {
				logger.Warn("Failed to prune expired counters", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("Pruned expired counters", "count", n)
			}
		}
	}
}

type remainingResponse struct {
	Identifier string `json:"identifier"`
	Limit      int64  `json:"limit"`
	Remaining  int64  `json:"remaining"`
	Reset      int64  `json:"reset"`
}

// newHandler routes requests:
//
//	GET /healthz    liveness, not rate limited
//	GET /remaining  quota left for the caller, not counted
//	/               everything else is counted against the caller
//
// Clients are keyed by ratelimit.ClientIP unless trustProxy is set, in which
// case ratelimit.ForwardedClientIP is used.
func newHandler(limiter *ratelimit.Limiter, window *ratelimit.SlidingWindow, policy ratelimit.FailurePolicy, trustProxy bool) http.Handler {
	key := ratelimit.ClientIP
	if trustProxy {
		key = ratelimit.ForwardedClientIP
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /remaining", func(w http.ResponseWriter, r *http.Request) {
		id := key(r)
		remaining, err := limiter.Remaining(r.Context(), id)
		if err != nil {
			slog.ErrorContext(r.Context(), "Failed to read remaining quota", "identifier", id, "error", err)
			http.Error(w, "rate limit store unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(remainingResponse{
			Identifier: id,
			Limit:      window.MaxRequests(),
			Remaining:  remaining,
			Reset:      limiter.ResetAt(id).Unix(),
		})
	})

	limited := limiter.Middleware(ratelimit.WithKeyFunc(key), ratelimit.WithFailurePolicy(policy))
	mux.Handle("/", limited(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	})))

	return mux
}
