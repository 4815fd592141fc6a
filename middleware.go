package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// FailurePolicy decides how Middleware treats requests when the store fails.
type FailurePolicy int

const (
	// FailClosed rejects the request with 503 Service Unavailable.
	FailClosed FailurePolicy = iota
	// FailOpen lets the request through without rate limit headers.
	FailOpen
)

func (p FailurePolicy) String() string {
	switch p {
	case FailClosed:
		return "FailClosed"
	case FailOpen:
		return "FailOpen"
	default:
		return "Unknown"
	}
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	key    func(*http.Request) string
	policy FailurePolicy
}

// WithKeyFunc sets how a request is mapped to an identifier. The default is
// ClientIP, the peer address of the connection.
func WithKeyFunc(fn func(*http.Request) string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.key = fn
	}
}

// WithTrustProxyHeaders identifies requests by ForwardedClientIP. Only use it
// behind a reverse proxy that overwrites X-Forwarded-For and X-Real-IP;
// otherwise clients can pick their own identifier.
func WithTrustProxyHeaders() MiddlewareOption {
	return func(c *middlewareConfig) {
		c.key = ForwardedClientIP
	}
}

// WithFailurePolicy sets the behavior on store failure (default FailClosed).
func WithFailurePolicy(p FailurePolicy) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.policy = p
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Middleware returns HTTP middleware that counts every request and answers
// 429 Too Many Requests once the identifier is over its limit. Allowed and
// denied responses carry X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset (Unix seconds); denials also carry Retry-After.
func (l *Limiter) Middleware(opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{key: ClientIP, policy: FailClosed}
	for _, o := range opts {
		o(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := cfg.key(r)

			resp, err := l.Limit(r.Context(), id)
			if err != nil {
				if cfg.policy == FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, l.logger, http.StatusServiceUnavailable, "Rate limiter unavailable", "RATE_LIMIT_UNAVAILABLE")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(resp.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(resp.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resp.Reset.Unix(), 10))

			if !resp.Allowed {
				retryAfter := int64(resp.Reset.Sub(l.clock.Now()).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				writeError(w, l.logger, http.StatusTooManyRequests, "Rate limit exceeded", "RATE_LIMIT_EXCEEDED")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg, Code: code}); err != nil {
		logger.Debug("write rate limit error response", "error", err)
	}
}

// ClientIP returns the host part of the request's RemoteAddr. Proxy
// headers are ignored.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ForwardedClientIP returns the first X-Forwarded-For address, then
// X-Real-IP, and falls back to ClientIP.
func ForwardedClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return ClientIP(r)
}
