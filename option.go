package ratelimit

import (
	"log/slog"

	"github.com/ryhazerus/ratelimit/store"
)

// Option configures the Limiter.
type Option func(*Limiter)

// WithStore sets the backing store for rate limit counters.
// If not provided, an in-memory store is used by default.
func WithStore(s store.Store) Option {
	return func(l *Limiter) {
		l.store = s
	}
}

// WithPrefix sets the key prefix (default "ratelimit").
func WithPrefix(prefix string) Option {
	return func(l *Limiter) {
		l.prefix = prefix
	}
}

// WithClock sets the time source used for bucket selection.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// WithLogger sets the logger. Store failures are logged at Error and denials
// at Debug. Nothing is logged by default.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithOnDenied sets a callback that fires whenever Limit denies a request.
func WithOnDenied(fn func(identifier string, resp Response)) Option {
	return func(l *Limiter) {
		l.onDenied = fn
	}
}
