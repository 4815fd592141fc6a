package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/ryhazerus/ratelimit/store"
)

// Limiter answers rate limit questions for identifiers against a shared
// counter store. It holds no mutable state of its own and is safe for
// concurrent use; all cross-caller consistency comes from the store's atomic
// operations.
type Limiter struct {
	algorithm Algorithm
	store     store.Store
	clock     Clock
	prefix    string
	keys      keyScheme
	logger    *slog.Logger
	onDenied  func(string, Response)
}

// New creates a Limiter enforcing alg. If no store is provided, an in-memory
// store is used. New panics if alg is nil.
func New(alg Algorithm, opts ...Option) *Limiter {
	if alg == nil {
		panic("ratelimit: nil Algorithm")
	}
	l := &Limiter{
		algorithm: alg,
		prefix:    DefaultPrefix,
	}
	for _, o := range opts {
		o(l)
	}
	if l.store == nil {
		l.store = store.NewMemoryStore()
	}
	if l.clock == nil {
		l.clock = SystemClock{}
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	l.keys = newKeyScheme(l.prefix, alg.fingerprint())
	return l
}

// Limit counts one request for identifier and reports whether it is allowed.
// The request is counted even when it is denied. Store failures are returned
// as errors matching ErrStoreUnavailable; a failed call must not be retried
// blindly, since the increment may already have been applied.
func (l *Limiter) Limit(ctx context.Context, identifier string) (Response, error) {
	resp, err := l.algorithm.limit(ctx, l.store, l.keys, identifier, l.clock.Now())
	if err != nil {
		err = storeError("limit", err)
		l.logger.ErrorContext(ctx, "rate limit store failure",
			"op", "limit",
			"identifier", identifier,
			"error", err,
		)
		return Response{}, err
	}

	if !resp.Allowed {
		l.logger.DebugContext(ctx, "rate limit exceeded",
			"identifier", identifier,
			"limit", resp.Limit,
			"remaining", resp.Remaining,
			"reset", resp.Reset,
		)
		if l.onDenied != nil {
			l.onDenied(identifier, resp)
		}
	}
	return resp, nil
}

// Remaining reports how many requests identifier may still make, without
// counting a request.
func (l *Limiter) Remaining(ctx context.Context, identifier string) (int64, error) {
	n, err := l.algorithm.remaining(ctx, l.store, l.keys, identifier, l.clock.Now())
	if err != nil {
		err = storeError("remaining", err)
		l.logger.ErrorContext(ctx, "rate limit store failure",
			"op", "remaining",
			"identifier", identifier,
			"error", err,
		)
		return 0, err
	}
	return n, nil
}

// ResetAt returns when the current bucket ends. It is derived from the clock
// alone and never contacts the store.
func (l *Limiter) ResetAt(identifier string) time.Time {
	return l.algorithm.resetAt(l.clock.Now())
}

// BlockUntilReady calls Limit until a request for identifier is allowed,
// sleeping until each denied response's Reset in between. Every attempt is
// counted. If ctx ends first, the last denied response is returned together
// with ctx.Err(). Store failures end the loop immediately.
func (l *Limiter) BlockUntilReady(ctx context.Context, identifier string) (Response, error) {
	for {
		resp, err := l.Limit(ctx, identifier)
		if err != nil || resp.Allowed {
			return resp, err
		}
		if err := sleepUntil(ctx, l.clock, resp.Reset); err != nil {
			return resp, err
		}
	}
}

// Algorithm returns the algorithm the limiter enforces.
func (l *Limiter) Algorithm() Algorithm {
	return l.algorithm
}

// Close releases resources held by the limiter's store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
