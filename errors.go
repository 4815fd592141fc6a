package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ryhazerus/ratelimit/store"
)

// ErrConfiguration is matched by every error returned for an invalid limiter
// configuration. It is only ever returned by constructors.
var ErrConfiguration = errors.New("ratelimit: invalid configuration")

// ErrStoreUnavailable is matched by every error Limit and Remaining return
// when the counter store could not be reached or answered badly. The limiter
// never retries and never turns such a failure into an allow or deny; the
// caller chooses whether to fail open or closed.
var ErrStoreUnavailable = store.ErrUnavailable

// ErrLimitExceeded is returned by the HTTP transport when an outgoing request
// is denied.
var ErrLimitExceeded = errors.New("ratelimit: rate limit exceeded")

// ConfigurationError reports which configuration field was rejected.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ratelimit: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// LimitExceededError carries the denied response for an identifier and
// supports waiting for the current bucket to end.
type LimitExceededError struct {
	Identifier string
	Response   Response
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("ratelimit: rate limit exceeded for %s (limit %d, reset %s)",
		e.Identifier, e.Response.Limit, e.Response.Reset.UTC().Format(time.RFC3339))
}

func (e *LimitExceededError) Unwrap() error {
	return ErrLimitExceeded
}

// Wait blocks until the response's reset time or until ctx is done.
func (e *LimitExceededError) Wait(ctx context.Context) error {
	return sleepUntil(ctx, SystemClock{}, e.Response.Reset)
}

// storeError makes sure err matches ErrStoreUnavailable, wrapping foreign
// errors from custom Store implementations.
func storeError(op string, err error) error {
	if errors.Is(err, store.ErrUnavailable) {
		return err
	}
	return store.Unavailable(op, err)
}

func sleepUntil(ctx context.Context, clock Clock, t time.Time) error {
	delay := t.Sub(clock.Now())
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
