package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable is matched by every error a Store returns when the counter
// backend could not complete an operation: transport failures, timeouts,
// cancelled contexts and protocol errors alike.
var ErrUnavailable = errors.New("ratelimit/store: store unavailable")

// UnavailableError describes a failed store operation. It matches
// ErrUnavailable with errors.Is and also unwraps to the underlying cause, so
// callers can still test for context.Canceled or a driver error.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("ratelimit/store: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// Unavailable wraps err as an *UnavailableError for the named operation.
// A nil err yields nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UnavailableError{Op: op, Err: err}
}

// Store is the shared counter backend. Implementations must execute each
// method as one indivisible unit with respect to every other caller of the
// same backend, including callers in other processes where the backend is
// shared.
type Store interface {
	// IncrementAndPeek adds one to the counter at currentKey, sets its expiry
	// to ttl from now, and reads the counter at previousKey without touching
	// it. Missing keys count as zero.
	IncrementAndPeek(ctx context.Context, currentKey, previousKey string, ttl time.Duration) (current, previous int64, err error)

	// Peek reads both counters without modifying them or their expiry.
	Peek(ctx context.Context, currentKey, previousKey string) (current, previous int64, err error)

	// Close releases any resources held by the store.
	Close() error
}
