package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/ryhazerus/ratelimit/store"
)

// Algorithm is a rate limiting strategy. The set of algorithms is closed:
// its methods are unexported, so every implementation lives in this package.
// SlidingWindow is currently the only one.
type Algorithm interface {
	limit(ctx context.Context, s store.Store, keys keyScheme, identifier string, now time.Time) (Response, error)
	remaining(ctx context.Context, s store.Store, keys keyScheme, identifier string, now time.Time) (int64, error)
	resetAt(now time.Time) time.Time
	fingerprint() string
}

// Compile-time interface check.
var _ Algorithm = (*SlidingWindow)(nil)

// SlidingWindow approximates a rolling window of the given size with two
// fixed buckets: the full count of the current bucket plus the previous
// bucket's count, weighted by how much of it still overlaps the rolling
// window.
type SlidingWindow struct {
	max  int64
	size time.Duration
}

// NewSlidingWindow allows maxRequests per window, where window is measured in
// unit. Invalid values return a *ConfigurationError.
func NewSlidingWindow(maxRequests int64, window float64, unit Unit) (*SlidingWindow, error) {
	if maxRequests <= 0 {
		return nil, &ConfigurationError{Field: "max_requests", Value: maxRequests, Reason: "must be positive"}
	}
	size, err := windowSize(window, unit)
	if err != nil {
		return nil, err
	}
	return &SlidingWindow{max: maxRequests, size: size}, nil
}

// MaxRequests returns the number of requests allowed per window.
func (w *SlidingWindow) MaxRequests() int64 { return w.max }

// Size returns the window length.
func (w *SlidingWindow) Size() time.Duration { return w.size }

func (w *SlidingWindow) String() string {
	return fmt.Sprintf("SlidingWindow(%d per %s)", w.max, w.size)
}

func (w *SlidingWindow) limit(ctx context.Context, s store.Store, keys keyScheme, identifier string, now time.Time) (Response, error) {
	index := bucketIndex(now, w.size)
	// Buckets live for two windows so the previous one stays readable for
	// the whole of the current one.
	current, previous, err := s.IncrementAndPeek(ctx,
		keys.keyFor(identifier, index),
		keys.keyFor(identifier, index-1),
		2*w.size,
	)
	if err != nil {
		return Response{}, err
	}

	n := counted(estimate(current, previous, previousWeight(now, index, w.size)))
	return Response{
		Allowed:   n <= w.max,
		Limit:     w.max,
		Remaining: max(0, w.max-n),
		Reset:     bucketStart(index+1, w.size),
	}, nil
}

func (w *SlidingWindow) remaining(ctx context.Context, s store.Store, keys keyScheme, identifier string, now time.Time) (int64, error) {
	index := bucketIndex(now, w.size)
	current, previous, err := s.Peek(ctx,
		keys.keyFor(identifier, index),
		keys.keyFor(identifier, index-1),
	)
	if err != nil {
		return 0, err
	}

	n := counted(estimate(current, previous, previousWeight(now, index, w.size)))
	return max(0, w.max-n), nil
}

func (w *SlidingWindow) resetAt(now time.Time) time.Time {
	return bucketStart(bucketIndex(now, w.size)+1, w.size)
}

func (w *SlidingWindow) fingerprint() string {
	return "sw" + w.size.String()
}
