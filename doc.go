// Package ratelimit is a distributed rate limiter. It bounds how many
// actions an identifier (a user, an API key, an IP address) may perform in a
// rolling window, using a shared counter store as the single source of truth
// for every process that enforces the limit.
//
// # Key Concepts
//
//   - [SlidingWindow] approximates a rolling window with two fixed buckets.
//     The estimate is the current bucket's count plus the previous bucket's
//     count weighted by how much of it still overlaps the rolling window.
//   - [store.Store] is the counter backend. It offers exactly two atomic
//     operations: increment-and-peek, and a read-only peek. An in-memory
//     store is used by default; SQLite and Redis backends share counters
//     across restarts and processes.
//   - [Limiter] combines the two. It keeps no counts of its own, so any
//     number of limiters in any number of processes may share one store.
//
// # Quick Start
//
//	window, err := ratelimit.NewSlidingWindow(10, 1, ratelimit.Minutes)
//	if err != nil {
//		return err
//	}
//	limiter := ratelimit.New(window, ratelimit.WithStore(redisstore.NewRedisStore(client)))
//
//	resp, err := limiter.Limit(ctx, "user_123")
//	if err != nil {
//		// The store is unavailable: fail open or closed, your choice.
//	}
//	if !resp.Allowed {
//		// Reject; resp.Reset says when the current bucket ends.
//	}
//
// # Counting
//
// Every Limit call increments the current bucket, including calls that end
// up denied. Remaining and ResetAt never count a request; ResetAt does not
// contact the store at all.
//
// # Errors
//
// Constructors return errors matching [ErrConfiguration]. Limit and
// Remaining return errors matching [ErrStoreUnavailable] and never retry.
package ratelimit
