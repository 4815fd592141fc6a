package ratelimit

import "time"

// Response is the outcome of a Limit call.
type Response struct {
	// Allowed reports whether the request may proceed.
	Allowed bool
	// Limit is the configured maximum number of requests per window.
	Limit int64
	// Remaining is how many more requests the window estimate admits,
	// never negative.
	Remaining int64
	// Reset is the start of the next bucket, when the bucket that is
	// currently "previous" stops contributing to the estimate.
	Reset time.Time
}
