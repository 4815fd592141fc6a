package ratelimit

import (
	"math"
	"time"
)

// previousWeight is the share of the previous bucket that still overlaps a
// window ending at now: 1 at the start of the current bucket, falling
// linearly towards 0 at its end.
func previousWeight(now time.Time, index int64, size time.Duration) float64 {
	elapsed := now.Sub(bucketStart(index, size))
	w := 1 - float64(elapsed)/float64(size)
	return math.Max(0, math.Min(1, w))
}

// estimate approximates the number of requests in the trailing window,
// assuming the previous bucket's requests were spread evenly over it.
func estimate(current, previous int64, weight float64) float64 {
	return float64(current) + float64(previous)*weight
}

// counted floors an estimate to whole requests. The same value drives both
// the allow decision and the remaining count.
func counted(est float64) int64 {
	return int64(math.Floor(est))
}
