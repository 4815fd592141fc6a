package ratelimit

import (
	"math"
	"testing"
	"time"
)

func TestPreviousWeight(t *testing.T) {
	size := 10 * time.Second
	start := time.Unix(1688910780, 0)
	index := bucketIndex(start, size)

	tests := []struct {
		name string
		now  time.Time
		want float64
	}{
		{"bucket start", start, 1},
		{"quarter", start.Add(2500 * time.Millisecond), 0.75},
		{"half", start.Add(5 * time.Second), 0.5},
		{"last nanosecond", start.Add(size - 1), 1e-10},
		// Out-of-bucket instants are clamped.
		{"before bucket", start.Add(-time.Second), 1},
		{"after bucket", start.Add(2 * size), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := previousWeight(tt.now, index, size)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("previousWeight = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		current, previous int64
		weight            float64
		want              float64
		counted           int64
	}{
		{1, 0, 1, 1, 1},
		{3, 4, 1, 7, 7},
		{3, 4, 0.5, 5, 5},
		{1, 5, 0.3, 2.5, 2},
		{2, 9, 0, 2, 2},
	}

	for _, tt := range tests {
		got := estimate(tt.current, tt.previous, tt.weight)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("estimate(%d, %d, %v) = %v, want %v", tt.current, tt.previous, tt.weight, got, tt.want)
		}
		if c := counted(got); c != tt.counted {
			t.Errorf("counted(%v) = %d, want %d", got, c, tt.counted)
		}
	}
}
