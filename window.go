package ratelimit

import (
	"fmt"
	"math"
	"time"
)

// Window sizes must fit the store's millisecond TTL resolution, and two
// windows (the counter TTL) must fit in a time.Duration.
const (
	minWindowSize = time.Millisecond
	maxWindowSize = time.Duration(math.MaxInt64 / 2)
)

// Unit is the time unit a window length is expressed in.
type Unit string

const (
	// Seconds measures the window in seconds. The empty Unit also means seconds.
	Seconds Unit = "s"
	// Minutes measures the window in minutes.
	Minutes Unit = "m"
	// Hours measures the window in hours.
	Hours Unit = "h"
	// Days measures the window in 24-hour days.
	Days Unit = "d"
)

// ParseUnit parses one of "s", "m", "h" or "d". The empty string parses as
// Seconds.
func ParseUnit(s string) (Unit, error) {
	u := Unit(s)
	if _, err := u.Duration(); err != nil {
		return "", err
	}
	if u == "" {
		return Seconds, nil
	}
	return u, nil
}

// Duration returns the length of one unit.
func (u Unit) Duration() (time.Duration, error) {
	switch u {
	case Seconds, "":
		return time.Second, nil
	case Minutes:
		return time.Minute, nil
	case Hours:
		return time.Hour, nil
	case Days:
		return 24 * time.Hour, nil
	default:
		return 0, &ConfigurationError{Field: "unit", Value: string(u), Reason: "must be one of s, m, h, d"}
	}
}

func (u Unit) String() string {
	if u == "" {
		return string(Seconds)
	}
	return string(u)
}

// bucketIndex returns floor(t / size) on the Unix nanosecond timeline.
func bucketIndex(t time.Time, size time.Duration) int64 {
	return floorDiv(t.UnixNano(), int64(size))
}

// bucketStart returns the instant bucket index begins.
func bucketStart(index int64, size time.Duration) time.Time {
	return time.Unix(0, index*int64(size))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// windowSize converts a window length in the given unit to a duration.
func windowSize(window float64, unit Unit) (time.Duration, error) {
	per, err := unit.Duration()
	if err != nil {
		return 0, err
	}
	if !(window > 0) {
		return 0, &ConfigurationError{Field: "window", Value: window, Reason: "must be positive"}
	}
	ns := window * float64(per)
	if ns < float64(minWindowSize) {
		return 0, &ConfigurationError{Field: "window", Value: window, Reason: fmt.Sprintf("shorter than %s in unit %s", minWindowSize, unit)}
	}
	if ns > float64(maxWindowSize) {
		return 0, &ConfigurationError{Field: "window", Value: window, Reason: fmt.Sprintf("longer than %s in unit %s", maxWindowSize, unit)}
	}
	return time.Duration(ns), nil
}
