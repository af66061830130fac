package tracing

import "time"

// All unit conversions between span (nanosecond) and trace (millisecond)
// timestamps live here. Nothing else in the package converts units directly.

const nsPerMs = int64(time.Millisecond)

// NowNs returns the current wall-clock time in nanoseconds since epoch.
func NowNs() int64 {
	return time.Now().UnixNano()
}

// NowMs returns the current wall-clock time in milliseconds since epoch.
func NowMs() int64 {
	return time.Now().UnixMilli()
}

// MsToNs converts a millisecond timestamp to nanoseconds.
func MsToNs(ms int64) int64 {
	return ms * nsPerMs
}

// NsToMs converts a nanosecond timestamp to milliseconds, truncating
// sub-millisecond precision.
func NsToMs(ns int64) int64 {
	return ns / nsPerMs
}

// NsToTime converts a nanosecond timestamp to a time.Time, preserving full
// nanosecond precision.
func NsToTime(ns int64) time.Time {
	return time.Unix(0, ns)
}

// TimeToNs converts a time.Time to nanoseconds since epoch.
func TimeToNs(t time.Time) int64 {
	return t.UnixNano()
}
