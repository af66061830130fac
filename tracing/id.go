// Package tracing assembles hierarchical execution traces in memory and
// serializes them to the trace-store wire format.
//
// A trace is built through a TraceBuilder, which hands out SpanBuilders for
// nested timed operations. Closing a span appends an immutable Span to the
// trace; Build produces the immutable Trace aggregate. All timestamps on
// spans are nanoseconds since epoch; trace-level timestamps are milliseconds.
package tracing

import (
	"crypto/rand"

	"go.opentelemetry.io/otel/trace"
)

// NewTraceID returns a fresh 128-bit trace identifier encoded as 32
// lowercase hex characters, OTEL-compatible by construction.
func NewTraceID() string {
	var id trace.TraceID
	// rand.Read never returns an error since Go 1.24.
	_, _ = rand.Read(id[:])
	return id.String()
}

// NewSpanID returns a fresh 64-bit span identifier encoded as 16 lowercase
// hex characters.
func NewSpanID() string {
	var id trace.SpanID
	_, _ = rand.Read(id[:])
	return id.String()
}

// IsValidTraceID reports whether s is exactly 32 lowercase hex characters.
// Advisory: callers decide whether to reject invalid identifiers.
func IsValidTraceID(s string) bool {
	return isHex(s, 32)
}

// IsValidSpanID reports whether s is exactly 16 lowercase hex characters.
func IsValidSpanID(s string) bool {
	return isHex(s, 16)
}

func isHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
