package tracing

import (
	"fmt"
	"runtime/debug"
)

// SpanEvent is a point-in-time annotation on a span. Immutable once created;
// owned exclusively by the span it is attached to.
type SpanEvent struct {
	Name        string         `json:"name"`
	TimestampNs int64          `json:"timestamp_ns"`
	Attributes  map[string]any `json:"attributes"`
}

// NewSpanEvent creates an event with the given name and attributes at tsNs.
func NewSpanEvent(name string, tsNs int64, attributes map[string]any) SpanEvent {
	return SpanEvent{Name: name, TimestampNs: tsNs, Attributes: attributes}
}

// NewExceptionEvent synthesizes the "exception" event recorded when a span
// is marked failed. The stack trace is captured at the call site, since Go
// errors do not carry one.
func NewExceptionEvent(err error, tsNs int64) SpanEvent {
	return SpanEvent{
		Name:        "exception",
		TimestampNs: tsNs,
		Attributes: map[string]any{
			"exception.type":       fmt.Sprintf("%T", err),
			"exception.message":    err.Error(),
			"exception.stacktrace": string(debug.Stack()),
		},
	}
}
