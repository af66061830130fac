package tracing

import "encoding/json"

// SpanStatus represents the outcome of a single span.
type SpanStatus string

const (
	StatusUnset SpanStatus = "UNSET"
	StatusOK    SpanStatus = "OK"
	StatusError SpanStatus = "ERROR"
)

// Span is the immutable record of one timed operation within a trace.
// Mutable only through its SpanBuilder; once appended to a trace's span
// list it must not be modified.
type Span struct {
	TraceID     string         `json:"trace_id"`
	SpanID      string         `json:"span_id"`
	Name        string         `json:"name"`
	StartTimeNs int64          `json:"start_time_ns"`
	EndTimeNs   *int64         `json:"end_time_ns,omitempty"`
	ParentID    *string        `json:"parent_id,omitempty"`
	Status      SpanStatus     `json:"status"`
	SpanType    SpanType       `json:"span_type"`
	Inputs      map[string]any `json:"inputs,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Attributes  map[string]any `json:"attributes"`
	Events      []SpanEvent    `json:"events"`
}

// IsRoot reports whether the span has no parent.
func (s Span) IsRoot() bool {
	return s.ParentID == nil
}

// DurationNs returns the span duration in nanoseconds, or nil while the
// span is unterminated.
func (s Span) DurationNs() *int64 {
	if s.EndTimeNs == nil {
		return nil
	}
	d := *s.EndTimeNs - s.StartTimeNs
	return &d
}

// DurationMs returns the span duration in milliseconds, or nil while the
// span is unterminated.
func (s Span) DurationMs() *int64 {
	ns := s.DurationNs()
	if ns == nil {
		return nil
	}
	ms := NsToMs(*ns)
	return &ms
}

// UnmarshalJSON decodes a span leniently: missing fields take their zero
// values, except that an absent status defaults to UNSET. Use DecodeSpan
// with DecodeStrict for fail-fast decoding.
func (s *Span) UnmarshalJSON(data []byte) error {
	type alias Span
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = StatusUnset
	}
	*s = Span(a)
	return nil
}
