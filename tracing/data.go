package tracing

// TraceData is the ordered sequence of a trace's spans. Well-formed traces
// have exactly one root span, and every parent id resolves to another span
// in the same trace; TraceBuilder enforces this at Build time unless the
// caller opts out.
type TraceData struct {
	Spans []Span `json:"spans"`
}

// RootSpan returns the first span with no parent, or nil when none exists.
func (d TraceData) RootSpan() *Span {
	for i := range d.Spans {
		if d.Spans[i].IsRoot() {
			return &d.Spans[i]
		}
	}
	return nil
}

// SpanByID returns the span with the given id, or nil when not present.
func (d TraceData) SpanByID(spanID string) *Span {
	for i := range d.Spans {
		if d.Spans[i].SpanID == spanID {
			return &d.Spans[i]
		}
	}
	return nil
}
