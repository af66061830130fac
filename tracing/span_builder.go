package tracing

import "errors"

// ErrSpanEnded is reported by SpanBuilder.Err when a builder is used after
// End has sealed it.
var ErrSpanEnded = errors.New("tracing: span builder used after End")

// SpanBuilder accumulates the mutable state of one in-flight span. It is
// single-owner and single-thread: nanosecond timestamps are only meaningful
// when open/close calls reflect real call-stack ordering on one goroutine,
// so no synchronization is provided.
//
// End seals the builder. Any mutation after End is recorded as an error
// retrievable via Err, never a silent no-op.
type SpanBuilder struct {
	owner  *TraceBuilder
	span   Span
	sealed bool
	err    error
}

// SpanID returns the generated identifier of the span under construction,
// so child spans can reference it as their parent.
func (b *SpanBuilder) SpanID() string {
	return b.span.SpanID
}

// WithParent links this span under the given parent span id. Without it the
// span is a root.
func (b *SpanBuilder) WithParent(spanID string) *SpanBuilder {
	if b.checkSealed() {
		return b
	}
	b.span.ParentID = &spanID
	return b
}

// WithInput merges a key/value pair into the span's inputs.
func (b *SpanBuilder) WithInput(key string, value any) *SpanBuilder {
	if b.checkSealed() {
		return b
	}
	if b.span.Inputs == nil {
		b.span.Inputs = make(map[string]any)
	}
	b.span.Inputs[key] = value
	return b
}

// WithOutput merges a key/value pair into the span's outputs.
func (b *SpanBuilder) WithOutput(key string, value any) *SpanBuilder {
	if b.checkSealed() {
		return b
	}
	if b.span.Outputs == nil {
		b.span.Outputs = make(map[string]any)
	}
	b.span.Outputs[key] = value
	return b
}

// WithAttribute merges a key/value pair into the span's attributes.
func (b *SpanBuilder) WithAttribute(key string, value any) *SpanBuilder {
	if b.checkSealed() {
		return b
	}
	b.span.Attributes[key] = value
	return b
}

// WithEvent appends an event timestamped now.
func (b *SpanBuilder) WithEvent(name string, attributes map[string]any) *SpanBuilder {
	if b.checkSealed() {
		return b
	}
	b.span.Events = append(b.span.Events, NewSpanEvent(name, b.owner.nowNs(), attributes))
	return b
}

// WithError marks the span failed and appends an exception event capturing
// the error's type, message, and stack trace. It does not end the span.
func (b *SpanBuilder) WithError(err error) *SpanBuilder {
	if b.checkSealed() {
		return b
	}
	b.span.Status = StatusError
	b.span.Events = append(b.span.Events, NewExceptionEvent(err, b.owner.nowNs()))
	return b
}

// End seals the span and appends it to the owning trace. An explicit status
// argument wins; otherwise a still-UNSET status is promoted to OK, since a
// span that accumulated no error is assumed successful. Returns the owning
// TraceBuilder for continued chaining.
func (b *SpanBuilder) End(status ...SpanStatus) *TraceBuilder {
	if b.checkSealed() {
		return b.owner
	}
	if b.owner.built {
		b.sealed = true
		b.err = ErrTraceBuilt
		return b.owner
	}
	b.sealed = true

	end := b.owner.nowNs()
	b.span.EndTimeNs = &end
	if len(status) > 0 {
		b.span.Status = status[0]
	} else if b.span.Status == StatusUnset {
		b.span.Status = StatusOK
	}

	b.owner.appendSpan(b.span)
	return b.owner
}

// Err returns the first misuse recorded on this builder, or nil.
func (b *SpanBuilder) Err() error {
	return b.err
}

func (b *SpanBuilder) checkSealed() bool {
	if b.sealed {
		if b.err == nil {
			b.err = ErrSpanEnded
		}
		return true
	}
	return false
}
