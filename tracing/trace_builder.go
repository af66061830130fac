package tracing

import (
	"errors"
	"fmt"
	"time"
)

// ErrTraceBuilt is returned by Build when the builder has already produced
// its trace.
var ErrTraceBuilt = errors.New("tracing: trace builder already built")

// TagTraceName is the well-known tag carrying the human-readable trace name.
const TagTraceName = "mlflow.traceName"

// TraceBuilder accumulates the mutable state of one in-flight trace and
// owns the spans closed into it. Like SpanBuilder it is single-owner and
// single-thread.
//
// Build seals the builder. Any mutation after Build is recorded as an error
// retrievable via Err, never a silent write into the already-built trace.
type TraceBuilder struct {
	traceID       string
	location      TraceLocation
	startNs       int64
	tags          map[string]string
	metadata      map[string]string
	clientReqID   string
	reqPreview    string
	respPreview   string
	spans         []Span
	validateLinks bool
	built         bool
	err           error
	now           func() time.Time
}

// TraceOption configures a TraceBuilder at construction.
type TraceOption func(*TraceBuilder)

// WithExperiment targets the trace at an experiment.
func WithExperiment(experimentID string) TraceOption {
	return func(b *TraceBuilder) { b.location = ExperimentLocation{ExperimentID: experimentID} }
}

// WithLocation targets the trace at an explicit storage location.
func WithLocation(loc TraceLocation) TraceOption {
	return func(b *TraceBuilder) { b.location = loc }
}

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(now func() time.Time) TraceOption {
	return func(b *TraceBuilder) { b.now = now }
}

// WithoutLinkValidation disables the Build-time check that the trace has
// exactly one root span and that every parent id resolves. The permissive
// mode exists for callers that assemble partial traces on purpose.
func WithoutLinkValidation() TraceOption {
	return func(b *TraceBuilder) { b.validateLinks = false }
}

// NewTraceBuilder creates a builder with a fresh trace id. The name is
// recorded under the TagTraceName tag. The builder's creation time is used
// only for execution-duration computation; TraceInfo.RequestTime is set at
// Build time.
func NewTraceBuilder(name string, opts ...TraceOption) *TraceBuilder {
	b := &TraceBuilder{
		traceID:       NewTraceID(),
		tags:          map[string]string{TagTraceName: name},
		metadata:      make(map[string]string),
		validateLinks: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.startNs = b.nowNs()
	return b
}

// TraceID returns the generated trace identifier.
func (b *TraceBuilder) TraceID() string {
	return b.traceID
}

// WithTag merges a trace-level tag.
func (b *TraceBuilder) WithTag(key, value string) *TraceBuilder {
	if b.checkBuilt() {
		return b
	}
	b.tags[key] = value
	return b
}

// WithMetadata merges a trace-metadata entry.
func (b *TraceBuilder) WithMetadata(key, value string) *TraceBuilder {
	if b.checkBuilt() {
		return b
	}
	b.metadata[key] = value
	return b
}

// WithClientRequestID sets the caller-supplied correlation id.
func (b *TraceBuilder) WithClientRequestID(id string) *TraceBuilder {
	if b.checkBuilt() {
		return b
	}
	b.clientReqID = id
	return b
}

// WithRequestPreview sets the truncated request text shown in trace lists.
func (b *TraceBuilder) WithRequestPreview(preview string) *TraceBuilder {
	if b.checkBuilt() {
		return b
	}
	b.reqPreview = preview
	return b
}

// WithResponsePreview sets the truncated response text shown in trace lists.
func (b *TraceBuilder) WithResponsePreview(preview string) *TraceBuilder {
	if b.checkBuilt() {
		return b
	}
	b.respPreview = preview
	return b
}

// SpanOption configures a span at StartSpan time.
type SpanOption func(*Span)

// WithSpanType sets the span's type.
func WithSpanType(t SpanType) SpanOption {
	return func(s *Span) { s.SpanType = t }
}

// WithInputs merges initial inputs into the span.
func WithInputs(inputs map[string]any) SpanOption {
	return func(s *Span) {
		if s.Inputs == nil {
			s.Inputs = make(map[string]any, len(inputs))
		}
		for k, v := range inputs {
			s.Inputs[k] = v
		}
	}
}

// WithAttributes merges initial attributes into the span.
func WithAttributes(attributes map[string]any) SpanOption {
	return func(s *Span) {
		for k, v := range attributes {
			s.Attributes[k] = v
		}
	}
}

// StartSpan opens a new span bound to this builder. The span becomes
// visible in the trace only once its builder's End is called, so a
// partially initialized span can never leak into the aggregate.
func (b *TraceBuilder) StartSpan(name string, opts ...SpanOption) *SpanBuilder {
	if b.checkBuilt() {
		return &SpanBuilder{owner: b, sealed: true, err: ErrTraceBuilt}
	}
	sb := &SpanBuilder{
		owner: b,
		span: Span{
			TraceID:     b.traceID,
			SpanID:      NewSpanID(),
			Name:        name,
			StartTimeNs: b.nowNs(),
			Status:      StatusUnset,
			SpanType:    SpanTypeUnknown,
			Attributes:  make(map[string]any),
			Events:      []SpanEvent{},
		},
	}
	for _, opt := range opts {
		opt(&sb.span)
	}
	return sb
}

// Build seals the builder and produces the immutable trace. The trace state
// is ERROR when any closed span failed, OK otherwise; IN_PROGRESS is never
// produced here because the builder only supports already-completed traces.
// RequestTime is the wall-clock time of this call.
func (b *TraceBuilder) Build() (Trace, error) {
	if b.built {
		return Trace{}, ErrTraceBuilt
	}
	if b.validateLinks {
		if err := b.checkSpanLinks(); err != nil {
			return Trace{}, err
		}
	}
	b.built = true

	state := StateOK
	for _, s := range b.spans {
		if s.Status == StatusError {
			state = StateError
			break
		}
	}

	duration := NsToMs(b.nowNs() - b.startNs)
	info := TraceInfo{
		TraceID:           b.traceID,
		TraceLocation:     b.location,
		RequestTime:       b.now().UnixMilli(),
		State:             state,
		RequestPreview:    b.reqPreview,
		ResponsePreview:   b.respPreview,
		ClientRequestID:   b.clientReqID,
		ExecutionDuration: &duration,
		TraceMetadata:     b.metadata,
		Tags:              b.tags,
	}
	return Trace{Info: info, Data: TraceData{Spans: b.spans}}, nil
}

func (b *TraceBuilder) checkSpanLinks() error {
	return ValidateSpanLinks(b.spans)
}

// ValidateSpanLinks verifies that a non-empty span set has exactly one root
// span and that every parent id references a span in the same set.
func ValidateSpanLinks(spans []Span) error {
	if len(spans) == 0 {
		return nil
	}
	ids := make(map[string]struct{}, len(spans))
	for _, s := range spans {
		ids[s.SpanID] = struct{}{}
	}
	roots := 0
	for _, s := range spans {
		if s.ParentID == nil {
			roots++
			continue
		}
		if _, ok := ids[*s.ParentID]; !ok {
			return fmt.Errorf("tracing: span %q has unknown parent %q", s.SpanID, *s.ParentID)
		}
	}
	if roots != 1 {
		return fmt.Errorf("tracing: trace must have exactly one root span, got %d", roots)
	}
	return nil
}

func (b *TraceBuilder) appendSpan(s Span) {
	b.spans = append(b.spans, s)
}

// Err returns the first misuse recorded on this builder, or nil.
func (b *TraceBuilder) Err() error {
	return b.err
}

func (b *TraceBuilder) checkBuilt() bool {
	if b.built {
		if b.err == nil {
			b.err = ErrTraceBuilt
		}
		return true
	}
	return false
}

func (b *TraceBuilder) nowNs() int64 {
	return b.now().UnixNano()
}
