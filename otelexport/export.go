// Package otelexport replays assembled traces through an OpenTelemetry
// tracer, so a trace built for the trace store can also be shipped to any
// OTLP-compatible collector.
//
// The collector assigns its own trace and span identifiers; the original
// identifiers are preserved as attributes so the two stores can be joined.
package otelexport

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/tsuiseki/tracing"
)

// Attribute keys carrying original trace-store identifiers and span
// metadata on replayed OTEL spans.
const (
	AttrTraceID  = "tsuiseki.trace_id"
	AttrSpanID   = "tsuiseki.span_id"
	AttrSpanType = "tsuiseki.span_type"
	AttrInputs   = "tsuiseki.inputs"
	AttrOutputs  = "tsuiseki.outputs"
)

// Exporter replays traces through a tracer provider.
type Exporter struct {
	tracer trace.Tracer
}

// New creates an Exporter on the given provider, typically the global
// provider configured by internal/telemetry.
func New(tp trace.TracerProvider) *Exporter {
	return &Exporter{tracer: tp.Tracer("github.com/ashita-ai/tsuiseki/otelexport")}
}

// Export replays every span of t with its recorded timestamps, statuses,
// events, and parent links. Spans with unresolvable parents are replayed as
// roots rather than dropped.
func (e *Exporter) Export(ctx context.Context, t tracing.Trace) error {
	children := make(map[string][]tracing.Span)
	ids := make(map[string]struct{}, len(t.Data.Spans))
	for _, s := range t.Data.Spans {
		ids[s.SpanID] = struct{}{}
	}

	var roots []tracing.Span
	for _, s := range t.Data.Spans {
		if s.ParentID != nil {
			if _, ok := ids[*s.ParentID]; ok {
				children[*s.ParentID] = append(children[*s.ParentID], s)
				continue
			}
		}
		roots = append(roots, s)
	}

	for _, root := range roots {
		if err := e.replay(ctx, t.Info.TraceID, root, children); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) replay(ctx context.Context, traceID string, s tracing.Span, children map[string][]tracing.Span) error {
	if s.EndTimeNs == nil {
		return fmt.Errorf("otelexport: span %q has no end time", s.SpanID)
	}

	attrs, err := spanAttributes(traceID, s)
	if err != nil {
		return err
	}

	spanCtx, span := e.tracer.Start(ctx, s.Name,
		trace.WithTimestamp(tracing.NsToTime(s.StartTimeNs)),
		trace.WithAttributes(attrs...),
	)

	for _, ev := range s.Events {
		span.AddEvent(ev.Name,
			trace.WithTimestamp(tracing.NsToTime(ev.TimestampNs)),
			trace.WithAttributes(anyMapToAttributes(ev.Attributes)...),
		)
	}
	switch s.Status {
	case tracing.StatusOK:
		span.SetStatus(codes.Ok, "")
	case tracing.StatusError:
		span.SetStatus(codes.Error, "")
	}

	// Children must be started before the parent ends so the sdk records
	// the link; replay order follows the original call-stack nesting.
	for _, child := range children[s.SpanID] {
		if err := e.replay(spanCtx, traceID, child, children); err != nil {
			span.End(trace.WithTimestamp(tracing.NsToTime(*s.EndTimeNs)))
			return err
		}
	}

	span.End(trace.WithTimestamp(tracing.NsToTime(*s.EndTimeNs)))
	return nil
}

func spanAttributes(traceID string, s tracing.Span) ([]attribute.KeyValue, error) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrTraceID, traceID),
		attribute.String(AttrSpanID, s.SpanID),
		attribute.String(AttrSpanType, string(s.SpanType)),
	}
	for key, payload := range map[string]map[string]any{AttrInputs: s.Inputs, AttrOutputs: s.Outputs} {
		if len(payload) == 0 {
			continue
		}
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("otelexport: encode %s of span %q: %w", key, s.SpanID, err)
		}
		attrs = append(attrs, attribute.String(key, string(encoded)))
	}
	attrs = append(attrs, anyMapToAttributes(s.Attributes)...)
	return attrs, nil
}

// anyMapToAttributes converts loosely-typed attribute maps to OTEL
// attributes, JSON-encoding anything without a native attribute type.
func anyMapToAttributes(m map[string]any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
				continue
			}
			attrs = append(attrs, attribute.String(k, string(encoded)))
		}
	}
	return attrs
}
