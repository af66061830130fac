package otelexport_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ashita-ai/tsuiseki/otelexport"
	"github.com/ashita-ai/tsuiseki/tracing"
)

func newRecordingProvider() (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return tp, recorder
}

func TestExportReplaysSpanTree(t *testing.T) {
	tb := tracing.NewTraceBuilder("pipeline", tracing.WithExperiment("exp-1"))
	root := tb.StartSpan("root", tracing.WithSpanType(tracing.SpanTypeChain))
	tb.StartSpan("llm", tracing.WithSpanType(tracing.SpanTypeLLM)).
		WithParent(root.SpanID()).
		WithInput("prompt", "hi").
		WithEvent("token", map[string]any{"count": 3}).
		End()
	root.End()

	trace, err := tb.Build()
	require.NoError(t, err)

	tp, recorder := newRecordingProvider()
	exporter := otelexport.New(tp)
	require.NoError(t, exporter.Export(context.Background(), trace))

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	// Children end before parents under depth-first replay.
	child, parent := ended[0], ended[1]
	assert.Equal(t, "llm", child.Name())
	assert.Equal(t, "root", parent.Name())
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
	assert.Equal(t, parent.SpanContext().TraceID(), child.SpanContext().TraceID())

	// Recorded timestamps survive the replay.
	rootSpan := trace.Data.RootSpan()
	assert.Equal(t, rootSpan.StartTimeNs, parent.StartTime().UnixNano())
	assert.Equal(t, *rootSpan.EndTimeNs, parent.EndTime().UnixNano())

	// Original identifiers ride along as attributes.
	attrs := make(map[string]string)
	for _, kv := range child.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, trace.Info.TraceID, attrs[otelexport.AttrTraceID])
	assert.Equal(t, "LLM", attrs[otelexport.AttrSpanType])
	assert.JSONEq(t, `{"prompt":"hi"}`, attrs[otelexport.AttrInputs])

	require.Len(t, child.Events(), 1)
	assert.Equal(t, "token", child.Events()[0].Name)
}

func TestExportRejectsOpenSpan(t *testing.T) {
	open := tracing.Span{SpanID: "0123456789abcdef", Name: "open"}
	trace := tracing.Trace{Data: tracing.TraceData{Spans: []tracing.Span{open}}}

	tp, _ := newRecordingProvider()
	err := otelexport.New(tp).Export(context.Background(), trace)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no end time")
}

func TestExportOrphanReplaysAsRoot(t *testing.T) {
	end := int64(2_000)
	parentID := "aaaaaaaaaaaaaaaa"
	orphan := tracing.Span{
		SpanID: "0123456789abcdef", Name: "orphan",
		StartTimeNs: 1_000, EndTimeNs: &end, ParentID: &parentID,
		Status: tracing.StatusOK,
	}
	trace := tracing.Trace{Data: tracing.TraceData{Spans: []tracing.Span{orphan}}}

	tp, recorder := newRecordingProvider()
	require.NoError(t, otelexport.New(tp).Export(context.Background(), trace))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.False(t, ended[0].Parent().IsValid())
}
