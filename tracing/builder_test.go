package tracing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tsuiseki/tracing"
)

// tickClock returns a clock that advances one millisecond per call, so
// builder timestamps are deterministic and strictly increasing.
func tickClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
}

func TestBuildRAGPipelineTrace(t *testing.T) {
	tb := tracing.NewTraceBuilder("rag-pipeline", tracing.WithExperiment("exp-1")).
		WithTag("user_id", "u1")

	retrieval := tb.StartSpan("retrieval",
		tracing.WithSpanType(tracing.SpanTypeRetriever),
		tracing.WithInputs(map[string]any{"query": "x"}),
	)
	retrievalID := retrieval.SpanID()
	retrieval.WithOutput("documents", []string{"d1"}).End()

	rerank := tb.StartSpan("rerank").WithParent(retrievalID)
	rerank.WithError(errors.New("boom"))
	rerank.End()

	trace, err := tb.Build()
	require.NoError(t, err)

	require.Len(t, trace.Data.Spans, 2)
	assert.Equal(t, tracing.StateError, trace.Info.State)

	root := trace.Data.RootSpan()
	require.NotNil(t, root)
	assert.Equal(t, "retrieval", root.Name)
	assert.True(t, root.IsRoot())
	assert.Equal(t, tracing.SpanTypeRetriever, root.SpanType)
	assert.Equal(t, tracing.StatusOK, root.Status)
	assert.Equal(t, map[string]any{"query": "x"}, root.Inputs)

	child := trace.Data.SpanByID(rerank.SpanID())
	require.NotNil(t, child)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, retrievalID, *child.ParentID)
	assert.Equal(t, tracing.StatusError, child.Status)
	require.NotEmpty(t, child.Events)
	last := child.Events[len(child.Events)-1]
	assert.Equal(t, "exception", last.Name)
	assert.Equal(t, "boom", last.Attributes["exception.message"])
	assert.Contains(t, last.Attributes["exception.type"], "errorString")
	assert.NotEmpty(t, last.Attributes["exception.stacktrace"])

	assert.Equal(t, "rag-pipeline", trace.Info.Tags[tracing.TagTraceName])
	assert.Equal(t, "u1", trace.Info.Tags["user_id"])
	assert.Equal(t, tracing.ExperimentLocation{ExperimentID: "exp-1"}, trace.Info.TraceLocation)
}

func TestTraceStateDerivation(t *testing.T) {
	tests := []struct {
		name     string
		statuses []tracing.SpanStatus
		want     tracing.TraceState
	}{
		{"all ok", []tracing.SpanStatus{tracing.StatusOK, tracing.StatusOK}, tracing.StateOK},
		{"error last", []tracing.SpanStatus{tracing.StatusOK, tracing.StatusError}, tracing.StateError},
		{"error first", []tracing.SpanStatus{tracing.StatusError, tracing.StatusOK}, tracing.StateError},
		{"no spans", nil, tracing.StateOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := tracing.NewTraceBuilder("t", tracing.WithoutLinkValidation())
			for _, status := range tt.statuses {
				tb.StartSpan("s").End(status)
			}
			trace, err := tb.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.want, trace.Info.State)
		})
	}
}

func TestExplicitEndStatusWins(t *testing.T) {
	tb := tracing.NewTraceBuilder("t")
	sb := tb.StartSpan("failing")
	sb.WithError(errors.New("broken"))
	sb.End(tracing.StatusOK)

	trace, err := tb.Build()
	require.NoError(t, err)
	assert.Equal(t, tracing.StatusOK, trace.Data.Spans[0].Status)
	// Trace state derives from span status, so an explicit OK masks the error.
	assert.Equal(t, tracing.StateOK, trace.Info.State)
}

func TestUnendedSpanNotVisible(t *testing.T) {
	tb := tracing.NewTraceBuilder("t")
	tb.StartSpan("root").End()
	tb.StartSpan("abandoned") // never ended

	trace, err := tb.Build()
	require.NoError(t, err)
	assert.Len(t, trace.Data.Spans, 1)
}

func TestSpanBuilderSealedAfterEnd(t *testing.T) {
	tb := tracing.NewTraceBuilder("t")
	sb := tb.StartSpan("s")
	sb.End()

	require.NoError(t, sb.Err())
	sb.WithAttribute("late", true)
	assert.ErrorIs(t, sb.Err(), tracing.ErrSpanEnded)

	// A second End must not append a duplicate span.
	sb.End()
	trace, err := tb.Build()
	require.NoError(t, err)
	assert.Len(t, trace.Data.Spans, 1)
	assert.NotContains(t, trace.Data.Spans[0].Attributes, "late")
}

func TestTraceBuilderSealedAfterBuild(t *testing.T) {
	tb := tracing.NewTraceBuilder("t").WithMetadata("early", "kept")
	tb.StartSpan("root").End()
	open := tb.StartSpan("straggler")

	trace, err := tb.Build()
	require.NoError(t, err)
	require.NoError(t, tb.Err())

	tb.WithTag("late", "x").WithMetadata("late", "y")
	assert.ErrorIs(t, tb.Err(), tracing.ErrTraceBuilt)

	// The built trace must not see post-Build writes.
	assert.NotContains(t, trace.Info.Tags, "late")
	assert.NotContains(t, trace.Info.TraceMetadata, "late")
	assert.Equal(t, "kept", trace.Info.TraceMetadata["early"])

	// Spans can no longer be opened or closed into the trace.
	late := tb.StartSpan("late")
	late.WithAttribute("k", "v")
	assert.ErrorIs(t, late.Err(), tracing.ErrTraceBuilt)
	open.End()
	assert.ErrorIs(t, open.Err(), tracing.ErrTraceBuilt)
	assert.Len(t, trace.Data.Spans, 1)
}

func TestBuildTwiceFails(t *testing.T) {
	tb := tracing.NewTraceBuilder("t")
	_, err := tb.Build()
	require.NoError(t, err)

	_, err = tb.Build()
	assert.ErrorIs(t, err, tracing.ErrTraceBuilt)
}

func TestBuildLinkValidation(t *testing.T) {
	t.Run("unknown parent rejected", func(t *testing.T) {
		tb := tracing.NewTraceBuilder("t")
		tb.StartSpan("root").End()
		tb.StartSpan("orphan").WithParent("ffffffffffffffff").End()

		_, err := tb.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown parent")
	})

	t.Run("two roots rejected", func(t *testing.T) {
		tb := tracing.NewTraceBuilder("t")
		tb.StartSpan("a").End()
		tb.StartSpan("b").End()

		_, err := tb.Build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one root")
	})

	t.Run("opt-out preserves permissive behavior", func(t *testing.T) {
		tb := tracing.NewTraceBuilder("t", tracing.WithoutLinkValidation())
		tb.StartSpan("a").End()
		tb.StartSpan("b").End()

		trace, err := tb.Build()
		require.NoError(t, err)
		assert.Len(t, trace.Data.Spans, 2)
	})

	t.Run("empty trace allowed", func(t *testing.T) {
		tb := tracing.NewTraceBuilder("t")
		trace, err := tb.Build()
		require.NoError(t, err)
		assert.Empty(t, trace.Data.Spans)
		assert.Nil(t, trace.Data.RootSpan())
	})
}

func TestBuildTimestamps(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_000)
	tb := tracing.NewTraceBuilder("t", tracing.WithClock(tickClock(start)))

	sb := tb.StartSpan("s")
	sb.End()

	trace, err := tb.Build()
	require.NoError(t, err)

	span := trace.Data.Spans[0]
	require.NotNil(t, span.EndTimeNs)
	assert.Greater(t, *span.EndTimeNs, span.StartTimeNs)

	// RequestTime is captured at Build, after every span timestamp.
	assert.GreaterOrEqual(t, tracing.MsToNs(trace.Info.RequestTime), *span.EndTimeNs)
	require.NotNil(t, trace.Info.ExecutionDuration)
	assert.GreaterOrEqual(t, *trace.Info.ExecutionDuration, int64(0))
}

func TestTraceWireRoundTripThroughBuilder(t *testing.T) {
	tb := tracing.NewTraceBuilder("pipeline", tracing.WithExperiment("exp-2")).
		WithMetadata("sdk", "tsuiseki").
		WithClientRequestID("cr-1")
	root := tb.StartSpan("root", tracing.WithSpanType(tracing.SpanTypeChain))
	tb.StartSpan("llm", tracing.WithSpanType(tracing.SpanTypeLLM)).
		WithParent(root.SpanID()).
		WithInput("prompt", "hello").
		WithOutput("completion", "world").
		End()
	root.End()

	original, err := tb.Build()
	require.NoError(t, err)

	data, err := tracing.EncodeTrace(original)
	require.NoError(t, err)

	decoded, err := tracing.DecodeTrace(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}
