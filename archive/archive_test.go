package archive_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tsuiseki/archive"
	"github.com/ashita-ai/tsuiseki/tracing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openTestArchive(t *testing.T) *archive.Archive {
	t.Helper()
	a, err := archive.Open(context.Background(), filepath.Join(t.TempDir(), "traces.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func buildTrace(t *testing.T, name string, failing bool) tracing.Trace {
	t.Helper()
	tb := tracing.NewTraceBuilder(name, tracing.WithExperiment("exp-1"))
	sb := tb.StartSpan("root", tracing.WithSpanType(tracing.SpanTypeChain))
	if failing {
		sb.End(tracing.StatusError)
	} else {
		sb.End()
	}
	trace, err := tb.Build()
	require.NoError(t, err)
	return trace
}

func TestArchiveSaveAndGet(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	original := buildTrace(t, "pipeline", false)
	require.NoError(t, a.Save(ctx, original))

	got, err := a.Get(ctx, original.Info.TraceID)
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestArchiveGetMissing(t *testing.T) {
	a := openTestArchive(t)

	_, err := a.Get(context.Background(), "0123456789abcdef0123456789abcdef")
	assert.ErrorIs(t, err, archive.ErrNotFound)
}

func TestArchiveSaveReplacesExisting(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	trace := buildTrace(t, "pipeline", false)
	require.NoError(t, a.Save(ctx, trace))

	trace.Info.Tags["revised"] = "yes"
	require.NoError(t, a.Save(ctx, trace))

	got, err := a.Get(ctx, trace.Info.TraceID)
	require.NoError(t, err)
	assert.Equal(t, "yes", got.Info.Tags["revised"])

	infos, err := a.List(ctx, archive.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestArchiveListFiltersByState(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	ok := buildTrace(t, "ok-trace", false)
	failed := buildTrace(t, "failed-trace", true)
	require.NoError(t, a.Save(ctx, ok))
	require.NoError(t, a.Save(ctx, failed))

	all, err := a.List(ctx, archive.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	errored, err := a.List(ctx, archive.ListFilter{State: tracing.StateError})
	require.NoError(t, err)
	require.Len(t, errored, 1)
	assert.Equal(t, failed.Info.TraceID, errored[0].TraceID)
}

func TestArchiveDelete(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	trace := buildTrace(t, "pipeline", false)
	require.NoError(t, a.Save(ctx, trace))
	require.NoError(t, a.Delete(ctx, trace.Info.TraceID))

	_, err := a.Get(ctx, trace.Info.TraceID)
	assert.ErrorIs(t, err, archive.ErrNotFound)

	// Deleting again is not an error.
	require.NoError(t, a.Delete(ctx, trace.Info.TraceID))
}
