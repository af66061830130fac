// Package submit provides buffered asynchronous submission of assembled
// traces to a trace store.
package submit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tsuiseki/internal/telemetry"
	"github.com/ashita-ai/tsuiseki/tracing"
)

// maxBufferCapacity is the hard upper limit on buffered traces to prevent
// OOM. When this limit is reached, Enqueue applies backpressure by
// returning an error.
const maxBufferCapacity = 10_000

// Submitter posts one trace to the store. *client.Client satisfies it.
type Submitter interface {
	CreateTrace(ctx context.Context, trace tracing.Trace) (*tracing.TraceInfo, error)
}

// Buffer accumulates built traces in memory and flushes them to the store
// when either the buffer size or the flush timeout is reached.
type Buffer struct {
	submitter    Submitter
	logger       *slog.Logger
	maxSize      int
	flushTimeout time.Duration
	concurrency  int

	mu     sync.Mutex
	traces []tracing.Trace

	started       atomic.Bool
	droppedTraces atomic.Int64 // total traces dropped due to capacity after flush failure

	flushCh    chan struct{}
	done       chan struct{}
	cancelLoop context.CancelFunc // cancels the flushLoop goroutine
	drainCtx   context.Context    // set by Drain so the final flush respects the caller's deadline
}

// NewBuffer creates a trace submission buffer.
func NewBuffer(submitter Submitter, logger *slog.Logger, maxSize int, flushTimeout time.Duration) *Buffer {
	return &Buffer{
		submitter:    submitter,
		logger:       logger,
		maxSize:      maxSize,
		flushTimeout: flushTimeout,
		concurrency:  4,
		flushCh:      make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
}

// Start begins the background flush loop and registers OTEL metrics.
// Call Drain to stop.
func (b *Buffer) Start(ctx context.Context) {
	if !b.started.CompareAndSwap(false, true) {
		b.logger.Warn("submit: buffer already started")
		return
	}
	b.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancelLoop = cancel
	go b.flushLoop(loopCtx)
}

// Enqueue adds a built trace to the buffer. Returns an error when the
// buffer is at capacity (backpressure).
func (b *Buffer) Enqueue(trace tracing.Trace) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.traces)+1 > maxBufferCapacity {
		return fmt.Errorf("submit: buffer at capacity (%d traces), try again later", len(b.traces))
	}
	b.traces = append(b.traces, trace)

	if len(b.traces) >= b.maxSize {
		select {
		case b.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *Buffer) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(b.flushTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final flush. ctx is already done, so use the drain context
			// provided by Drain; it carries the caller's deadline.
			if b.drainCtx != nil {
				b.flush(b.drainCtx)
			} else {
				// Fallback for direct cancellation without Drain (e.g., tests).
				fallbackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				b.flush(fallbackCtx)
				cancel()
			}
			close(b.done)
			return
		case <-ticker.C:
			b.flush(ctx)
		case <-b.flushCh:
			b.flush(ctx)
		}
	}
}

func (b *Buffer) flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.traces) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.traces
	b.traces = nil
	b.mu.Unlock()

	start := time.Now()
	failed := b.submitBatch(ctx, batch)
	duration := time.Since(start)

	if len(failed) > 0 {
		// Put failures back for retry, but respect the capacity limit.
		b.mu.Lock()
		if len(b.traces)+len(failed) <= maxBufferCapacity {
			b.traces = append(failed, b.traces...)
		} else {
			b.droppedTraces.Add(int64(len(failed)))
			b.logger.Error("submit: dropping traces, buffer at capacity after flush failure",
				"dropped", len(failed))
		}
		b.mu.Unlock()
		return
	}

	b.logger.Info("submit: batch flushed",
		"batch_size", len(batch),
		"flush_duration_ms", duration.Milliseconds(),
	)
}

// submitBatch posts each trace with bounded concurrency and returns the
// traces that failed.
func (b *Buffer) submitBatch(ctx context.Context, batch []tracing.Trace) []tracing.Trace {
	var (
		mu     sync.Mutex
		failed []tracing.Trace
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, trace := range batch {
		trace := trace
		g.Go(func() error {
			if _, err := b.submitter.CreateTrace(gctx, trace); err != nil {
				b.logger.Error("submit: trace submission failed",
					"trace_id", trace.Info.TraceID, "error", err)
				mu.Lock()
				failed = append(failed, trace)
				mu.Unlock()
			}
			// Failures are retried via the buffer, never via errgroup abort.
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// Drain signals the background flush loop to stop, waits for its final
// flush, and returns. The ctx controls the maximum time to wait.
func (b *Buffer) Drain(ctx context.Context) {
	b.drainCtx = ctx
	if b.cancelLoop != nil {
		b.cancelLoop()
	}
	select {
	case <-b.done:
	case <-ctx.Done():
		b.logger.Warn("submit: drain timed out waiting for flush loop")
	}
}

// registerMetrics registers observable OTEL gauges for buffer health.
// Called from Start after the global meter provider is initialized.
func (b *Buffer) registerMetrics() {
	meter := telemetry.Meter("tsuiseki/submit")

	_, _ = meter.Int64ObservableGauge("tsuiseki.submit.depth",
		metric.WithDescription("Current number of traces in the submission buffer"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(b.Len()))
			return nil
		}),
	)

	_, _ = meter.Int64ObservableGauge("tsuiseki.submit.dropped_total",
		metric.WithDescription("Total traces dropped due to buffer capacity exhaustion"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(b.DroppedTraces())
			return nil
		}),
	)
}

// Len returns the current number of buffered traces.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.traces)
}

// DroppedTraces returns the total number of traces dropped after flush
// failures filled the buffer. A non-zero value indicates data loss.
func (b *Buffer) DroppedTraces() int64 {
	return b.droppedTraces.Load()
}
