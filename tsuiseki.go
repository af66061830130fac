// Package tsuiseki records hierarchical execution traces of GenAI
// pipelines and delivers them to a remote trace store, a local archive,
// and OTLP collectors.
//
// The Recorder is the top-level entry point: it wires the trace-store
// client, the background submission buffer, the SQLite archive, and the
// OTEL exporter from environment configuration plus options. Trace
// assembly itself lives in the tracing package and can be used standalone.
package tsuiseki

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/ashita-ai/tsuiseki/archive"
	"github.com/ashita-ai/tsuiseki/client"
	"github.com/ashita-ai/tsuiseki/internal/config"
	"github.com/ashita-ai/tsuiseki/internal/telemetry"
	"github.com/ashita-ai/tsuiseki/otelexport"
	"github.com/ashita-ai/tsuiseki/submit"
	"github.com/ashita-ai/tsuiseki/tracing"
)

// Recorder assembles traces and fans completed ones out to the configured
// sinks. Construct with New(), release with Close().
type Recorder struct {
	cfg          config.Config
	submitter    submit.Submitter
	buf          *submit.Buffer // nil in synchronous mode or without a store
	arc          *archive.Archive
	exporter     *otelexport.Exporter
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	experimentID string
	syncSubmit   bool
}

// New initialises a Recorder: loads configuration, connects the configured
// sinks, and starts the background submission buffer. A Recorder with no
// store, archive, or OTEL endpoint configured still assembles traces; such
// traces are simply returned to the caller from Build.
func New(ctx context.Context, opts ...Option) (*Recorder, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.traceStoreURL != "" {
		cfg.TraceStoreURL = o.traceStoreURL
	}
	if o.apiKey != "" {
		cfg.APIKey = o.apiKey
	}
	if o.experimentID != "" {
		cfg.ExperimentID = o.experimentID
	}
	if o.archivePath != "" {
		cfg.ArchivePath = o.archivePath
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	otelShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    cfg.OTELEndpoint,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	r := &Recorder{
		cfg:          cfg,
		otelShutdown: otelShutdown,
		logger:       logger,
		experimentID: cfg.ExperimentID,
		syncSubmit:   o.syncSubmit,
	}

	r.submitter = o.submitter
	if r.submitter == nil && cfg.TraceStoreURL != "" {
		c, err := client.NewClient(client.Config{
			BaseURL: cfg.TraceStoreURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
		if err != nil {
			_ = otelShutdown(ctx)
			return nil, err
		}
		r.submitter = c
	}

	if r.submitter != nil && !o.syncSubmit {
		r.buf = submit.NewBuffer(r.submitter, logger, cfg.SubmitBufferSize, cfg.SubmitFlushTimeout)
		r.buf.Start(ctx)
	}

	if cfg.ArchivePath != "" {
		arc, err := archive.Open(ctx, cfg.ArchivePath, logger)
		if err != nil {
			r.shutdown(ctx)
			return nil, err
		}
		r.arc = arc
	}

	if cfg.OTELEndpoint != "" {
		r.exporter = otelexport.New(otel.GetTracerProvider())
	}

	logger.Info("tsuiseki recorder ready",
		"version", version,
		"store", cfg.TraceStoreURL != "",
		"archive", cfg.ArchivePath != "",
		"otel", cfg.OTELEndpoint != "",
	)
	return r, nil
}

// NewTrace opens a trace builder targeted at the recorder's default
// experiment, pre-tagged with a generated client request id for
// correlation. Additional trace options may override both.
func (r *Recorder) NewTrace(name string, opts ...tracing.TraceOption) *tracing.TraceBuilder {
	base := make([]tracing.TraceOption, 0, len(opts)+1)
	if r.experimentID != "" {
		base = append(base, tracing.WithExperiment(r.experimentID))
	}
	base = append(base, opts...)
	return tracing.NewTraceBuilder(name, base...).
		WithClientRequestID(uuid.New().String())
}

// Record delivers a built trace to every configured sink: the local
// archive first (durable even when the network is down), then the store
// submission, then OTLP export. Archive and export failures are returned;
// buffered submission failures surface through the buffer's retry loop and
// metrics instead.
func (r *Recorder) Record(ctx context.Context, trace tracing.Trace) error {
	if r.arc != nil {
		if err := r.arc.Save(ctx, trace); err != nil {
			return err
		}
	}

	if r.submitter != nil {
		if r.buf != nil {
			if err := r.buf.Enqueue(trace); err != nil {
				return err
			}
		} else {
			if _, err := r.submitter.CreateTrace(ctx, trace); err != nil {
				return err
			}
		}
	}

	if r.exporter != nil {
		if err := r.exporter.Export(ctx, trace); err != nil {
			return err
		}
	}
	return nil
}

// Close drains the submission buffer, closes the archive, and shuts down
// the OTEL providers. The context bounds how long draining may take.
func (r *Recorder) Close(ctx context.Context) error {
	r.shutdown(ctx)
	return nil
}

func (r *Recorder) shutdown(ctx context.Context) {
	if r.buf != nil {
		r.buf.Drain(ctx)
	}
	if r.arc != nil {
		if err := r.arc.Close(); err != nil {
			r.logger.Warn("close archive", "error", err)
		}
	}
	if r.otelShutdown != nil {
		if err := r.otelShutdown(ctx); err != nil {
			r.logger.Warn("otel shutdown", "error", err)
		}
	}
}
