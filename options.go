package tsuiseki

import (
	"log/slog"

	"github.com/ashita-ai/tsuiseki/submit"
)

// Option configures a Recorder.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	version       string
	traceStoreURL string
	apiKey        string
	experimentID  string
	archivePath   string
	submitter     submit.Submitter
	syncSubmit    bool
}

// WithLogger sets the structured logger for the Recorder.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and OTEL resources.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithTraceStoreURL overrides the trace store URL from config
// (TSUISEKI_TRACE_STORE_URL env var).
func WithTraceStoreURL(url string) Option {
	return func(o *resolvedOptions) { o.traceStoreURL = url }
}

// WithAPIKey overrides the trace store API key from config
// (TSUISEKI_API_KEY env var).
func WithAPIKey(key string) Option {
	return func(o *resolvedOptions) { o.apiKey = key }
}

// WithExperiment sets the default experiment targeted by NewTrace
// (TSUISEKI_EXPERIMENT_ID env var).
func WithExperiment(experimentID string) Option {
	return func(o *resolvedOptions) { o.experimentID = experimentID }
}

// WithArchivePath enables the local SQLite archive at the given path
// (TSUISEKI_ARCHIVE_PATH env var).
func WithArchivePath(path string) Option {
	return func(o *resolvedOptions) { o.archivePath = path }
}

// WithSubmitter replaces the HTTP trace-store client with a custom
// submitter. Intended for tests and alternative transports.
func WithSubmitter(s submit.Submitter) Option {
	return func(o *resolvedOptions) { o.submitter = s }
}

// WithSynchronousSubmit disables the background submission buffer: Record
// posts the trace to the store before returning. Slower, but failures
// surface to the caller immediately.
func WithSynchronousSubmit() Option {
	return func(o *resolvedOptions) { o.syncSubmit = true }
}
