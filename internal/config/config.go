// Package config loads SDK and CLI configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the trace SDK, its CLI, and exporters.
type Config struct {
	// Trace store settings.
	TraceStoreURL string
	APIKey        string
	Timeout       time.Duration

	// Default experiment for new traces.
	ExperimentID string

	// Local archive settings. Empty path disables archiving.
	ArchivePath string

	// Submission buffer settings.
	SubmitBufferSize   int
	SubmitFlushTimeout time.Duration

	// OTEL settings. Empty endpoint disables OTLP export.
	OTELEndpoint string
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		TraceStoreURL:      envStr("TSUISEKI_TRACE_STORE_URL", ""),
		APIKey:             envStr("TSUISEKI_API_KEY", ""),
		Timeout:            envDuration("TSUISEKI_TIMEOUT", 30*time.Second),
		ExperimentID:       envStr("TSUISEKI_EXPERIMENT_ID", ""),
		ArchivePath:        envStr("TSUISEKI_ARCHIVE_PATH", ""),
		SubmitBufferSize:   envInt("TSUISEKI_SUBMIT_BUFFER_SIZE", 100),
		SubmitFlushTimeout: envDuration("TSUISEKI_SUBMIT_FLUSH_TIMEOUT", 5*time.Second),
		OTELEndpoint:       envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:        envStr("OTEL_SERVICE_NAME", "tsuiseki"),
		LogLevel:           envStr("TSUISEKI_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	if c.TraceStoreURL != "" && c.APIKey == "" {
		return fmt.Errorf("config: TSUISEKI_API_KEY is required when TSUISEKI_TRACE_STORE_URL is set")
	}
	if c.SubmitBufferSize <= 0 {
		return fmt.Errorf("config: TSUISEKI_SUBMIT_BUFFER_SIZE must be positive")
	}
	if c.SubmitFlushTimeout <= 0 {
		return fmt.Errorf("config: TSUISEKI_SUBMIT_FLUSH_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
