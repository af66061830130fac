package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %s", cfg.Timeout)
	}
	if cfg.SubmitBufferSize != 100 {
		t.Errorf("expected default buffer size 100, got %d", cfg.SubmitBufferSize)
	}
	if cfg.ServiceName != "tsuiseki" {
		t.Errorf("expected default service name, got %q", cfg.ServiceName)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TSUISEKI_TRACE_STORE_URL", "https://traces.example.com")
	t.Setenv("TSUISEKI_API_KEY", "secret")
	t.Setenv("TSUISEKI_SUBMIT_BUFFER_SIZE", "7")
	t.Setenv("TSUISEKI_TIMEOUT", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TraceStoreURL != "https://traces.example.com" {
		t.Errorf("unexpected store URL %q", cfg.TraceStoreURL)
	}
	if cfg.SubmitBufferSize != 7 {
		t.Errorf("expected buffer size 7, got %d", cfg.SubmitBufferSize)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %s", cfg.Timeout)
	}
}

func TestValidateRequiresAPIKeyWithStoreURL(t *testing.T) {
	t.Setenv("TSUISEKI_TRACE_STORE_URL", "https://traces.example.com")
	t.Setenv("TSUISEKI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when store URL is set without an API key")
	}
}

func TestValidateRejectsNonPositiveBuffer(t *testing.T) {
	t.Setenv("TSUISEKI_SUBMIT_BUFFER_SIZE", "-1")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-positive buffer size")
	}
}

func TestEnvFallbacks(t *testing.T) {
	if v := envStr("TSUISEKI_TEST_MISSING", "fallback"); v != "fallback" {
		t.Errorf("expected fallback, got %q", v)
	}
	t.Setenv("TSUISEKI_TEST_INT_BAD", "abc")
	if v := envInt("TSUISEKI_TEST_INT_BAD", 9); v != 9 {
		t.Errorf("expected fallback 9 for invalid int, got %d", v)
	}
	t.Setenv("TSUISEKI_TEST_DUR_BAD", "soon")
	if v := envDuration("TSUISEKI_TEST_DUR_BAD", time.Minute); v != time.Minute {
		t.Errorf("expected fallback 1m for invalid duration, got %s", v)
	}
}
