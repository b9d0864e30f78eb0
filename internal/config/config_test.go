package config

import (
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("PICFEED_API_BASE_URL", "https://api.picfeed.example.com")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.APIBaseURL != "https://api.picfeed.example.com" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "https://api.picfeed.example.com")
	}
}

func TestLoad_MissingRequiredVars_ReturnsError(t *testing.T) {
	t.Setenv("PICFEED_API_BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("必須環境変数が未設定の場合はエラーを返すべき")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 10*time.Second)
	}
	if cfg.UploadMaxSize != 10485760 {
		t.Errorf("UploadMaxSize = %d, want %d", cfg.UploadMaxSize, 10485760)
	}
	if cfg.ImageMaxSize != 10485760 {
		t.Errorf("ImageMaxSize = %d, want %d", cfg.ImageMaxSize, 10485760)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Errorf("RateLimitPerMin = %d, want %d", cfg.RateLimitPerMin, 120)
	}
	if cfg.RateBurst != 30 {
		t.Errorf("RateBurst = %d, want %d", cfg.RateBurst, 30)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty", cfg.MetricsAddr)
	}
	if cfg.StateDBPath == "" {
		t.Error("StateDBPath should have a default value")
	}
}

func TestLoad_OverrideOptionalValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("PICFEED_REQUEST_TIMEOUT", "30s")
	t.Setenv("PICFEED_STATE_DB", "/tmp/picfeed-test/state.db")
	t.Setenv("PICFEED_RATE_LIMIT", "60")
	t.Setenv("PICFEED_METRICS_ADDR", "127.0.0.1:9102")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 30*time.Second)
	}
	if cfg.StateDBPath != "/tmp/picfeed-test/state.db" {
		t.Errorf("StateDBPath = %q, want %q", cfg.StateDBPath, "/tmp/picfeed-test/state.db")
	}
	if cfg.RateLimitPerMin != 60 {
		t.Errorf("RateLimitPerMin = %d, want %d", cfg.RateLimitPerMin, 60)
	}
	if cfg.MetricsAddr != "127.0.0.1:9102" {
		t.Errorf("MetricsAddr = %q, want %q", cfg.MetricsAddr, "127.0.0.1:9102")
	}
}

func TestLoad_InvalidOptionalValues_FallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("PICFEED_REQUEST_TIMEOUT", "not-a-duration")
	t.Setenv("PICFEED_RATE_LIMIT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want default %v", cfg.RequestTimeout, 10*time.Second)
	}
	if cfg.RateLimitPerMin != 120 {
		t.Errorf("RateLimitPerMin = %d, want default %d", cfg.RateLimitPerMin, 120)
	}
}
