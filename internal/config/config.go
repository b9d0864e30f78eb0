package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config はクライアント全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL     string
	RequestTimeout time.Duration

	// Local state
	StateDBPath string

	// Upload / Image
	UploadMaxSize int64
	ImageMaxSize  int64
	ImageTimeout  time.Duration

	// Rate Limit（クライアント側の自己制限。req/min単位）
	RateLimitPerMin int
	RateBurst       int

	// Metrics（空の場合はリスナーを起動しない）
	MetricsAddr string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = os.Getenv("PICFEED_API_BASE_URL")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "PICFEED_API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RequestTimeout = getEnvDuration("PICFEED_REQUEST_TIMEOUT", 10*time.Second)
	cfg.StateDBPath = getEnvString("PICFEED_STATE_DB", defaultStateDBPath())
	cfg.UploadMaxSize = getEnvInt64("PICFEED_UPLOAD_MAX_SIZE", 10485760)
	cfg.ImageMaxSize = getEnvInt64("PICFEED_IMAGE_MAX_SIZE", 10485760)
	cfg.ImageTimeout = getEnvDuration("PICFEED_IMAGE_TIMEOUT", 10*time.Second)
	cfg.RateLimitPerMin = getEnvInt("PICFEED_RATE_LIMIT", 120)
	cfg.RateBurst = getEnvInt("PICFEED_RATE_BURST", 30)
	cfg.MetricsAddr = getEnvString("PICFEED_METRICS_ADDR", "")

	return cfg, nil
}

// defaultStateDBPath はローカル状態DBのデフォルトパスを返す。
// ホームディレクトリが取得できない場合はカレントディレクトリ配下を使用する。
func defaultStateDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".picfeed", "state.db")
	}
	return filepath.Join(home, ".picfeed", "state.db")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
