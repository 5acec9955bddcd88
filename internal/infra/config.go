package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
// It is constructed once in main and passed down explicitly; nothing reads the
// environment after startup.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	WriterAPIKey  string
	WriterBaseURL string
	WriterModel   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	WorkerCount    int
	WorkerPort     string
	PollInterval   time.Duration
	StepTimeout    time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		WriterAPIKey:     os.Getenv("WRITER_API_KEY"),
		WriterBaseURL:    getEnv("WRITER_BASE_URL", "https://api.writer.example.com/v1"),
		WriterModel:      getEnv("WRITER_MODEL", "copywriter-large"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		WorkerCount:      getEnvInt("WORKER_COUNT", 4),
		WorkerPort:       getEnv("WORKER_PORT", "8082"),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 2)),
		StepTimeout:      time.Second * time.Duration(getEnvInt("STEP_TIMEOUT_SECONDS", 120)),
		MaxAttempts:      getEnvInt("STEP_MAX_ATTEMPTS", 3),
		RetryBaseDelay:   time.Second * time.Duration(getEnvInt("RETRY_BASE_DELAY_SECONDS", 5)),
		RetryMaxDelay:    time.Second * time.Duration(getEnvInt("RETRY_MAX_DELAY_SECONDS", 300)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WORKER_COUNT must be at least 1")
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("STEP_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
