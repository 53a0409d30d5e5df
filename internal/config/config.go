package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env         string
	ListenAddr  string
	DatabaseURL string
	AdminToken  string

	CheckWorkers int
	CacheTTL     time.Duration

	// Per-key token bucket.
	RateLimit float64
	RateBurst int

	Probe ProbeConfig
	Log   LogConfig
}

type ProbeConfig struct {
	Timeout      time.Duration
	MaxRedirects int
	MaxBodyBytes int
	UserAgent    string
}

type LogConfig struct {
	Level  string
	Format string // "json" or "console"
	File   string // optional rotated log file
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.Atoi(v); err == nil {
			return out
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if out, err := strconv.ParseFloat(v, 64); err == nil {
			return out
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if out, err := time.ParseDuration(v); err == nil {
			return out
		}
	}
	return def
}

func Load() (Config, error) {
	cfg := Config{
		Env:          getenv("APP_ENV", "development"),
		ListenAddr:   getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		AdminToken:   os.Getenv("ADMIN_TOKEN"),
		CheckWorkers: getenvInt("CHECK_WORKERS", 0),
		CacheTTL:     getenvDuration("CACHE_TTL", time.Hour),
		RateLimit:    getenvFloat("RATE_LIMIT", 1),
		RateBurst:    getenvInt("RATE_BURST", 5),
		Probe: ProbeConfig{
			Timeout:      getenvDuration("PROBE_TIMEOUT", 4500*time.Millisecond),
			MaxRedirects: getenvInt("PROBE_MAX_REDIRECTS", 5),
			MaxBodyBytes: getenvInt("PROBE_MAX_BODY_BYTES", 200_000),
			UserAgent:    getenv("PROBE_USER_AGENT", ""),
		},
		Log: LogConfig{
			Level:  getenv("LOG_LEVEL", "info"),
			Format: getenv("LOG_FORMAT", "console"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	if cfg.DatabaseURL == "" {
		// Not fatal for early local runs; warn via error value so callers can decide.
		return cfg, fmt.Errorf("DATABASE_URL not set")
	}
	if cfg.Probe.Timeout <= 0 {
		return cfg, fmt.Errorf("PROBE_TIMEOUT must be positive")
	}
	if cfg.Probe.MaxRedirects < 0 {
		return cfg, fmt.Errorf("PROBE_MAX_REDIRECTS must not be negative")
	}
	return cfg, nil
}
