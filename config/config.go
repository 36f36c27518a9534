package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Monitored position
	Assets       string // comma-separated, e.g. "BTC,ETH"
	SpotQty      float64
	PerpQty      float64
	ThresholdPct float64

	// Monitor loop
	MonitorInterval time.Duration
	WindowSize      int
	Confidence      float64

	// Venue HTTP clients
	HTTPTimeout    time.Duration
	DeribitBaseURL string
	OKXBaseURL     string
	BybitBaseURL   string
	DeribitWSURL   string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	JournalPath   string
	MetricsAddr   string
	LogLevel      string
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("[config] loaded .env")
	}

	return &Config{
		Assets:       getEnv("ASSETS", "BTC"),
		SpotQty:      getFloat("SPOT_QTY", 1.0),
		PerpQty:      getFloat("PERP_QTY", 0),
		ThresholdPct: getFloat("THRESHOLD_PERCENT", 10),

		MonitorInterval: getDuration("MONITOR_INTERVAL", time.Minute),
		WindowSize:      getInt("VAR_WINDOW", 360),
		Confidence:      getFloat("VAR_CONFIDENCE", 0.95),

		HTTPTimeout:    getDuration("HTTP_TIMEOUT", 10*time.Second),
		DeribitBaseURL: getEnv("DERIBIT_BASE_URL", ""),
		OKXBaseURL:     getEnv("OKX_BASE_URL", ""),
		BybitBaseURL:   getEnv("BYBIT_BASE_URL", ""),
		DeribitWSURL:   getEnv("DERIBIT_WS_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// ParseAssets splits the Assets string into upper-cased symbols.
func (c *Config) ParseAssets() []string {
	parts := strings.Split(c.Assets, ",")
	assets := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		assets = append(assets, p)
	}
	return assets
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
