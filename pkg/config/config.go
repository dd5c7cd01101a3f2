// Package config resolves the process configuration once at startup.
// All mock/live switches and limits live here and are threaded through
// constructors; nothing reads the environment after startup.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/statwatch/stats-proxy/pkg/logging"
	"github.com/statwatch/stats-proxy/pkg/provider"
	"github.com/statwatch/stats-proxy/pkg/ratelimit"
)

// Config is the complete process configuration.
type Config struct {
	// Port is the HTTP listen port.
	Port string

	// RedisURL is the Redis address (host:port). When Redis is
	// unreachable at startup the cache falls back to the file backend.
	RedisURL string

	// CacheDir backs the file cache fallback.
	CacheDir string

	// FixtureDir holds canned JSON payloads for mock replay.
	FixtureDir string

	// UseMockFor disables live calls per upstream service.
	UseMockFor map[provider.Service]bool

	// WriteRealDataToMock persists live responses as fixtures.
	WriteRealDataToMock bool

	// UserAgent identifies the proxy to upstream providers.
	UserAgent string

	// MaxRetries bounds attempts per outbound request.
	MaxRetries int

	// DefaultRetryDelay is the backoff when no Retry-After is sent.
	DefaultRetryDelay time.Duration

	// JobTimeout bounds a background fetch job.
	JobTimeout time.Duration

	// Limits holds per-service rate limits.
	Limits map[string]ratelimit.Limits

	// LogLevel and LogPretty configure logging.
	LogLevel  logging.LogLevel
	LogPretty bool
}

// FromEnv resolves the configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		RedisURL:   getEnv("REDIS_URL", "localhost:6379"),
		CacheDir:   getEnv("CACHE_DIR", "data/cache"),
		FixtureDir: getEnv("FIXTURE_DIR", "data/fixtures"),
		UseMockFor: map[provider.Service]bool{
			provider.ServiceOpenDota:    getBool("MOCK_OPENDOTA", false),
			provider.ServiceSportsDB:    getBool("MOCK_SPORTSDB", false),
			provider.ServiceBallDontLie: getBool("MOCK_BALLDONTLIE", false),
		},
		WriteRealDataToMock: getBool("WRITE_REAL_DATA_TO_MOCK", false),
		UserAgent:           getEnv("USER_AGENT", "stats-proxy/0.1.0"),
		MaxRetries:          getInt("MAX_RETRIES", 3),
		DefaultRetryDelay:   getDuration("RETRY_DELAY", 1*time.Second),
		JobTimeout:          getDuration("JOB_TIMEOUT", 2*time.Minute),
		LogLevel:            logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		LogPretty:           getBool("LOG_PRETTY", false),
	}

	base := ratelimit.Limits{
		MinDelay:    getDuration("RATE_MIN_DELAY", 1*time.Second),
		Window:      getDuration("RATE_WINDOW", 60*time.Second),
		MaxRequests: getInt("RATE_MAX_REQUESTS", 50),
	}
	cfg.Limits = make(map[string]ratelimit.Limits, len(provider.Services()))
	for _, svc := range provider.Services() {
		cfg.Limits[string(svc)] = base
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
