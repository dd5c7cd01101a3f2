package config

import (
	"testing"
	"time"

	"github.com/statwatch/stats-proxy/pkg/provider"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.RedisURL != "localhost:6379" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.JobTimeout != 2*time.Minute {
		t.Errorf("JobTimeout = %v, want 2m", cfg.JobTimeout)
	}
	if cfg.WriteRealDataToMock {
		t.Error("WriteRealDataToMock = true, want false by default")
	}
	for _, svc := range provider.Services() {
		if cfg.UseMockFor[svc] {
			t.Errorf("UseMockFor[%s] = true, want false by default", svc)
		}
		limits, ok := cfg.Limits[string(svc)]
		if !ok {
			t.Fatalf("no limits for %s", svc)
		}
		if limits.MinDelay != time.Second || limits.MaxRequests != 50 {
			t.Errorf("Limits[%s] = %+v, want 1s/50", svc, limits)
		}
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MOCK_OPENDOTA", "true")
	t.Setenv("WRITE_REAL_DATA_TO_MOCK", "1")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("JOB_TIMEOUT", "30s")
	t.Setenv("RATE_MIN_DELAY", "2s")
	t.Setenv("RATE_MAX_REQUESTS", "10")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if !cfg.UseMockFor[provider.ServiceOpenDota] {
		t.Error("MOCK_OPENDOTA not honored")
	}
	if cfg.UseMockFor[provider.ServiceSportsDB] {
		t.Error("sportsdb mocked without MOCK_SPORTSDB")
	}
	if !cfg.WriteRealDataToMock {
		t.Error("WRITE_REAL_DATA_TO_MOCK not honored")
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", cfg.MaxRetries)
	}
	if cfg.DefaultRetryDelay != 250*time.Millisecond {
		t.Errorf("DefaultRetryDelay = %v, want 250ms", cfg.DefaultRetryDelay)
	}
	if cfg.JobTimeout != 30*time.Second {
		t.Errorf("JobTimeout = %v, want 30s", cfg.JobTimeout)
	}
	if limits := cfg.Limits["opendota"]; limits.MinDelay != 2*time.Second || limits.MaxRequests != 10 {
		t.Errorf("Limits[opendota] = %+v, want 2s/10", limits)
	}
	if string(cfg.LogLevel) != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestFromEnv_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_RETRIES", "lots")
	t.Setenv("RETRY_DELAY", "soon")
	t.Setenv("MOCK_OPENDOTA", "yes please")

	cfg := FromEnv()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
	if cfg.DefaultRetryDelay != time.Second {
		t.Errorf("DefaultRetryDelay = %v, want default 1s", cfg.DefaultRetryDelay)
	}
	if cfg.UseMockFor[provider.ServiceOpenDota] {
		t.Error("malformed MOCK_OPENDOTA treated as true")
	}
}
