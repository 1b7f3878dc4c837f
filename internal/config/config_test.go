package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

func mapEnv(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("is valid", func(t *testing.T) {
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})

	t.Run("cache defaults", func(t *testing.T) {
		opts := DefaultCacheOptions()
		if opts.MaxSize != 1000 {
			t.Errorf("MaxSize = %d, want 1000", opts.MaxSize)
		}
		if opts.DefaultTTL != 5*time.Minute {
			t.Errorf("DefaultTTL = %v, want 5m", opts.DefaultTTL)
		}
		if opts.CleanupInterval != time.Minute {
			t.Errorf("CleanupInterval = %v, want 1m", opts.CleanupInterval)
		}
		if opts.MemoryThreshold != 50*1024*1024 {
			t.Errorf("MemoryThreshold = %d, want 50MiB", opts.MemoryThreshold)
		}
	})

	t.Run("circuit breaker defaults", func(t *testing.T) {
		if !cfg.CircuitBreaker.Enabled {
			t.Error("CircuitBreaker.Enabled = false, want true")
		}
		if cfg.CircuitBreaker.BackoffMultiplier != 2.0 {
			t.Errorf("BackoffMultiplier = %v, want 2", cfg.CircuitBreaker.BackoffMultiplier)
		}
		if cfg.CircuitBreaker.MaxTimeout < cfg.CircuitBreaker.Timeout {
			t.Error("MaxTimeout < Timeout")
		}
	})

	t.Run("redis and stale disabled", func(t *testing.T) {
		if cfg.Redis.Enabled {
			t.Error("Redis.Enabled = true, want false")
		}
		if cfg.Stale.Enabled {
			t.Error("Stale.Enabled = true, want false")
		}
	})
}

func TestForTesting(t *testing.T) {
	cfg := ForTesting()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true, want false")
	}
	if cfg.Monitoring.ConsoleAlerts {
		t.Error("Monitoring.ConsoleAlerts = true, want false")
	}
	if cfg.Cache.Overrides.MaxSize != 100 {
		t.Errorf("Cache.Overrides.MaxSize = %d, want 100", cfg.Cache.Overrides.MaxSize)
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.RateLimit.MaxRequests != 60 {
			t.Errorf("RateLimit.MaxRequests = %d, want 60", cfg.RateLimit.MaxRequests)
		}
	})

	t.Run("non-existent file returns defaults", func(t *testing.T) {
		cfg, err := Load("/non/existent/path/config.json")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Name != "upstream" {
			t.Errorf("Name = %s, want upstream", cfg.Name)
		}
	})

	t.Run("loads valid JSON file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.json")
		jsonContent := fmt.Sprintf(`{
			"name": "weather-api",
			"rateLimit": {"enabled": true, "maxRequests": 10, "period": %d, "window": %d},
			"circuitBreaker": {"failureThreshold": 2}
		}`, int64(time.Minute), int64(10*time.Second))
		if err := os.WriteFile(configPath, []byte(jsonContent), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := Load(configPath)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Name != "weather-api" {
			t.Errorf("Name = %s, want weather-api", cfg.Name)
		}
		if cfg.RateLimit.MaxRequests != 10 {
			t.Errorf("RateLimit.MaxRequests = %d, want 10", cfg.RateLimit.MaxRequests)
		}
		if cfg.RateLimit.Window != 10*time.Second {
			t.Errorf("RateLimit.Window = %v, want 10s", cfg.RateLimit.Window)
		}
		if cfg.CircuitBreaker.FailureThreshold != 2 {
			t.Errorf("FailureThreshold = %d, want 2", cfg.CircuitBreaker.FailureThreshold)
		}
		// Unspecified fields keep their defaults
		if cfg.CircuitBreaker.SuccessThreshold != 3 {
			t.Errorf("SuccessThreshold = %d, want 3", cfg.CircuitBreaker.SuccessThreshold)
		}
	})

	t.Run("returns error for invalid JSON", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid.json")
		if err := os.WriteFile(configPath, []byte("not valid json"), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := Load(configPath); err == nil {
			t.Error("Load() error = nil, want error")
		}
	})

	t.Run("returns config error for invalid values", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "invalid-values.json")
		if err := os.WriteFile(configPath, []byte(`{"circuitBreaker": {"backoffMultiplier": 1}}`), 0o644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := Load(configPath)
		if !types.IsConfigError(err) {
			t.Errorf("Load() error = %v, want ConfigError", err)
		}
	})
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("BULWARK_NAME", "env-upstream")
	t.Setenv("BULWARK_RATE_LIMIT_MAX_REQUESTS", "25")
	t.Setenv("BULWARK_CIRCUIT_BREAKER_TIMEOUT", "45s")

	cfg, err := LoadWithEnv("")
	if err != nil {
		t.Fatalf("LoadWithEnv() error = %v", err)
	}
	if cfg.Name != "env-upstream" {
		t.Errorf("Name = %s, want env-upstream", cfg.Name)
	}
	if cfg.RateLimit.MaxRequests != 25 {
		t.Errorf("RateLimit.MaxRequests = %d, want 25", cfg.RateLimit.MaxRequests)
	}
	if cfg.CircuitBreaker.Timeout != 45*time.Second {
		t.Errorf("CircuitBreaker.Timeout = %v, want 45s", cfg.CircuitBreaker.Timeout)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("circuit breaker and limiter", func(t *testing.T) {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg, mapEnv(map[string]string{
			"BULWARK_CIRCUIT_BREAKER_FAILURE_THRESHOLD":  "7",
			"BULWARK_CIRCUIT_BREAKER_BACKOFF_MULTIPLIER": "1.5",
			"BULWARK_CIRCUIT_BREAKER_MAX_TIMEOUT":        "10m",
			"BULWARK_RATE_LIMIT_PERIOD":                  "120",
			"BULWARK_RATE_LIMIT_WINDOW":                  "garbage",
		}))

		if cfg.CircuitBreaker.FailureThreshold != 7 {
			t.Errorf("FailureThreshold = %d, want 7", cfg.CircuitBreaker.FailureThreshold)
		}
		if cfg.CircuitBreaker.BackoffMultiplier != 1.5 {
			t.Errorf("BackoffMultiplier = %v, want 1.5", cfg.CircuitBreaker.BackoffMultiplier)
		}
		if cfg.CircuitBreaker.MaxTimeout != 10*time.Minute {
			t.Errorf("MaxTimeout = %v, want 10m", cfg.CircuitBreaker.MaxTimeout)
		}
		if cfg.RateLimit.Period != 120*time.Second {
			t.Errorf("Period = %v, want 120s", cfg.RateLimit.Period)
		}
		if cfg.RateLimit.Window != 10*time.Second {
			t.Errorf("Window = %v, want unchanged 10s", cfg.RateLimit.Window)
		}
	})

	t.Run("redis password is secret", func(t *testing.T) {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg, mapEnv(map[string]string{
			"BULWARK_REDIS_ENABLED":  "yes",
			"BULWARK_REDIS_PASSWORD": "hunter2",
		}))

		if !cfg.Redis.Enabled {
			t.Error("Redis.Enabled = false, want true")
		}
		if cfg.Redis.Password.Value() != "hunter2" {
			t.Error("Redis.Password value not applied")
		}
		if cfg.Redis.Password.String() != "[REDACTED]" {
			t.Errorf("Redis.Password.String() = %s, want [REDACTED]", cfg.Redis.Password.String())
		}
	})

	t.Run("datadog agent host enables datadog", func(t *testing.T) {
		cfg := DefaultConfig()
		applyEnvOverrides(cfg, mapEnv(map[string]string{
			"DD_AGENT_HOST":           "dd-agent",
			"DD_ENV":                  "staging",
			"BULWARK_DATADOG_ENABLED": "false",
		}))

		if !cfg.Metrics.DataDog.Enabled {
			t.Error("DataDog.Enabled = false, want true")
		}
		if cfg.Metrics.DataDog.AgentHost != "dd-agent" {
			t.Errorf("AgentHost = %s, want dd-agent", cfg.Metrics.DataDog.AgentHost)
		}
		if len(cfg.Metrics.DataDog.Tags) != 1 || cfg.Metrics.DataDog.Tags[0] != "env:staging" {
			t.Errorf("Tags = %v, want [env:staging]", cfg.Metrics.DataDog.Tags)
		}
	})
}

func TestApplyCacheEnv(t *testing.T) {
	base := DefaultCacheOptions()

	t.Run("applies parseable values", func(t *testing.T) {
		opts := ApplyCacheEnv("api-response", base, mapEnv(map[string]string{
			"BULWARK_CACHE_API_RESPONSE_MAX_SIZE":         "250",
			"BULWARK_CACHE_API_RESPONSE_TTL":              "90s",
			"BULWARK_CACHE_API_RESPONSE_MEMORY_THRESHOLD": "2048",
			"BULWARK_CACHE_API_RESPONSE_DEBUG":            "on",
		}))

		if opts.MaxSize != 250 {
			t.Errorf("MaxSize = %d, want 250", opts.MaxSize)
		}
		if opts.DefaultTTL != 90*time.Second {
			t.Errorf("DefaultTTL = %v, want 90s", opts.DefaultTTL)
		}
		if opts.MemoryThreshold != 2048 {
			t.Errorf("MemoryThreshold = %d, want 2048", opts.MemoryThreshold)
		}
		if !opts.Debug {
			t.Error("Debug = false, want true")
		}
	})

	t.Run("ignores invalid values", func(t *testing.T) {
		opts := ApplyCacheEnv("search", base, mapEnv(map[string]string{
			"BULWARK_CACHE_SEARCH_MAX_SIZE":         "lots",
			"BULWARK_CACHE_SEARCH_TTL":              "-5s",
			"BULWARK_CACHE_SEARCH_CLEANUP_INTERVAL": "soon",
		}))

		if opts != base {
			t.Errorf("ApplyCacheEnv() = %+v, want unchanged %+v", opts, base)
		}
	})
}

func TestCacheEnvKey(t *testing.T) {
	if got := CacheEnvKey("api-response", "TTL"); got != "BULWARK_CACHE_API_RESPONSE_TTL" {
		t.Errorf("CacheEnvKey() = %s", got)
	}
}

func TestCacheOptionsMerge(t *testing.T) {
	base := DefaultCacheOptions()
	merged := base.Merge(CacheOptions{MaxSize: 3, Debug: true})

	if merged.MaxSize != 3 {
		t.Errorf("MaxSize = %d, want 3", merged.MaxSize)
	}
	if merged.DefaultTTL != base.DefaultTTL {
		t.Errorf("DefaultTTL = %v, want %v", merged.DefaultTTL, base.DefaultTTL)
	}
	if !merged.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"name required", func(c *Config) { c.Name = "" }, "name"},
		{"failure threshold", func(c *Config) { c.CircuitBreaker.FailureThreshold = 0 }, "failureThreshold"},
		{"success threshold", func(c *Config) { c.CircuitBreaker.SuccessThreshold = -1 }, "successThreshold"},
		{"monitoring period", func(c *Config) { c.CircuitBreaker.MonitoringPeriod = 0 }, "monitoringPeriod"},
		{"timeout", func(c *Config) { c.CircuitBreaker.Timeout = 0 }, "timeout"},
		{"reset threshold", func(c *Config) { c.CircuitBreaker.ResetThreshold = 0 }, "resetThreshold"},
		{"backoff multiplier", func(c *Config) { c.CircuitBreaker.BackoffMultiplier = 1 }, "backoffMultiplier"},
		{"max timeout", func(c *Config) { c.CircuitBreaker.MaxTimeout = time.Second }, "maxTimeout"},
		{"period below window", func(c *Config) { c.RateLimit.Period = time.Second }, "period"},
		{"max requests", func(c *Config) { c.RateLimit.MaxRequests = 0 }, "maxRequests"},
		{"warning threshold", func(c *Config) { c.Monitoring.RateLimitWarningThreshold = 1.5 }, "rateLimitWarningThreshold"},
		{"stale shards", func(c *Config) { c.Stale.Enabled = true; c.Stale.Shards = 3 }, "shards"},
		{"redis address", func(c *Config) { c.Redis.Enabled = true; c.Redis.Address = "" }, "address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if !types.IsConfigError(err) {
				t.Fatalf("Validate() error = %v, want ConfigError", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.field)
			}
		})
	}

	t.Run("disabled components skip validation", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CircuitBreaker.Enabled = false
		cfg.CircuitBreaker.BackoffMultiplier = 0
		cfg.RateLimit.Enabled = false
		cfg.RateLimit.Period = 0
		cfg.Monitoring.Enabled = false
		cfg.Monitoring.MaxStoredAlerts = 0

		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v, want nil", err)
		}
	})
}

func TestRateLimitWithBurstDefaults(t *testing.T) {
	tests := []struct {
		name        string
		cfg         RateLimitConfig
		burst       int
		burstWindow time.Duration
	}{
		{"ten percent", RateLimitConfig{MaxRequests: 100, Window: 10 * time.Second}, 10, 100 * time.Second},
		{"at least one", RateLimitConfig{MaxRequests: 5, Window: time.Second}, 1, 10 * time.Second},
		{"window capped at ten minutes", RateLimitConfig{MaxRequests: 50, Window: 5 * time.Minute}, 5, 10 * time.Minute},
		{"explicit values kept", RateLimitConfig{MaxRequests: 50, Window: time.Second, BurstSize: 7, BurstWindow: 3 * time.Second}, 7, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.WithBurstDefaults()
			if got.BurstSize != tt.burst {
				t.Errorf("BurstSize = %d, want %d", got.BurstSize, tt.burst)
			}
			if got.BurstWindow != tt.burstWindow {
				t.Errorf("BurstWindow = %v, want %v", got.BurstWindow, tt.burstWindow)
			}
		})
	}
}

func TestParseHelpers(t *testing.T) {
	t.Run("parseBool", func(t *testing.T) {
		for input, want := range map[string]bool{"true": true, "ON": true, " 1 ": true, "no": false, "x": false} {
			if got := parseBool(input); got != want {
				t.Errorf("parseBool(%q) = %v, want %v", input, got, want)
			}
		}
	})

	t.Run("parseFloat", func(t *testing.T) {
		if got := parseFloat("2.5", 1); got != 2.5 {
			t.Errorf("parseFloat(2.5) = %v", got)
		}
		if got := parseFloat("x", 1.25); got != 1.25 {
			t.Errorf("parseFloat(x) = %v, want default", got)
		}
	})

	t.Run("parseDuration", func(t *testing.T) {
		defaultDur := 5 * time.Second
		tests := map[string]time.Duration{
			"30s":     30 * time.Second,
			"100ms":   100 * time.Millisecond,
			"60":      60 * time.Second,
			"invalid": defaultDur,
			"":        defaultDur,
		}
		for input, want := range tests {
			if got := parseDuration(input, defaultDur); got != want {
				t.Errorf("parseDuration(%q) = %v, want %v", input, got, want)
			}
		}
	})
}

func TestSecretString(t *testing.T) {
	secret := NewSecretString("s3cr3t")

	data, err := json.Marshal(struct {
		Password SecretString `json:"password"`
	}{secret})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if strings.Contains(string(data), "s3cr3t") {
		t.Errorf("JSON leaked secret: %s", data)
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("connecting", "password", secret)
	if strings.Contains(buf.String(), "s3cr3t") {
		t.Errorf("log leaked secret: %s", buf.String())
	}

	var decoded SecretString
	if err := json.Unmarshal([]byte(`"from-json"`), &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Value() != "from-json" {
		t.Errorf("Value() = %s, want from-json", decoded.Value())
	}
	if !NewSecretString("").IsEmpty() {
		t.Error("IsEmpty() = false for empty secret")
	}
}
