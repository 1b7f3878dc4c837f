package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment variable read by bulwark.
const EnvPrefix = "BULWARK_"

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	env := func(name string) string { return getenv(EnvPrefix + name) }

	if v := env("NAME"); v != "" {
		cfg.Name = v
	}

	if v := env("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = parseBool(v)
	}
	if v := env("CACHE_TYPE"); v != "" {
		cfg.Cache.Type = strings.TrimSpace(v)
	}

	if v := env("CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := env("CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}
	if v := env("CIRCUIT_BREAKER_SUCCESS_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.SuccessThreshold = parseInt(v, cfg.CircuitBreaker.SuccessThreshold)
	}
	if v := env("CIRCUIT_BREAKER_RESET_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.ResetThreshold = parseInt(v, cfg.CircuitBreaker.ResetThreshold)
	}
	if v := env("CIRCUIT_BREAKER_MONITORING_PERIOD"); v != "" {
		cfg.CircuitBreaker.MonitoringPeriod = parseDuration(v, cfg.CircuitBreaker.MonitoringPeriod)
	}
	if v := env("CIRCUIT_BREAKER_TIMEOUT"); v != "" {
		cfg.CircuitBreaker.Timeout = parseDuration(v, cfg.CircuitBreaker.Timeout)
	}
	if v := env("CIRCUIT_BREAKER_MAX_TIMEOUT"); v != "" {
		cfg.CircuitBreaker.MaxTimeout = parseDuration(v, cfg.CircuitBreaker.MaxTimeout)
	}
	if v := env("CIRCUIT_BREAKER_BACKOFF_MULTIPLIER"); v != "" {
		cfg.CircuitBreaker.BackoffMultiplier = parseFloat(v, cfg.CircuitBreaker.BackoffMultiplier)
	}

	if v := env("RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := env("RATE_LIMIT_MAX_REQUESTS"); v != "" {
		cfg.RateLimit.MaxRequests = parseInt(v, cfg.RateLimit.MaxRequests)
	}
	if v := env("RATE_LIMIT_PERIOD"); v != "" {
		cfg.RateLimit.Period = parseDuration(v, cfg.RateLimit.Period)
	}
	if v := env("RATE_LIMIT_WINDOW"); v != "" {
		cfg.RateLimit.Window = parseDuration(v, cfg.RateLimit.Window)
	}
	if v := env("RATE_LIMIT_BURST_SIZE"); v != "" {
		cfg.RateLimit.BurstSize = parseInt(v, cfg.RateLimit.BurstSize)
	}

	if v := env("MONITORING_ENABLED"); v != "" {
		cfg.Monitoring.Enabled = parseBool(v)
	}
	if v := env("MONITORING_CONSOLE_ALERTS"); v != "" {
		cfg.Monitoring.ConsoleAlerts = parseBool(v)
	}
	if v := env("MONITORING_METRICS_INTERVAL"); v != "" {
		cfg.Monitoring.MetricsInterval = parseDuration(v, cfg.Monitoring.MetricsInterval)
	}
	if v := env("MONITORING_MAX_STORED_ALERTS"); v != "" {
		cfg.Monitoring.MaxStoredAlerts = parseInt(v, cfg.Monitoring.MaxStoredAlerts)
	}
	if v := env("MONITORING_ALERT_AGGREGATION_WINDOW"); v != "" {
		cfg.Monitoring.AlertAggregationWindow = parseDuration(v, cfg.Monitoring.AlertAggregationWindow)
	}
	if v := env("MONITORING_RESPONSE_TIME_THRESHOLD"); v != "" {
		cfg.Monitoring.ResponseTimeThreshold = parseDuration(v, cfg.Monitoring.ResponseTimeThreshold)
	}

	if v := env("STALE_ENABLED"); v != "" {
		cfg.Stale.Enabled = parseBool(v)
	}
	if v := env("STALE_LIFE_WINDOW"); v != "" {
		cfg.Stale.LifeWindow = parseDuration(v, cfg.Stale.LifeWindow)
	}

	if v := env("REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := env("REDIS_ADDRESS"); v != "" {
		cfg.Redis.Address = v
	}
	if v := env("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = NewSecretString(v)
	}
	if v := env("REDIS_DB"); v != "" {
		cfg.Redis.DB = parseInt(v, cfg.Redis.DB)
	}
	if v := env("REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
	if v := env("REDIS_ENABLE_TLS"); v != "" {
		cfg.Redis.EnableTLS = parseBool(v)
	}

	if v := env("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := env("OTEL_ENABLED"); v != "" {
		cfg.Metrics.OTel.Enabled = parseBool(v)
	}

	if v := getenv("DD_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
		cfg.Metrics.DataDog.Enabled = true
	}
	if v := getenv("DD_DOGSTATSD_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
	if v := getenv("DD_SERVICE"); v != "" {
		cfg.Metrics.DataDog.Prefix = v
	}
	if v := getenv("DD_ENV"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "env:"+v)
	}
	if v := getenv("DD_VERSION"); v != "" {
		cfg.Metrics.DataDog.Tags = append(cfg.Metrics.DataDog.Tags, "version:"+v)
	}

	if v := env("DATADOG_ENABLED"); v != "" {
		if getenv("DD_AGENT_HOST") == "" {
			cfg.Metrics.DataDog.Enabled = parseBool(v)
		}
	}
}

// CacheEnvKey returns the environment variable name for a cache-type setting,
// e.g. CacheEnvKey("api-response", "MAX_SIZE") = "BULWARK_CACHE_API_RESPONSE_MAX_SIZE".
func CacheEnvKey(cacheType, setting string) string {
	name := strings.ToUpper(strings.ReplaceAll(cacheType, "-", "_"))
	return EnvPrefix + "CACHE_" + name + "_" + setting
}

// ApplyCacheEnv overlays per-type environment settings on opts.
// Values that do not parse, or parse to a non-positive number, keep the value from opts.
func ApplyCacheEnv(cacheType string, opts CacheOptions, getenv func(string) string) CacheOptions {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv(CacheEnvKey(cacheType, "MAX_SIZE")); v != "" {
		if n := parseInt(v, opts.MaxSize); n > 0 {
			opts.MaxSize = n
		}
	}
	if v := getenv(CacheEnvKey(cacheType, "TTL")); v != "" {
		if d := parseDuration(v, opts.DefaultTTL); d > 0 {
			opts.DefaultTTL = d
		}
	}
	if v := getenv(CacheEnvKey(cacheType, "CLEANUP_INTERVAL")); v != "" {
		if d := parseDuration(v, opts.CleanupInterval); d > 0 {
			opts.CleanupInterval = d
		}
	}
	if v := getenv(CacheEnvKey(cacheType, "MEMORY_THRESHOLD")); v != "" {
		if n := parseInt64(v, opts.MemoryThreshold); n > 0 {
			opts.MemoryThreshold = n
		}
	}
	if v := getenv(CacheEnvKey(cacheType, "DEBUG")); v != "" {
		opts.Debug = parseBool(v)
	}

	return opts
}

// Merge overlays the non-zero fields of override onto base.
func (base CacheOptions) Merge(override CacheOptions) CacheOptions {
	if override.MaxSize > 0 {
		base.MaxSize = override.MaxSize
	}
	if override.DefaultTTL > 0 {
		base.DefaultTTL = override.DefaultTTL
	}
	if override.CleanupInterval > 0 {
		base.CleanupInterval = override.CleanupInterval
	}
	if override.MemoryThreshold > 0 {
		base.MemoryThreshold = override.MemoryThreshold
	}
	if override.Debug {
		base.Debug = true
	}
	return base
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseInt64(s string, defaultVal int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseFloat(s string, defaultVal float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}
