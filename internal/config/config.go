// Package config provides configuration management for bulwark.
package config

import (
	"time"

	"github.com/LavishGent/bulwark/internal/types"
)

// Config contains all configuration for a bulwark client.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	// Name identifies the protected upstream in logs, alerts and limiter keys.
	Name           string               `json:"name"`
	Cache          CacheConfig          `json:"cache"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	RateLimit      RateLimitConfig      `json:"rateLimit"`
	Monitoring     MonitoringConfig     `json:"monitoring"`
	Stale          StaleConfig          `json:"stale"`
	Redis          RedisConfig          `json:"redis"`
	Metrics        MetricsConfig        `json:"metrics"`
}

// CacheConfig selects the response cache used in front of the upstream.
type CacheConfig struct {
	// Type is the factory preset name (default, api-response, search, metadata, session).
	Type string `json:"type"`
	// Overrides are applied on top of the preset and environment. Zero fields are ignored.
	Overrides CacheOptions `json:"overrides"`
	Enabled   bool         `json:"enabled"`
}

// CacheOptions configures one TTL/LRU cache instance.
type CacheOptions struct {
	DefaultTTL      time.Duration `json:"defaultTTL"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	MemoryThreshold int64         `json:"memoryThreshold"`
	MaxSize         int           `json:"maxSize"`
	Debug           bool          `json:"debug"`
}

// CircuitBreakerConfig contains configuration for the circuit breaker pattern.
type CircuitBreakerConfig struct {
	Enabled           bool          `json:"enabled"`
	FailureThreshold  int           `json:"failureThreshold"`
	SuccessThreshold  int           `json:"successThreshold"`
	ResetThreshold    int           `json:"resetThreshold"`
	MonitoringPeriod  time.Duration `json:"monitoringPeriod"`
	Timeout           time.Duration `json:"timeout"`
	MaxTimeout        time.Duration `json:"maxTimeout"`
	BackoffMultiplier float64       `json:"backoffMultiplier"`
}

// RateLimitConfig contains configuration for the sliding-window rate limiter.
type RateLimitConfig struct {
	Enabled     bool          `json:"enabled"`
	MaxRequests int           `json:"maxRequests"`
	Period      time.Duration `json:"period"`
	Window      time.Duration `json:"window"`
	// BurstSize and BurstWindow are reported but not enforced.
	BurstSize   int           `json:"burstSize"`
	BurstWindow time.Duration `json:"burstWindow"`
}

// MonitoringConfig contains configuration for the alert monitor.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type MonitoringConfig struct {
	Enabled                   bool          `json:"enabled"`
	RateLimitWarningThreshold float64       `json:"rateLimitWarningThreshold"`
	FailureRateThreshold      float64       `json:"failureRateThreshold"`
	ResponseTimeThreshold     time.Duration `json:"responseTimeThreshold"`
	// ConsoleAlerts logs every recorded alert through slog.
	ConsoleAlerts bool `json:"consoleAlerts"`
	// EmitEvents forwards alerts and summaries to the configured publishers.
	EmitEvents             bool          `json:"emitEvents"`
	MaxStoredAlerts        int           `json:"maxStoredAlerts"`
	AlertAggregationWindow time.Duration `json:"alertAggregationWindow"`
	MetricsInterval        time.Duration `json:"metricsInterval"`
}

// StaleConfig configures the last-good response store served when the
// upstream cannot be called.
type StaleConfig struct {
	LifeWindow   time.Duration `json:"lifeWindow"`
	CleanWindow  time.Duration `json:"cleanWindow"`
	MaxSizeMB    int           `json:"maxSizeMB"`
	Shards       int           `json:"shards"`
	MaxEntrySize int           `json:"maxEntrySize"`
	Enabled      bool          `json:"enabled"`
}

// RedisConfig contains configuration for the shared rate-limit window store.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	DialTimeout  time.Duration `json:"dialTimeout"`
	ReadTimeout  time.Duration `json:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout"`
	Password     SecretString  `json:"password"`
	Address      string        `json:"address"`
	KeyPrefix    string        `json:"keyPrefix"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"poolSize"`
	Enabled      bool          `json:"enabled"`
	EnableTLS    bool          `json:"enableTLS"`
}

// MetricsConfig contains configuration for metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	DataDog DataDogConfig `json:"datadog"`
	OTel    OTelConfig    `json:"otel"`
	Enabled bool          `json:"enabled"`
}

// DataDogConfig contains configuration for DataDog metrics publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}

// OTelConfig enables publishing through the global OpenTelemetry meter provider.
type OTelConfig struct {
	MeterName string `json:"meterName"`
	Enabled   bool   `json:"enabled"`
}

func invalid(component, field, reason string) error {
	return types.NewConfigError(component, field, reason)
}
