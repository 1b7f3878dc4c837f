package config

import "time"

const (
	DefaultCacheMaxSize         = 1000
	DefaultCacheTTL             = 5 * time.Minute
	DefaultCacheCleanupInterval = time.Minute
	DefaultCacheMemoryThreshold = 50 * 1024 * 1024
)

// DefaultCacheOptions returns the base cache options every preset starts from.
func DefaultCacheOptions() CacheOptions {
	return CacheOptions{
		MaxSize:         DefaultCacheMaxSize,
		DefaultTTL:      DefaultCacheTTL,
		CleanupInterval: DefaultCacheCleanupInterval,
		MemoryThreshold: DefaultCacheMemoryThreshold,
	}
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name: "upstream",
		Cache: CacheConfig{
			Enabled: true,
			Type:    "api-response",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:           true,
			FailureThreshold:  5,
			SuccessThreshold:  3,
			ResetThreshold:    10,
			MonitoringPeriod:  time.Minute,
			Timeout:           30 * time.Second,
			MaxTimeout:        5 * time.Minute,
			BackoffMultiplier: 2.0,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 60,
			Period:      time.Minute,
			Window:      10 * time.Second,
		},
		Monitoring: MonitoringConfig{
			Enabled:                   true,
			RateLimitWarningThreshold: 0.8,
			FailureRateThreshold:      0.5,
			ResponseTimeThreshold:     5 * time.Second,
			ConsoleAlerts:             true,
			EmitEvents:                true,
			MaxStoredAlerts:           1000,
			AlertAggregationWindow:    time.Minute,
			MetricsInterval:           time.Minute,
		},
		Stale: StaleConfig{
			Enabled:      false,
			LifeWindow:   24 * time.Hour,
			CleanWindow:  5 * time.Minute,
			MaxSizeMB:    64,
			Shards:       64,
			MaxEntrySize: 64 * 1024,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Address:      "localhost:6379",
			KeyPrefix:    "bulwark:ratelimit:",
			PoolSize:     10,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "bulwark",
				Tags:      []string{},
			},
			OTel: OTelConfig{
				Enabled:   false,
				MeterName: "github.com/LavishGent/bulwark",
			},
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests.
// Background loops run rarely and nothing talks to the network.
func ForTesting() *Config {
	cfg := DefaultConfig()
	cfg.Name = "test-upstream"
	cfg.Cache.Overrides = CacheOptions{
		MaxSize:         100,
		CleanupInterval: time.Hour,
		MemoryThreshold: 1024 * 1024,
	}
	cfg.CircuitBreaker.FailureThreshold = 3
	cfg.CircuitBreaker.SuccessThreshold = 1
	cfg.CircuitBreaker.Timeout = time.Second
	cfg.CircuitBreaker.MaxTimeout = 4 * time.Second
	cfg.RateLimit.MaxRequests = 10
	cfg.RateLimit.Period = time.Second
	cfg.RateLimit.Window = 100 * time.Millisecond
	cfg.Monitoring.ConsoleAlerts = false
	cfg.Monitoring.MetricsInterval = time.Hour
	cfg.Stale.MaxSizeMB = 8
	cfg.Stale.Shards = 8
	cfg.Metrics.Enabled = false
	return cfg
}
