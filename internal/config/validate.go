package config

import "time"

const maxBurstWindow = 10 * time.Minute

// Validate checks if the configuration is valid.
// Disabled sections are not validated.
func (c *Config) Validate() error {
	if c.Name == "" {
		return invalid("client", "name", "is required")
	}

	if c.Cache.Enabled && c.Cache.Type == "" {
		return invalid("cache", "type", "is required when the cache is enabled")
	}

	if c.CircuitBreaker.Enabled {
		if err := c.CircuitBreaker.Validate(); err != nil {
			return err
		}
	}

	if c.RateLimit.Enabled {
		if err := c.RateLimit.Validate(); err != nil {
			return err
		}
	}

	if c.Monitoring.Enabled {
		if err := c.Monitoring.Validate(); err != nil {
			return err
		}
	}

	if c.Stale.Enabled {
		if err := c.Stale.Validate(); err != nil {
			return err
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return invalid("redis", "address", "is required when redis is enabled")
		}
		if c.Redis.PoolSize <= 0 {
			return invalid("redis", "poolSize", "must be positive")
		}
	}

	return nil
}

// Validate checks the options of a single cache.
func (o CacheOptions) Validate() error {
	if o.MaxSize <= 0 {
		return invalid("cache", "maxSize", "must be positive")
	}
	if o.DefaultTTL <= 0 {
		return invalid("cache", "defaultTTL", "must be positive")
	}
	if o.CleanupInterval < 0 {
		return invalid("cache", "cleanupInterval", "must not be negative")
	}
	if o.MemoryThreshold <= 0 {
		return invalid("cache", "memoryThreshold", "must be positive")
	}
	return nil
}

// Validate checks the circuit breaker thresholds and backoff settings.
func (c CircuitBreakerConfig) Validate() error {
	if c.FailureThreshold <= 0 {
		return invalid("circuit-breaker", "failureThreshold", "must be positive")
	}
	if c.SuccessThreshold <= 0 {
		return invalid("circuit-breaker", "successThreshold", "must be positive")
	}
	if c.MonitoringPeriod <= 0 {
		return invalid("circuit-breaker", "monitoringPeriod", "must be positive")
	}
	if c.Timeout <= 0 {
		return invalid("circuit-breaker", "timeout", "must be positive")
	}
	if c.ResetThreshold <= 0 {
		return invalid("circuit-breaker", "resetThreshold", "must be positive")
	}
	if c.BackoffMultiplier <= 1 {
		return invalid("circuit-breaker", "backoffMultiplier", "must be greater than 1")
	}
	if c.MaxTimeout < c.Timeout {
		return invalid("circuit-breaker", "maxTimeout", "must not be less than timeout")
	}
	return nil
}

// Validate checks the limiter period and window.
func (c RateLimitConfig) Validate() error {
	if c.MaxRequests <= 0 {
		return invalid("rate-limiter", "maxRequests", "must be positive")
	}
	if c.Window <= 0 {
		return invalid("rate-limiter", "window", "must be positive")
	}
	if c.Period < c.Window {
		return invalid("rate-limiter", "period", "must not be less than window")
	}
	if c.BurstSize < 0 {
		return invalid("rate-limiter", "burstSize", "must not be negative")
	}
	if c.BurstWindow < 0 {
		return invalid("rate-limiter", "burstWindow", "must not be negative")
	}
	return nil
}

// WithBurstDefaults fills unset burst fields: 10% of MaxRequests (at least 1)
// and min(10 x Window, 10m).
func (c RateLimitConfig) WithBurstDefaults() RateLimitConfig {
	if c.BurstSize == 0 {
		c.BurstSize = c.MaxRequests / 10
		if c.BurstSize < 1 {
			c.BurstSize = 1
		}
	}
	if c.BurstWindow == 0 {
		c.BurstWindow = min(10*c.Window, maxBurstWindow)
	}
	return c
}

// Validate checks monitor thresholds and intervals.
func (c MonitoringConfig) Validate() error {
	if c.RateLimitWarningThreshold <= 0 || c.RateLimitWarningThreshold > 1 {
		return invalid("monitor", "rateLimitWarningThreshold", "must be in (0, 1]")
	}
	if c.FailureRateThreshold <= 0 || c.FailureRateThreshold > 1 {
		return invalid("monitor", "failureRateThreshold", "must be in (0, 1]")
	}
	if c.ResponseTimeThreshold <= 0 {
		return invalid("monitor", "responseTimeThreshold", "must be positive")
	}
	if c.MaxStoredAlerts <= 0 {
		return invalid("monitor", "maxStoredAlerts", "must be positive")
	}
	if c.AlertAggregationWindow < 0 {
		return invalid("monitor", "alertAggregationWindow", "must not be negative")
	}
	if c.MetricsInterval <= 0 {
		return invalid("monitor", "metricsInterval", "must be positive")
	}
	return nil
}

// Validate checks the stale store sizing.
func (c StaleConfig) Validate() error {
	if c.LifeWindow <= 0 {
		return invalid("stale", "lifeWindow", "must be positive")
	}
	if c.MaxSizeMB <= 0 {
		return invalid("stale", "maxSizeMB", "must be positive")
	}
	if c.Shards <= 0 || (c.Shards&(c.Shards-1)) != 0 {
		return invalid("stale", "shards", "must be a positive power of 2")
	}
	return nil
}
