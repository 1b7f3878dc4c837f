package bulwark

import (
	"github.com/LavishGent/bulwark/internal/cache"
	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/guard"
	"github.com/LavishGent/bulwark/internal/resilience"
	"github.com/LavishGent/bulwark/internal/types"
)

type (
	// Configuration is the root client configuration.
	Configuration = config.Config

	// Guard runs calls to one upstream through cache, limiter and breaker.
	Guard[V any] = guard.Guard[V]
	// Fetch calls the upstream.
	Fetch[V any] = guard.Fetch[V]
	// Result is the full outcome of Guard.Execute.
	Result[V any] = guard.Result[V]
	// Source says where a Result's value came from.
	Source = guard.Source
	// Cache is a TTL/LRU cache.
	Cache[V any] = cache.Cache[V]
	// CacheOptions configures one cache.
	CacheOptions = config.CacheOptions
	// CacheStats is a snapshot of one cache.
	CacheStats = cache.Stats

	// State is a circuit breaker state.
	State = resilience.State
	// BreakerMetrics is a snapshot of a circuit breaker.
	BreakerMetrics = resilience.Metrics
	// RateLimitResult is the outcome of a limiter check.
	RateLimitResult = resilience.RateLimitResult

	// Alert is one monitor alert.
	Alert = types.Alert
	// Publisher receives alerts, summaries and metrics.
	Publisher = types.Publisher
	// Logger provides logging operations.
	Logger = types.Logger
	// HealthStatus represents a health state.
	HealthStatus = types.HealthStatus
	// HealthReport is the monitor's health view.
	HealthReport = types.HealthReport
	// MonitorSummary is the periodic monitor snapshot.
	MonitorSummary = types.MonitorSummary
	// APIMetrics aggregates upstream request outcomes.
	APIMetrics = types.APIMetrics
)

const (
	SourceCache    = guard.SourceCache
	SourceUpstream = guard.SourceUpstream
	SourceStale    = guard.SourceStale
)

const (
	StateClosed   = resilience.StateClosed
	StateOpen     = resilience.StateOpen
	StateHalfOpen = resilience.StateHalfOpen
)

const (
	HealthStatusHealthy  = types.HealthStatusHealthy
	HealthStatusWarning  = types.HealthStatusWarning
	HealthStatusCritical = types.HealthStatusCritical
)

// Cache type presets.
const (
	CacheTypeDefault     = cache.TypeDefault
	CacheTypeAPIResponse = cache.TypeAPIResponse
	CacheTypeSearch      = cache.TypeSearch
	CacheTypeMetadata    = cache.TypeMetadata
	CacheTypeSession     = cache.TypeSession
)
