// Package bulwark protects calls to a rate-limited, occasionally failing
// upstream service.
//
// A Client owns the pieces: TTL/LRU response caches built from named presets,
// one circuit breaker per upstream with exponential backoff, a sliding-window
// rate limiter (in memory or shared through Redis), a stale store holding the
// last good response, and a monitor that turns their signals into alerts and
// a health status. Alerts and periodic summaries go to slog, DataDog and
// OpenTelemetry depending on configuration.
//
// # Quick Start
//
//	client, err := bulwark.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Shutdown(context.Background())
//
//	users, err := bulwark.NewGuard[User](client, "users-api", bulwark.CacheTypeAPIResponse)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	user, err := users.Do(ctx, "user:123", func(ctx context.Context) (User, error) {
//	    return fetchUser(ctx, "123")
//	})
//
// A Guard checks the cache first, then asks the rate limiter for admission,
// then runs the fetch through the circuit breaker. Every outcome is reported
// to the monitor. Successful responses are written back to the cache and the
// stale store.
//
// # Errors
//
// Refused calls return an *AdmissionError that matches ErrRateLimited or
// ErrCircuitOpen:
//
//	if bulwark.IsRateLimited(err) {
//	    wait, _ := bulwark.RetryAfter(err)
//	    ...
//	}
//
// Errors from the fetch function are returned unchanged. When the stale store
// is enabled and holds a value for the key, Do returns it instead of the
// error; Execute reports it with SourceStale and the original error.
//
// # Configuration
//
//	cfg := bulwark.Config()
//	cfg.RateLimit.MaxRequests = 60
//	cfg.Redis.Enabled = true
//	cfg.Redis.Address = "localhost:6379"
//	client, err := bulwark.NewFromConfig(cfg)
//
// Or load a JSON file with BULWARK_* environment overrides:
//
//	client, err := bulwark.NewFromFile("bulwark.json")
//
// Per cache type, BULWARK_CACHE_<TYPE>_<SETTING> overrides a preset, for
// example BULWARK_CACHE_SEARCH_TTL=90s.
//
// # Thread Safety
//
// Client, Guard and Cache are safe for concurrent use.
package bulwark
