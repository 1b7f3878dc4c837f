package bulwark

import (
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/bulwark/internal/types"
)

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	logger    *slog.Logger
	publisher types.Publisher
	redis     redis.UniversalClient
	now       func() time.Time
	getenv    func(string) string
}

// WithLogger routes all client logging to logger. A *slog.Logger is used
// directly; any other Logger is adapted.
func WithLogger(logger Logger) Option {
	return func(o *clientOptions) {
		switch l := logger.(type) {
		case nil:
		case *slog.Logger:
			o.logger = l
		default:
			o.logger = slog.New(slogAdapter{logger: l})
		}
	}
}

// WithPublisher adds a publisher that receives alerts, summaries and request
// metrics alongside the ones enabled in the configuration. Shutdown closes it.
func WithPublisher(publisher Publisher) Option {
	return func(o *clientOptions) {
		o.publisher = publisher
	}
}

// WithRedisClient shares limiter windows through an existing client instead
// of dialing one from the configuration. Shutdown leaves it open.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *clientOptions) {
		o.redis = client
	}
}

// WithClock replaces time.Now for caches, breakers, the limiter and the monitor.
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		o.now = now
	}
}

// WithEnvLookup replaces os.Getenv for per-cache-type environment overrides.
func WithEnvLookup(getenv func(string) string) Option {
	return func(o *clientOptions) {
		o.getenv = getenv
	}
}
