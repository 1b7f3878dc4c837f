package resilience

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/bulwark/internal/config"
	"github.com/LavishGent/bulwark/internal/types"
)

// windowScript purges, sums and conditionally increments one identifier's
// hash in a single round trip. Windows starting at or before the cutoff are
// dropped, matching MemoryWindowStore.
//
// KEYS[1] table key
// ARGV[1] cutoff ms, ARGV[2] window ms, ARGV[3] limit, ARGV[4] consume, ARGV[5] ttl ms
//
// Returns {usage, consumed, oldest, newest, windows}; oldest/newest are -1 when empty.
var windowScript = redis.NewScript(`
local key = KEYS[1]
local cutoff = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local consume = ARGV[4] == "1"
local ttl = tonumber(ARGV[5])

local fields = redis.call('HGETALL', key)
local usage, windows, oldest, newest = 0, 0, -1, -1
for i = 1, #fields, 2 do
  local start = tonumber(fields[i])
  if start <= cutoff then
    redis.call('HDEL', key, fields[i])
  else
    usage = usage + tonumber(fields[i + 1])
    windows = windows + 1
    if oldest == -1 or start < oldest then oldest = start end
    if newest == -1 or start > newest then newest = start end
  end
end

local consumed = 0
if consume and usage < limit then
  if redis.call('HINCRBY', key, ARGV[2], 1) == 1 then
    windows = windows + 1
  end
  if oldest == -1 or window < oldest then oldest = window end
  if newest == -1 or window > newest then newest = window end
  consumed = 1
end
if ttl > 0 and windows > 0 then
  redis.call('PEXPIRE', key, ttl)
end

return {usage, consumed, oldest, newest, windows}
`)

// RedisWindowStore shares window tables between processes through Redis.
// Each identifier is one hash of window-start millis to counts.
type RedisWindowStore struct {
	client    redis.UniversalClient
	logger    *slog.Logger
	keyPrefix string
	ownClient bool
}

// NewRedisWindowStore connects using cfg and verifies the connection.
func NewRedisWindowStore(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*RedisWindowStore, error) {
	opts := &redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}

	s := NewRedisWindowStoreFromClient(client, cfg.KeyPrefix, logger)
	s.ownClient = true
	s.logger.Info("Connected to Redis window store", "address", cfg.Address, "db", cfg.DB)
	return s, nil
}

// NewRedisWindowStoreFromClient wraps an existing client. Close leaves the
// client open.
func NewRedisWindowStoreFromClient(client redis.UniversalClient, keyPrefix string, logger *slog.Logger) *RedisWindowStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisWindowStore{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger.With("component", "redis-window-store"),
	}
}

func (s *RedisWindowStore) key(identifier string) string {
	return s.keyPrefix + identifier
}

func (s *RedisWindowStore) Check(ctx context.Context, identifier string, req WindowRequest) (WindowState, error) {
	consume := "0"
	if req.Consume {
		consume = "1"
	}
	return s.run(ctx, identifier,
		req.Cutoff.UnixMilli(),
		req.Window.UnixMilli(),
		req.Limit,
		consume,
		req.TTL.Milliseconds(),
	)
}

func (s *RedisWindowStore) Snapshot(ctx context.Context, identifier string, cutoff time.Time) (WindowState, error) {
	return s.run(ctx, identifier, cutoff.UnixMilli(), 0, 0, "0", 0)
}

func (s *RedisWindowStore) run(ctx context.Context, identifier string, args ...any) (WindowState, error) {
	vals, err := windowScript.Run(ctx, s.client, []string{s.key(identifier)}, args...).Int64Slice()
	if err != nil {
		return WindowState{}, fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
	}
	if len(vals) != 5 {
		return WindowState{}, fmt.Errorf("%w: unexpected script reply of %d values", types.ErrStoreUnavailable, len(vals))
	}

	state := WindowState{
		Usage:    int(vals[0]),
		Consumed: vals[1] == 1,
		Windows:  int(vals[4]),
	}
	if vals[2] >= 0 {
		state.Oldest = time.UnixMilli(vals[2])
	}
	if vals[3] >= 0 {
		state.Newest = time.UnixMilli(vals[3])
	}
	return state, nil
}

// Reset deletes every table under the key prefix.
func (s *RedisWindowStore) Reset(ctx context.Context) error {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.keyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("%w: %w", types.ErrStoreUnavailable, err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	s.logger.Debug("Reset window tables", "deleted", deleted)
	return nil
}

func (s *RedisWindowStore) Close() error {
	if !s.ownClient {
		return nil
	}
	return s.client.Close()
}

// Client exposes the underlying client for health checks.
func (s *RedisWindowStore) Client() redis.UniversalClient {
	return s.client
}

var _ WindowStore = (*RedisWindowStore)(nil)
