package tokenstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/truematch/internal/log"
	"github.com/felixgeelhaar/truematch/internal/metrics"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "truematch:access_token"

// RedisStore keeps the token under a single Redis key so several client
// processes on one workstation share the same credential. Every operation
// runs under its own timeout since the Store contract has no context.
type RedisStore struct {
	client  redis.UniversalClient
	key     string
	ttl     time.Duration
	timeout time.Duration
	logger  *log.Logger
	metrics *metrics.Metrics
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires the stored token after ttl. Zero keeps it until cleared.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithOpTimeout bounds each Redis round-trip.
func WithOpTimeout(d time.Duration) RedisOption {
	return func(s *RedisStore) { s.timeout = d }
}

// WithRedisLogger sets the logger used for fail-soft warnings.
func WithRedisLogger(l *log.Logger) RedisOption {
	return func(s *RedisStore) { s.logger = l }
}

// WithRedisMetrics records store operations.
func WithRedisMetrics(m *metrics.Metrics) RedisOption {
	return func(s *RedisStore) { s.metrics = m }
}

// NewRedisStore creates a store using client and key.
func NewRedisStore(client redis.UniversalClient, key string, opts ...RedisOption) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	s := &RedisStore{
		client:  client,
		key:     key,
		timeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.OrDefault(s.logger).With("component", "tokenstore", "backend", "redis")
	return s
}

// Save implements Store.
func (s *RedisStore) Save(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.client.Set(ctx, s.key, token, s.ttl).Err()
	s.metrics.RecordStoreOp("redis", "save", err == nil)
	if err != nil {
		s.logger.Warn("failed to persist access token", "key", s.key, "error", err)
		return
	}
	s.logger.Debug("access token saved", "token_fp", Fingerprint(token))
}

// Read implements Store.
func (s *RedisStore) Read() (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	token, err := s.client.Get(ctx, s.key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		s.metrics.RecordStoreOp("redis", "read", true)
		return "", false
	case err != nil:
		s.metrics.RecordStoreOp("redis", "read", false)
		s.logger.Warn("failed to read access token", "key", s.key, "error", err)
		return "", false
	}

	s.metrics.RecordStoreOp("redis", "read", true)
	return token, token != ""
}

// Clear implements Store.
func (s *RedisStore) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.client.Del(ctx, s.key).Err()
	s.metrics.RecordStoreOp("redis", "clear", err == nil)
	if err != nil {
		s.logger.Warn("failed to remove access token", "key", s.key, "error", err)
	}
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
