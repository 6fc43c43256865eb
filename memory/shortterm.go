package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by ShortTermStore.Get for absent keys.
var ErrCacheMiss = errors.New("cache miss")

// ShortTermConfig configures the Redis-backed short-term store.
type ShortTermConfig struct {
	Addr       string        `yaml:"addr" json:"addr"`
	Password   string        `yaml:"password" json:"password"`
	DB         int           `yaml:"db" json:"db"`
	Prefix     string        `yaml:"prefix" json:"prefix"`
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`
	PoolSize   int           `yaml:"pool_size" json:"pool_size"`
}

// DefaultShortTermConfig returns the stock short-term settings.
func DefaultShortTermConfig() ShortTermConfig {
	return ShortTermConfig{
		Addr:       "localhost:6379",
		Prefix:     "cortex:memory:",
		DefaultTTL: time.Hour,
		PoolSize:   10,
	}
}

// ShortTermStore is a prefix-scoped JSON key/value cache on Redis.
type ShortTermStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewShortTermStore connects to Redis and verifies the connection.
func NewShortTermStore(cfg ShortTermConfig, logger *zap.Logger) (*ShortTermStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultShortTermConfig().Prefix
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultShortTermConfig().DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ShortTermStore{
		client:     client,
		prefix:     cfg.Prefix,
		defaultTTL: cfg.DefaultTTL,
		logger:     logger.With(zap.String("component", "short_term_memory")),
	}, nil
}

// Save stores a JSON-serialized value. A non-positive ttl uses the default.
func (s *ShortTermStore) Save(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		s.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Get loads a value into dest, returning ErrCacheMiss for absent or
// unparseable entries.
func (s *ShortTermStore) Get(ctx context.Context, key string, dest any) error {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("cache get failed: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return ErrCacheMiss
	}
	return nil
}

// Delete removes one key.
func (s *ShortTermStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Clear removes every key under the given session prefix.
func (s *ShortTermStore) Clear(ctx context.Context, sessionID string) error {
	pattern := fmt.Sprintf("%s%s:*", s.prefix, sessionID)
	keys, err := s.client.Keys(ctx, pattern).Result()
	if err != nil {
		return fmt.Errorf("cache scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}
	return nil
}

// Exists reports whether a key is present.
func (s *ShortTermStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists check failed: %w", err)
	}
	return n == 1, nil
}

// TTL returns the remaining lifetime of a key.
func (s *ShortTermStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, s.prefix+key).Result()
}

// ExtendTTL resets a key's lifetime.
func (s *ShortTermStore) ExtendTTL(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.prefix+key, ttl).Err()
}

// Ping checks the Redis connection.
func (s *ShortTermStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (s *ShortTermStore) Close() error {
	return s.client.Close()
}
