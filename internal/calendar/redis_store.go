package calendar

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisKey is the key holding the serialized CacheFile
const DefaultRedisKey = "holiday-calendar:cache"

// RedisStore implements Store on a single Redis string key. SET replaces the
// value atomically, so readers see either the old or the new CacheFile.
type RedisStore struct {
	redis  *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisStore creates a store backed by the given client
func NewRedisStore(redisClient *redis.Client, key string, logger *zap.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		redis:  redisClient,
		key:    key,
		logger: logger,
	}
}

// Backend returns the backend name used in metrics
func (rs *RedisStore) Backend() string {
	return "redis"
}

// Load reads the CacheFile from Redis
func (rs *RedisStore) Load(ctx context.Context) (*CacheFile, error) {
	data, err := rs.redis.Get(ctx, rs.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewCacheFile(), nil
		}
		StoreErrors.WithLabelValues(rs.Backend(), "load").Inc()
		return NewCacheFile(), fmt.Errorf("redis get %s: %w", rs.key, err)
	}

	cf, err := decodeCacheFile(data)
	if err != nil {
		StoreCorruptions.WithLabelValues(rs.Backend()).Inc()
		rs.logger.Warn("Corrupt cache value in redis, ignoring",
			zap.String("key", rs.key),
			zap.Error(err))
		return NewCacheFile(), &CorruptStoreError{Path: "redis:" + rs.key, Err: err}
	}

	return cf, nil
}

// Save writes the CacheFile to Redis without expiry
func (rs *RedisStore) Save(ctx context.Context, cf *CacheFile) error {
	data, err := encodeCacheFile(cf)
	if err != nil {
		StoreErrors.WithLabelValues(rs.Backend(), "save").Inc()
		return err
	}

	if err := rs.redis.Set(ctx, rs.key, data, 0).Err(); err != nil {
		StoreErrors.WithLabelValues(rs.Backend(), "save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	rs.logger.Debug("Cache saved to redis",
		zap.String("key", rs.key),
		zap.Int("bytes", len(data)))

	return nil
}
