package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
)

// redisStore namespaces every key under "bloom:" so the cache can share a
// Redis database with other services.
type redisStore struct {
	client     goredis.UniversalClient
	defaultTTL time.Duration
}

const redisNamespace = "bloom:"

func newRedisStoreWithClient(client goredis.UniversalClient, ttl time.Duration) *redisStore {
	return &redisStore{client: client, defaultTTL: ttl}
}

func newRedisStore(lc fx.Lifecycle, cfg config.Cache, logger *zap.Logger) (Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := newRedisStoreWithClient(client, cfg.DefaultTTL)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("ping redis: %w", err)
			}
			logger.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("closing redis cache")
			return client.Close()
		},
	})

	return store, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	res, err := s.client.Get(ctx, redisNamespace+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key is required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	return s.client.Set(ctx, redisNamespace+key, value, ttl).Err()
}

// Delete removes all keys with a single DEL.
func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	namespaced := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			namespaced = append(namespaced, redisNamespace+key)
		}
	}
	if len(namespaced) == 0 {
		return nil
	}
	return s.client.Del(ctx, namespaced...).Err()
}

// Counter reads an INCR-maintained key; a missing key counts as zero.
func (s *redisStore) Counter(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Get(ctx, redisNamespace+key).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, errors.New("cache key is required")
	}
	return s.client.Incr(ctx, redisNamespace+key).Result()
}
