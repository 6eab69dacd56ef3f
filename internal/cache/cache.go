package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
)

// Store caches serialised order documents. Delete accepts several keys so a
// history wipe evicts every order in one call. Counters never expire and are
// not subject to eviction.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Counter(ctx context.Context, key string) (int64, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore initialises the configured cache store (redis, memory or noop).
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.Cache.Driver {
	case "noop":
		logger.Info("cache disabled; using noop store")
		return noopStore{}, nil
	case "memory":
		logger.Info("using in-process cache", zap.Int("max_entries", cfg.Cache.MaxEntries))
		return NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.DefaultTTL), nil
	case "redis":
		return newRedisStore(lc, cfg.Cache, logger)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

const epochKey = "orders:epoch"

// Epoch returns the current order id epoch. Order ids restart after a
// history wipe, so every order key carries the epoch it was written in.
func Epoch(ctx context.Context, s Store) (int64, error) {
	return s.Counter(ctx, epochKey)
}

// NextEpoch starts a new epoch, orphaning every order key of the old one.
func NextEpoch(ctx context.Context, s Store) (int64, error) {
	return s.Incr(ctx, epochKey)
}

// OrderKey is the cache key of a single order document.
func OrderKey(epoch, id int64) string {
	return fmt.Sprintf("orders:%d:%d", epoch, id)
}

// OrderKeys returns the cache keys of the given order ids.
func OrderKeys(epoch int64, ids ...int64) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, OrderKey(epoch, id))
	}
	return keys
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (noopStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (noopStore) Delete(context.Context, ...string) error {
	return nil
}

func (noopStore) Counter(context.Context, string) (int64, error) {
	return 0, nil
}

func (noopStore) Incr(context.Context, string) (int64, error) {
	return 0, nil
}
