package cache

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, time.Minute)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte(`{"id":1}`)
	require.NoError(t, s.Set(ctx, OrderKey(0, 1), value, 0))
	value[0] = 'x'

	got, err := s.Get(ctx, OrderKey(0, 1))
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(got))

	require.NoError(t, s.Delete(ctx, OrderKey(0, 1)))
	_, err = s.Get(ctx, OrderKey(0, 1))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, time.Minute)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, s.Set(ctx, "c", []byte("3"), 0))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestMemoryStore_RejectsEmptyKey(t *testing.T) {
	assert.Error(t, NewMemoryStore(1, time.Minute).Set(context.Background(), "", []byte("x"), 0))
}

func TestNewStore_Drivers(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	logger := zap.NewNop()

	s, err := NewStore(lc, config.Config{Cache: config.Cache{Driver: "noop"}}, logger)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	s, err = NewStore(lc, config.Config{Cache: config.Cache{Driver: "memory", MaxEntries: 4, DefaultTTL: time.Minute}}, logger)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	_, err = NewStore(lc, config.Config{Cache: config.Cache{Driver: "memcached"}}, logger)
	assert.Error(t, err)
}

func TestMemoryStore_DeleteMany(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(8, time.Minute)
	for _, key := range OrderKeys(0, 1, 2, 3) {
		require.NoError(t, s.Set(ctx, key, []byte("x"), 0))
	}

	require.NoError(t, s.Delete(ctx, OrderKeys(0, 1, 3)...))

	_, err := s.Get(ctx, OrderKey(0, 1))
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = s.Get(ctx, OrderKey(0, 2))
	assert.NoError(t, err)
	_, err = s.Get(ctx, OrderKey(0, 3))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	s := newRedisStoreWithClient(client, time.Minute)

	_, err := s.Get(ctx, OrderKey(0, 1))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	_, err = s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, s.Set(ctx, "", []byte("x"), 0))
	// nothing to delete, so redis is never contacted
	assert.NoError(t, s.Delete(ctx, "", ""))

	_, err = s.Counter(ctx, "orders:epoch")
	assert.Error(t, err)
	_, err = s.Incr(ctx, "")
	assert.Error(t, err)
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "orders:0:42", OrderKey(0, 42))
	assert.Equal(t, []string{"orders:3:1", "orders:3:2"}, OrderKeys(3, 1, 2))
	assert.Empty(t, OrderKeys(3))
}

func TestMemoryStore_EpochSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(1, time.Minute)

	epoch, err := Epoch(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, epoch)

	next, err := NextEpoch(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))

	epoch, err = Epoch(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, int64(1), epoch)
	assert.NotEqual(t, OrderKey(0, 7), OrderKey(epoch, 7))
}

func TestNoopStore_EpochIsZero(t *testing.T) {
	ctx := context.Background()
	var s Store = noopStore{}

	n, err := NextEpoch(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = Epoch(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, n)
}
