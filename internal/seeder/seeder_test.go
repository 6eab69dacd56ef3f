package seeder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/archive"
	"github.com/Additional-Code/bloom/internal/cache"
	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
	"github.com/Additional-Code/bloom/internal/messaging"
	repo "github.com/Additional-Code/bloom/internal/repository/order"
	"github.com/Additional-Code/bloom/internal/service/lifecycle"
	orderservice "github.com/Additional-Code/bloom/internal/service/order"
	"github.com/Additional-Code/bloom/internal/service/query"
)

func newSeeder(t *testing.T) (*Seeder, *repo.MemoryStore) {
	t.Helper()
	store := repo.NewMemoryStore()
	c := cache.NewMemoryStore(16, time.Minute)
	bus := messaging.NoopClient{}

	orders, err := orderservice.NewService(orderservice.Params{
		Store:     store,
		Cache:     c,
		Archiver:  archive.Noop{},
		Config:    config.Config{Orders: config.Orders{ClearSecret: "x"}},
		Logger:    zap.NewNop(),
		Publisher: bus,
	})
	require.NoError(t, err)
	lc, err := lifecycle.NewService(lifecycle.Params{Store: store, Cache: c, Publisher: bus, Logger: zap.NewNop()})
	require.NoError(t, err)

	return New(store, orders, lc, zap.NewNop()), store
}

func TestSeeder_Orders(t *testing.T) {
	ctx := context.Background()
	seed, store := newSeeder(t)

	n, err := seed.Orders(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(samples), n)

	orders, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, len(samples))

	counts := query.CountByStatus(orders)
	assert.Equal(t, 2, counts.Pending)
	assert.Equal(t, 1, counts.Completed)
	assert.Equal(t, 2, counts.Billed)

	for _, o := range orders {
		if o.OrderType == entity.OrderTypeTakeaway {
			assert.Empty(t, o.TableNumber)
		}
	}

	// ta1 269 + 2 × so3 129 + 3 × de1 49
	assert.True(t, decimal.NewFromInt(674).Equal(orders[3].TotalAmount), orders[3].TotalAmount.String())
}

func TestSeeder_SkipsPopulatedStore(t *testing.T) {
	ctx := context.Background()
	seed, store := newSeeder(t)

	_, err := seed.Orders(ctx)
	require.NoError(t, err)
	n, err := seed.Orders(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	orders, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, len(samples))
}

func TestMenu(t *testing.T) {
	seen := make(map[string]bool, len(Menu))
	for _, m := range Menu {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
		assert.Contains(t, Categories, m.Category)
		assert.True(t, m.Price.IsPositive())
	}

	m, ok := Lookup("sh2")
	require.True(t, ok)
	assert.Equal(t, "Chocolate Shake", m.Name)
	assert.Equal(t, 3, m.Line(3).Quantity)

	_, ok = Lookup("zz9")
	assert.False(t, ok)
}
