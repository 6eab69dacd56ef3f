package order

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/database"
	"github.com/Additional-Code/bloom/internal/entity"
	"github.com/Additional-Code/bloom/internal/migration"
)

var baseTime = time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

func newSQLiteStore(t *testing.T) *DatabaseStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "orders.db")
	cfg := config.Config{Database: config.Database{Driver: "sqlite", WriterDSN: dsn}}

	conns, err := database.Open(cfg.Database)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conns.Close() })

	mig, err := migration.New(cfg, conns, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, mig.Up(context.Background()))

	return NewDatabaseStore(conns)
}

// forEachStore runs fn against every backend so both honour the same contract.
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
}

func newOrder(t *testing.T, at time.Time, lines ...entity.OrderLine) *entity.Order {
	t.Helper()
	if len(lines) == 0 {
		lines = []entity.OrderLine{{ItemID: "cc1", ItemName: "Cold Coffee", Quantity: 2, Price: decimal.NewFromInt(149)}}
	}
	o, err := entity.NewOrder(entity.CreateInput{Items: lines, TableNumber: "5", OrderType: entity.OrderTypeDineIn}, at)
	require.NoError(t, err)
	return o
}

func TestStore_CreateAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		o := newOrder(t, baseTime)
		require.NoError(t, store.Create(ctx, o))
		assert.Equal(t, int64(1), o.ID)

		got, err := store.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPending, got.Status)
		assert.Equal(t, "5", got.TableNumber)
		assert.Equal(t, entity.OrderTypeDineIn, got.OrderType)
		assert.True(t, decimal.NewFromInt(298).Equal(got.TotalAmount), got.TotalAmount.String())
		require.Len(t, got.Items, 1)
		assert.Equal(t, "Cold Coffee", got.Items[0].ItemName)
		assert.Equal(t, 2, got.Items[0].Quantity)
		assert.WithinDuration(t, baseTime, got.CreatedAt, time.Millisecond)
		assert.Nil(t, got.CompletedAt)
		assert.Nil(t, got.BilledAt)
	})
}

func TestStore_GetByIDNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		_, err := store.GetByID(context.Background(), 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ListInInsertionOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Create(ctx, newOrder(t, baseTime.Add(time.Duration(i)*time.Minute))))
		}

		orders, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, orders, 3)
		for i, o := range orders {
			assert.Equal(t, int64(i+1), o.ID)
		}
	})
}

func TestStore_ListEmpty(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		orders, err := store.List(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, orders)
		assert.Empty(t, orders)
	})
}

func TestStore_UpdateStatusLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		o := newOrder(t, baseTime)
		require.NoError(t, store.Create(ctx, o))

		readyAt := baseTime.Add(10 * time.Minute)
		got, err := store.UpdateStatus(ctx, o.ID, entity.StatusChange{From: entity.StatusPending, To: entity.StatusCompleted, At: readyAt})
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
		assert.WithinDuration(t, readyAt, *got.CompletedAt, time.Millisecond)
		assert.Nil(t, got.BilledAt)

		billedAt := readyAt.Add(5 * time.Minute)
		got, err = store.UpdateStatus(ctx, o.ID, entity.StatusChange{From: entity.StatusCompleted, To: entity.StatusBilled, At: billedAt})
		require.NoError(t, err)
		assert.Equal(t, entity.StatusBilled, got.Status)
		require.NotNil(t, got.BilledAt)
		require.NotNil(t, got.CompletedAt)
		assert.False(t, got.BilledAt.Before(*got.CompletedAt))
		assert.True(t, decimal.NewFromInt(298).Equal(got.TotalAmount))
		assert.Len(t, got.Items, 1)
	})
}

func TestStore_UpdateStatusRejectsSkipsAndRegressions(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		o := newOrder(t, baseTime)
		require.NoError(t, store.Create(ctx, o))

		_, err := store.UpdateStatus(ctx, o.ID, entity.StatusChange{From: entity.StatusPending, To: entity.StatusBilled, At: baseTime})
		assert.ErrorIs(t, err, ErrStatusConflict)

		_, err = store.UpdateStatus(ctx, o.ID, entity.StatusChange{From: entity.StatusCompleted, To: entity.StatusPending, At: baseTime})
		assert.ErrorIs(t, err, ErrStatusConflict)

		got, err := store.GetByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPending, got.Status)
		assert.Nil(t, got.CompletedAt)
		assert.Nil(t, got.BilledAt)
	})
}

func TestStore_UpdateStatusStaleFrom(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		o := newOrder(t, baseTime)
		require.NoError(t, store.Create(ctx, o))

		// the stored status is pending, so a change computed from completed is stale
		_, err := store.UpdateStatus(ctx, o.ID, entity.StatusChange{From: entity.StatusCompleted, To: entity.StatusBilled, At: baseTime})
		assert.ErrorIs(t, err, ErrStatusConflict)

		_, err = store.UpdateStatus(ctx, 99, entity.StatusChange{From: entity.StatusPending, To: entity.StatusCompleted, At: baseTime})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ConcurrentMarkReadyStampsOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		o := newOrder(t, baseTime)
		require.NoError(t, store.Create(ctx, o))

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			conflicts int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				at := baseTime.Add(time.Duration(i+1) * time.Second)
				_, err := store.UpdateStatus(ctx, o.ID, entity.StatusChange{From: entity.StatusPending, To: entity.StatusCompleted, At: at})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrStatusConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, conflicts)
	})
}

func TestStore_ClearStartsNewEpoch(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			require.NoError(t, store.Create(ctx, newOrder(t, baseTime)))
		}

		require.NoError(t, store.Clear(ctx))

		orders, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders)

		_, err = store.GetByID(ctx, 2)
		assert.ErrorIs(t, err, ErrNotFound)

		o := newOrder(t, baseTime)
		require.NoError(t, store.Create(ctx, o))
		assert.Equal(t, int64(1), o.ID)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	o := newOrder(t, baseTime)
	require.NoError(t, store.Create(ctx, o))

	o.Items[0].Quantity = 50
	got, err := store.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)

	got.Status = entity.StatusBilled
	again, err := store.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, again.Status)
}

func TestNewStore_Selection(t *testing.T) {
	store, err := NewStore(config.Config{Orders: config.Orders{Backend: "memory"}}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	_, err = NewStore(config.Config{Orders: config.Orders{Backend: "database"}}, nil, zap.NewNop())
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	err := classify(fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, ErrUnavailable)

	plain := errors.New("syntax error")
	assert.Equal(t, plain, classify(plain))
	assert.NoError(t, classify(nil))
}
