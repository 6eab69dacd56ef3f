package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/cache"
	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
	"github.com/Additional-Code/bloom/internal/messaging"
	repo "github.com/Additional-Code/bloom/internal/repository/order"
	"github.com/Additional-Code/bloom/internal/service/lifecycle"
	"github.com/Additional-Code/bloom/pkg/errorbank"
)

const secret = "s3cret"

type recordingPublisher struct {
	messaging.NoopClient
	events []messaging.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, _ []byte, value []byte) error {
	ev, err := messaging.DecodeOrderEvent(messaging.Message{Value: value})
	if err != nil {
		return err
	}
	p.events = append(p.events, ev)
	return nil
}

type stubArchiver struct {
	calls  int
	orders []entity.Order
	err    error
}

func (a *stubArchiver) Archive(_ context.Context, orders []entity.Order, _ time.Time) (string, error) {
	a.calls++
	a.orders = orders
	if a.err != nil {
		return "", a.err
	}
	return "mem://snapshot", nil
}

type fixture struct {
	svc       *Service
	store     *repo.MemoryStore
	cache     *cache.MemoryStore
	archiver  *stubArchiver
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     repo.NewMemoryStore(),
		cache:     cache.NewMemoryStore(16, time.Minute),
		archiver:  &stubArchiver{},
		publisher: &recordingPublisher{},
		now:       time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(Params{
		Store:     f.store,
		Cache:     f.cache,
		Archiver:  f.archiver,
		Config:    config.Config{Orders: config.Orders{ClearSecret: secret}, Cache: config.Cache{DefaultTTL: time.Minute}},
		Logger:    zap.NewNop(),
		Publisher: f.publisher,
	})
	require.NoError(t, err)
	f.svc = svc.WithClock(func() time.Time { return f.now })
	return f
}

func newService(t *testing.T, store repo.Store, c cache.Store) *Service {
	t.Helper()
	svc, err := NewService(Params{
		Store:  store,
		Cache:  c,
		Config: config.Config{Orders: config.Orders{ClearSecret: secret}, Cache: config.Cache{DefaultTTL: time.Minute}},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return svc
}

func coffee(qty int) entity.CreateInput {
	return entity.CreateInput{
		Items:       []entity.OrderLine{{ItemID: "cc1", ItemName: "Cold Coffee", Quantity: qty, Price: decimal.NewFromInt(149)}},
		TableNumber: "5",
		OrderType:   entity.OrderTypeDineIn,
	}
}

func TestCreate_AssignsIDsAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, coffee(2))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, coffee(1))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
	assert.Equal(t, entity.StatusPending, first.Status)
	assert.Equal(t, "298", first.TotalAmount.String())
	assert.Equal(t, f.now, first.CreatedAt)
	assert.Nil(t, first.CompletedAt)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, messaging.EventOrderCreated, f.publisher.events[0].Type)
	assert.Equal(t, "5", f.publisher.events[0].TableNumber)
}

func TestCreate_ValidationFailureLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, entity.CreateInput{OrderType: entity.OrderTypeDineIn})
	require.Error(t, err)
	appErr := errorbank.From(err)
	assert.Equal(t, errorbank.KindBadRequest, appErr.Kind())
	problems, ok := appErr.Details()["problems"].([]entity.FieldProblem)
	require.True(t, ok)
	assert.Len(t, problems, 2)

	orders, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, f.publisher.events)
}

func billDirectly(t *testing.T, store repo.Store, id int64, at time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := store.UpdateStatus(ctx, id, entity.StatusChange{From: entity.StatusPending, To: entity.StatusCompleted, At: at})
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, id, entity.StatusChange{From: entity.StatusCompleted, To: entity.StatusBilled, At: at})
	require.NoError(t, err)
}

func TestGet_CachesOnlyBilledOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, coffee(2))
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, created.TotalAmount.Equal(got.TotalAmount))
	_, err = f.cache.Get(ctx, cache.OrderKey(0, created.ID))
	assert.ErrorIs(t, err, cache.ErrCacheMiss, "pending orders are read from the store")

	billDirectly(t, f.store, created.ID, f.now)
	got, err = f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusBilled, got.Status)

	_, err = f.cache.Get(ctx, cache.OrderKey(0, created.ID))
	assert.NoError(t, err, "billed orders are cached")
}

// pausingStore holds GetByID after the read so a writer can commit in
// between.
type pausingStore struct {
	*repo.MemoryStore
	read    chan struct{}
	release chan struct{}
}

func (s pausingStore) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	o, err := s.MemoryStore.GetByID(ctx, id)
	select {
	case s.read <- struct{}{}:
	default:
	}
	<-s.release
	return o, err
}

func TestGet_TransitionDuringReadLeavesNoStaleCopy(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore()
	shared := cache.NewMemoryStore(16, time.Minute)
	paused := pausingStore{MemoryStore: store, read: make(chan struct{}, 1), release: make(chan struct{})}

	svc, err := NewService(Params{Store: paused, Cache: shared, Logger: zap.NewNop()})
	require.NoError(t, err)
	lc, err := lifecycle.NewService(lifecycle.Params{Store: store, Cache: shared, Logger: zap.NewNop()})
	require.NoError(t, err)

	created, err := newService(t, store, shared).Create(ctx, coffee(1))
	require.NoError(t, err)

	done := make(chan *entity.Order, 1)
	go func() {
		o, err := svc.Get(ctx, created.ID)
		assert.NoError(t, err)
		done <- o
	}()

	<-paused.read
	_, err = lc.MarkReady(ctx, created.ID)
	require.NoError(t, err)
	close(paused.release)

	first := <-done
	require.NotNil(t, first)
	assert.Equal(t, entity.StatusPending, first.Status)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, got.Status)
}

func TestClearAll_ReachesOtherProcessesSharingTheCache(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore()
	// stands in for a Redis cache shared by the API and a CLI process
	shared := cache.NewMemoryStore(16, time.Minute)
	api := newService(t, store, shared)
	cli := newService(t, store, shared)

	created, err := api.Create(ctx, coffee(3))
	require.NoError(t, err)
	billDirectly(t, store, created.ID, time.Now())
	_, err = api.Get(ctx, created.ID)
	require.NoError(t, err)

	_, err = cli.ClearAll(ctx, secret)
	require.NoError(t, err)

	_, err = api.Get(ctx, created.ID)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	next, err := api.Create(ctx, coffee(1))
	require.NoError(t, err)
	require.Equal(t, created.ID, next.ID)
	got, err := api.Get(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, got.Status)
	assert.Equal(t, "149", got.TotalAmount.String())
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Get(context.Background(), 9)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))
	assert.Equal(t, "order not found", err.Error())
}

func TestClearAll_WrongSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, coffee(1))
	require.NoError(t, err)

	_, err = f.svc.ClearAll(ctx, "guess")
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
	assert.Equal(t, 401, errorbank.From(err).StatusCode())
	assert.Zero(t, f.archiver.calls)

	orders, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestClearAll_ArchivesClearsAndRestartsIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, coffee(1))
		require.NoError(t, err)
	}

	res, err := f.svc.ClearAll(ctx, secret)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Cleared)
	assert.Equal(t, "mem://snapshot", res.Archive)
	assert.Len(t, f.archiver.orders, 3)

	orders, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)

	// cached copies of cleared orders must not resurface
	_, err = f.svc.Get(ctx, 2)
	assert.True(t, errorbank.IsKind(err, errorbank.KindNotFound))

	next, err := f.svc.Create(ctx, coffee(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.ID)

	last := f.publisher.events[len(f.publisher.events)-2]
	assert.Equal(t, messaging.EventOrdersCleared, last.Type)
	assert.Equal(t, 3, last.Cleared)
}

func TestClearAll_ArchiveFailureKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, coffee(1))
	require.NoError(t, err)
	f.archiver.err = errors.New("bucket missing")

	_, err = f.svc.ClearAll(ctx, secret)
	require.Error(t, err)
	assert.True(t, errorbank.IsKind(err, errorbank.KindInternal))

	orders, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestClearAll_EmptySecretNeverMatches(t *testing.T) {
	svc, err := NewService(Params{Store: repo.NewMemoryStore(), Logger: zap.NewNop()})
	require.NoError(t, err)

	_, err = svc.ClearAll(context.Background(), "")
	assert.True(t, errorbank.IsKind(err, errorbank.KindUnauthorized))
}

func TestReady(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Ready(context.Background()))
}
