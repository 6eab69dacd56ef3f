package order

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/archive"
	"github.com/Additional-Code/bloom/internal/cache"
	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
	"github.com/Additional-Code/bloom/internal/messaging"
	repo "github.com/Additional-Code/bloom/internal/repository/order"
	"github.com/Additional-Code/bloom/pkg/errorbank"
)

const instrumentation = "github.com/Additional-Code/bloom/service/order"

var serviceTracer = otel.Tracer(instrumentation)

// ClearMessage is reported after a successful ClearAll.
const ClearMessage = "All history cleared"

// Service encapsulates business logic around creating, reading and clearing orders.
type Service struct {
	store     repo.Store
	cache     cache.Store
	cacheTTL  time.Duration
	archiver  archive.Archiver
	publisher messaging.Client
	logger    *zap.Logger
	secret    []byte
	now       func() time.Time
	created   metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store     repo.Store
	Cache     cache.Store
	Archiver  archive.Archiver
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// ClearResult describes what ClearAll removed.
type ClearResult struct {
	Cleared int
	Archive string
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	created, err := otel.Meter(instrumentation).Int64Counter(
		"bloom.orders.created",
		metric.WithDescription("Orders accepted"),
	)
	if err != nil {
		return nil, fmt.Errorf("create orders counter: %w", err)
	}
	return &Service{
		store:     p.Store,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		archiver:  p.Archiver,
		publisher: p.Publisher,
		logger:    p.Logger,
		secret:    []byte(p.Config.Orders.ClearSecret),
		now:       time.Now,
		created:   created,
	}, nil
}

// WithClock replaces the time source used to stamp new orders.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates the input and stores a new pending order.
func (s *Service) Create(ctx context.Context, in entity.CreateInput) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(
		attribute.String("order.type", string(in.OrderType)),
		attribute.Int("order.items", len(in.Items)),
	))
	defer span.End()

	order, err := entity.NewOrder(in, s.now().UTC())
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			return nil, errorbank.BadRequest(verr.Error(), errorbank.WithDetail("problems", verr.Problems))
		}
		return nil, errorbank.BadRequest("invalid order", errorbank.WithCause(err))
	}

	if err := s.store.Create(ctx, order); err != nil {
		return nil, storeError(span, err, "failed to create order")
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("type", string(order.OrderType))))

	s.publish(ctx, messaging.NewOrderEvent(messaging.EventOrderCreated, *order, order.CreatedAt))
	s.logger.Info("order created",
		zap.Int64("id", order.ID),
		zap.String("type", string(order.OrderType)),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// Get retrieves an order by id, consulting cache when available. Only billed
// orders are cached: they never change again until the history is cleared,
// and a clear moves every key to a new epoch.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	epoch, cached := s.cacheEpoch(ctx)
	if cached {
		if order, err := s.getFromCache(ctx, epoch, id); err == nil {
			return order, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	order, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(span, err, "failed to load order")
	}

	if cached && order.Status == entity.StatusBilled {
		if err := s.storeInCache(ctx, epoch, order); err != nil {
			s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	return order, nil
}

// ClearAll archives and then removes every order, starting a new id epoch.
// The store is left untouched when the secret does not match or the
// archive cannot be written.
func (s *Service) ClearAll(ctx context.Context, secret string) (ClearResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ClearAll")
	defer span.End()

	if len(s.secret) == 0 || subtle.ConstantTimeCompare([]byte(secret), s.secret) != 1 {
		s.logger.Warn("clear history attempt with wrong password")
		span.SetStatus(codes.Error, "unauthorized")
		return ClearResult{}, errorbank.Unauthorized("Invalid password")
	}

	orders, err := s.store.List(ctx)
	if err != nil {
		return ClearResult{}, storeError(span, err, "failed to list orders")
	}

	at := s.now().UTC()
	location := ""
	if s.archiver != nil {
		location, err = s.archiver.Archive(ctx, orders, at)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "archive failed")
			return ClearResult{}, errorbank.Internal("failed to archive order history", errorbank.WithCause(err))
		}
	}

	epoch, cached := s.cacheEpoch(ctx)

	if err := s.store.Clear(ctx); err != nil {
		return ClearResult{}, storeError(span, err, "failed to clear orders")
	}

	if s.cache != nil {
		// the new epoch is what other processes observe; the delete only
		// frees this epoch's entries early
		if _, err := cache.NextEpoch(ctx, s.cache); err != nil {
			s.logger.Error("orders cache epoch bump failed", zap.Error(err))
		}
		if cached && len(orders) > 0 {
			ids := make([]int64, 0, len(orders))
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			if err := s.cache.Delete(ctx, cache.OrderKeys(epoch, ids...)...); err != nil {
				s.logger.Warn("orders cache invalidation failed", zap.Int("orders", len(ids)), zap.Error(err))
			}
		}
	}

	s.publish(ctx, messaging.OrderEvent{Type: messaging.EventOrdersCleared, Cleared: len(orders), OccurredAt: at})
	s.logger.Info("order history cleared", zap.Int("orders", len(orders)), zap.String("archive", location))
	return ClearResult{Cleared: len(orders), Archive: location}, nil
}

// Ready reports whether the order store can serve requests.
func (s *Service) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return errorbank.Unavailable("order storage unavailable", errorbank.WithCause(err))
	}
	return nil
}

func (s *Service) publish(ctx context.Context, ev messaging.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := messaging.PublishOrderEvent(ctx, s.publisher, ev); err != nil {
		s.logger.Error("publish order event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}

// cacheEpoch reports the current cache epoch, or false when the cache is
// absent or its epoch cannot be read.
func (s *Service) cacheEpoch(ctx context.Context) (int64, bool) {
	if s.cache == nil {
		return 0, false
	}
	epoch, err := cache.Epoch(ctx, s.cache)
	if err != nil {
		s.logger.Warn("orders cache epoch read failed", zap.Error(err))
		return 0, false
	}
	return epoch, true
}

func (s *Service) getFromCache(ctx context.Context, epoch, id int64) (*entity.Order, error) {
	bytes, err := s.cache.Get(ctx, cache.OrderKey(epoch, id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, epoch int64, order *entity.Order) error {
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cache.OrderKey(epoch, order.ID), bytes, s.cacheTTL)
}

func storeError(span trace.Span, err error, msg string) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return errorbank.NotFound("order not found")
	case errors.Is(err, repo.ErrUnavailable):
		span.RecordError(err)
		span.SetStatus(codes.Error, "store unavailable")
		return errorbank.Unavailable("order storage unavailable", errorbank.WithCause(err))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "store error")
		return errorbank.Internal(msg, errorbank.WithCause(err))
	}
}
