package lifecycle

import (
	"context"
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

	"github.com/Additional-Code/bloom/internal/cache"
	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
	"github.com/Additional-Code/bloom/internal/messaging"
	repo "github.com/Additional-Code/bloom/internal/repository/order"
	"github.com/Additional-Code/bloom/pkg/errorbank"
)

const instrumentation = "github.com/Additional-Code/bloom/service/lifecycle"

var tracer = otel.Tracer(instrumentation)

// Module provides the lifecycle service to Fx.
var Module = fx.Provide(NewService)

// Service is the only writer of order status. It moves an order one step
// along pending → completed → billed and stamps the matching timestamp.
type Service struct {
	store       repo.Store
	cache       cache.Store
	cacheTTL    time.Duration
	publisher   messaging.Client
	logger      *zap.Logger
	now         func() time.Time
	transitions metric.Int64Counter
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Store     repo.Store
	Cache     cache.Store
	Config    config.Config
	Publisher messaging.Client
	Logger    *zap.Logger
}

// NewService wires a new Service instance using the wall clock.
func NewService(p Params) (*Service, error) {
	counter, err := otel.Meter(instrumentation).Int64Counter(
		"bloom.orders.transitions",
		metric.WithDescription("Order status transitions applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("create transitions counter: %w", err)
	}
	return &Service{
		store:       p.Store,
		cache:       p.Cache,
		cacheTTL:    p.Config.Cache.DefaultTTL,
		publisher:   p.Publisher,
		logger:      p.Logger,
		now:         time.Now,
		transitions: counter,
	}, nil
}

// WithClock replaces the time source used to stamp transitions.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// MarkReady moves a pending order to completed.
func (s *Service) MarkReady(ctx context.Context, id int64) (*entity.Order, error) {
	return s.Transition(ctx, id, entity.StatusCompleted)
}

// GenerateBill moves a completed order to billed.
func (s *Service) GenerateBill(ctx context.Context, id int64) (*entity.Order, error) {
	return s.Transition(ctx, id, entity.StatusBilled)
}

// Transition applies target to the order. Anything other than the single
// next step, including repeating the current status, is a conflict.
func (s *Service) Transition(ctx context.Context, id int64, target entity.Status) (*entity.Order, error) {
	ctx, span := tracer.Start(ctx, "LifecycleService.Transition", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.to", string(target)),
	))
	defer span.End()

	if !target.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown status %q", target))
	}

	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(span, err, "failed to load order")
	}

	if !entity.CanTransition(current.Status, target) {
		span.SetStatus(codes.Error, "invalid transition")
		return nil, invalidTransition(id, current.Status, target)
	}

	change := entity.StatusChange{From: current.Status, To: target, At: s.now().UTC()}
	if target == entity.StatusBilled && current.CompletedAt != nil && change.At.Before(*current.CompletedAt) {
		// the wall clock stepped back since the order was completed
		change.At = *current.CompletedAt
	}
	updated, err := s.store.UpdateStatus(ctx, id, change)
	if err != nil {
		if errors.Is(err, repo.ErrStatusConflict) {
			// another writer moved the order between our read and the update
			span.SetStatus(codes.Error, "lost update race")
			return nil, invalidTransition(id, current.Status, target)
		}
		return nil, s.storeError(span, err, "failed to update order status")
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(change.From)),
		attribute.String("to", string(change.To)),
	))
	s.refreshCache(ctx, updated)
	s.publish(ctx, *updated, change)

	s.logger.Info("order status changed",
		zap.Int64("id", id),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
	)
	return updated, nil
}

// refreshCache writes a billed order through to the cache and evicts any
// other status, so a concurrent read can never leave an older copy behind.
func (s *Service) refreshCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil {
		return
	}
	epoch, err := cache.Epoch(ctx, s.cache)
	if err != nil {
		s.logger.Warn("orders cache epoch read failed", zap.Int64("id", order.ID), zap.Error(err))
		return
	}
	key := cache.OrderKey(epoch, order.ID)

	if order.Status != entity.StatusBilled {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("orders cache invalidation failed", zap.Int64("id", order.ID), zap.Error(err))
		}
		return
	}
	bytes, err := json.Marshal(order)
	if err == nil {
		err = s.cache.Set(ctx, key, bytes, s.cacheTTL)
	}
	if err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, order entity.Order, change entity.StatusChange) {
	if s.publisher == nil {
		return
	}
	typ, ok := messaging.EventForStatus(change.To)
	if !ok {
		return
	}
	if err := messaging.PublishOrderEvent(ctx, s.publisher, messaging.NewOrderEvent(typ, order, change.At)); err != nil {
		s.logger.Error("publish order event", zap.String("type", string(typ)), zap.Int64("id", order.ID), zap.Error(err))
	}
}

func (s *Service) storeError(span trace.Span, err error, msg string) error {
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

func invalidTransition(id int64, from, to entity.Status) error {
	return errorbank.Conflict(
		fmt.Sprintf("order %d cannot move from %s to %s", id, from, to),
		errorbank.WithDetail("from", string(from)),
		errorbank.WithDetail("to", string(to)),
	)
}
