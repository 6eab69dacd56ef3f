package query

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
	repo "github.com/Additional-Code/bloom/internal/repository/order"
	"github.com/Additional-Code/bloom/pkg/errorbank"
)

var tracer = otel.Tracer("github.com/Additional-Code/bloom/service/query")

// Module provides the query service to Fx and registers its gauges.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(RegisterMetrics),
)

// Filter narrows List. Zero values match everything.
type Filter struct {
	Status entity.Status
	Day    *time.Time
}

// Service reads the current order list and derives views from it.
type Service struct {
	store repo.Store
	loc   *time.Location
	topN  int
	now   func() time.Time
}

// NewService builds the query service; calendar days use the configured
// time zone.
func NewService(store repo.Store, cfg config.Config) *Service {
	loc := cfg.Orders.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, topN: cfg.Orders.TopItems, now: time.Now}
}

// Location is the time zone calendar days are evaluated in.
func (s *Service) Location() *time.Location { return s.loc }

// List returns orders in insertion order, filtered by status and day.
func (s *Service) List(ctx context.Context, f Filter) ([]entity.Order, error) {
	ctx, span := tracer.Start(ctx, "QueryService.List", trace.WithAttributes(attribute.String("filter.status", string(f.Status))))
	defer span.End()

	orders, err := s.load(ctx, span)
	if err != nil {
		return nil, err
	}
	if f.Status != "" {
		orders = ByStatus(orders, f.Status)
	}
	if f.Day != nil {
		orders = ByDate(orders, *f.Day, s.loc)
	}
	return orders, nil
}

// Analytics aggregates the whole collection; topN <= 0 uses the configured default.
func (s *Service) Analytics(ctx context.Context, topN int) (Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Analytics")
	defer span.End()

	if topN <= 0 {
		topN = s.topN
	}
	orders, err := s.load(ctx, span)
	if err != nil {
		return Summary{}, err
	}
	return Aggregate(orders, topN), nil
}

// Report aggregates the orders created on one calendar day.
func (s *Service) Report(ctx context.Context, day time.Time, topN int) (Summary, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Report")
	defer span.End()

	if topN <= 0 {
		topN = s.topN
	}
	orders, err := s.load(ctx, span)
	if err != nil {
		return Summary{}, err
	}
	return Aggregate(ByDate(orders, day, s.loc), topN), nil
}

// Recent returns orders changed within the last window.
func (s *Service) Recent(ctx context.Context, window time.Duration) ([]entity.Order, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Recent")
	defer span.End()

	if window <= 0 {
		return nil, errorbank.BadRequest("window must be positive")
	}
	orders, err := s.load(ctx, span)
	if err != nil {
		return nil, err
	}
	return RecentlyUpdated(orders, s.now().Add(-window)), nil
}

func (s *Service) load(ctx context.Context, span trace.Span) ([]entity.Order, error) {
	orders, err := s.store.List(ctx)
	if err == nil {
		return orders, nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "list failed")
	if errors.Is(err, repo.ErrUnavailable) {
		return nil, errorbank.Unavailable("order storage unavailable", errorbank.WithCause(err))
	}
	return nil, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
}
