package seeder

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/entity"
	repo "github.com/Additional-Code/bloom/internal/repository/order"
	"github.com/Additional-Code/bloom/internal/service/lifecycle"
	orderservice "github.com/Additional-Code/bloom/internal/service/order"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder creates sample orders for local/dev setups. It goes through the
// services so sample data obeys the same validation and lifecycle rules.
type Seeder struct {
	store     repo.Store
	orders    *orderservice.Service
	lifecycle *lifecycle.Service
	logger    *zap.Logger
}

// New constructs a Seeder.
func New(store repo.Store, orders *orderservice.Service, lc *lifecycle.Service, logger *zap.Logger) *Seeder {
	return &Seeder{store: store, orders: orders, lifecycle: lc, logger: logger}
}

type sample struct {
	table     string
	orderType entity.OrderType
	lines     map[string]int
	target    entity.Status
}

// samples cover every status and both order types.
var samples = []sample{
	{table: "3", orderType: entity.OrderTypeDineIn, lines: map[string]int{"cc1": 2, "sa3": 1}, target: entity.StatusPending},
	{orderType: entity.OrderTypeTakeaway, lines: map[string]int{"sh2": 1, "bu2": 2}, target: entity.StatusPending},
	{table: "7", orderType: entity.OrderTypeDineIn, lines: map[string]int{"ch7": 1, "ri1": 1, "mo5": 2}, target: entity.StatusCompleted},
	{table: "1", orderType: entity.OrderTypeDineIn, lines: map[string]int{"ta1": 1, "so3": 2, "de1": 3}, target: entity.StatusBilled},
	{orderType: entity.OrderTypeTakeaway, lines: map[string]int{"cc1": 1, "cc5": 2}, target: entity.StatusBilled},
}

// Orders seeds sample orders when the store is empty and returns how many
// were created. A store that already holds orders is left alone.
func (s *Seeder) Orders(ctx context.Context) (int, error) {
	existing, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		s.logger.Info("orders present; skipping seed", zap.Int("count", len(existing)))
		return 0, nil
	}

	for i, smp := range samples {
		in, err := smp.input()
		if err != nil {
			return i, err
		}
		order, err := s.orders.Create(ctx, in)
		if err != nil {
			return i, fmt.Errorf("seed order %d: %w", i+1, err)
		}
		if err := s.advance(ctx, order.ID, smp.target); err != nil {
			return i, fmt.Errorf("seed order %d: %w", i+1, err)
		}
	}

	s.logger.Info("seeded orders", zap.Int("count", len(samples)))
	return len(samples), nil
}

func (s *Seeder) advance(ctx context.Context, id int64, target entity.Status) error {
	if target == entity.StatusPending {
		return nil
	}
	if _, err := s.lifecycle.MarkReady(ctx, id); err != nil {
		return err
	}
	if target == entity.StatusBilled {
		_, err := s.lifecycle.GenerateBill(ctx, id)
		return err
	}
	return nil
}

func (smp sample) input() (entity.CreateInput, error) {
	in := entity.CreateInput{TableNumber: smp.table, OrderType: smp.orderType}
	for _, m := range Menu {
		qty, ok := smp.lines[m.ID]
		if !ok {
			continue
		}
		in.Items = append(in.Items, m.Line(qty))
	}
	if len(in.Items) != len(smp.lines) {
		return entity.CreateInput{}, fmt.Errorf("sample references unknown menu items")
	}
	return in, nil
}
