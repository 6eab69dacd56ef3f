package query

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RegisterMetrics publishes the number of orders per status as an
// observable gauge, evaluated on each collection.
func RegisterMetrics(s *Service) error {
	_, err := s.registerGauge(otel.Meter("github.com/Additional-Code/bloom/service/query"))
	return err
}

func (s *Service) registerGauge(meter metric.Meter) (metric.Registration, error) {
	gauge, err := meter.Int64ObservableGauge("bloom.orders.by_status",
		metric.WithDescription("Orders currently held, by lifecycle status"),
	)
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		orders, err := s.store.List(ctx)
		if err != nil {
			return err
		}
		c := CountByStatus(orders)
		o.ObserveInt64(gauge, int64(c.Pending), metric.WithAttributes(attribute.String("status", "pending")))
		o.ObserveInt64(gauge, int64(c.Completed), metric.WithAttributes(attribute.String("status", "completed")))
		o.ObserveInt64(gauge, int64(c.Billed), metric.WithAttributes(attribute.String("status", "billed")))
		return nil
	}, gauge)
}
