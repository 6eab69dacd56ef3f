package order

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/messaging"
	"github.com/Additional-Code/bloom/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/bloom/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewNotificationHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewNotificationHandler announces order events to the kitchen and the
// cashier. Undecodable messages are logged and acknowledged so a poison
// message never blocks the queue.
func NewNotificationHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	log := logger.Named("notifications")

	handler := func(ctx context.Context, msg messaging.Message) error {
		_, span := workerTracer.Start(ctx, "worker.orders.notify", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		ev, err := messaging.DecodeOrderEvent(msg)
		if err != nil {
			log.Error("dropping undecodable order event", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("order.event", string(ev.Type)), attribute.Int64("order.id", ev.OrderID))

		fields := []zap.Field{zap.Int64("order_id", ev.OrderID), zap.Time("at", ev.OccurredAt)}
		switch ev.Type {
		case messaging.EventOrderCreated:
			log.Info("new order for the kitchen", append(fields,
				zap.String("order_type", string(ev.OrderType)),
				zap.String("table", ev.TableNumber),
				zap.Int("items", ev.Items),
			)...)
		case messaging.EventOrderCompleted:
			log.Info("order ready", append(fields, zap.String("table", ev.TableNumber))...)
		case messaging.EventOrderBilled:
			log.Info("bill generated", append(fields, zap.String("total", ev.TotalAmount))...)
		case messaging.EventOrdersCleared:
			log.Info("order history cleared", zap.Int("orders", ev.Cleared), zap.Time("at", ev.OccurredAt))
		default:
			log.Warn("unknown order event", append(fields, zap.String("type", string(ev.Type)))...)
		}
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
