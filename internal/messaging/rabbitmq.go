package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
)

// rabbitClient publishes to a topic exchange and consumes from a queue bound
// to it. The configured Kafka topic doubles as the routing key.
type rabbitClient struct {
	cfg        config.RabbitMQ
	routingKey string
	logger     *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func newRabbitClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	client := &rabbitClient{
		cfg:        cfg.Messaging.RabbitMQ,
		routingKey: cfg.Messaging.Kafka.Topic,
		logger:     logger,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return client.connect()
		},
		OnStop: func(context.Context) error {
			logger.Info("closing rabbitmq client")
			return client.Close()
		},
	})

	return client, nil
}

func (r *rabbitClient) connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, err := amqp.Dial(r.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(r.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare exchange %s: %w", r.cfg.Exchange, err)
	}
	if _, err := ch.QueueDeclare(r.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("declare queue %s: %w", r.cfg.Queue, err)
	}
	if err := ch.QueueBind(r.cfg.Queue, r.routingKey, r.cfg.Exchange, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("bind queue %s: %w", r.cfg.Queue, err)
	}
	if r.cfg.Prefetch > 0 {
		if err := ch.Qos(r.cfg.Prefetch, 0, false); err != nil {
			_ = conn.Close()
			return fmt.Errorf("set qos: %w", err)
		}
	}

	r.conn = conn
	r.ch = ch
	r.logger.Info("rabbitmq connected", zap.String("exchange", r.cfg.Exchange), zap.String("queue", r.cfg.Queue))
	return nil
}

func (r *rabbitClient) channel() (*amqp.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil || r.ch.IsClosed() {
		return nil, errors.New("rabbitmq channel is closed")
	}
	return r.ch, nil
}

func (r *rabbitClient) Publish(ctx context.Context, key []byte, value []byte) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, r.cfg.Exchange, r.routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    string(key),
		Timestamp:    time.Now().UTC(),
		Body:         value,
	})
}

func (r *rabbitClient) Consume(ctx context.Context, handler Handler) error {
	ch, err := r.channel()
	if err != nil {
		return err
	}
	deliveries, err := ch.ConsumeWithContext(ctx, r.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", r.cfg.Queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{
				Topic:   d.RoutingKey,
				Key:     []byte(d.MessageId),
				Value:   append([]byte(nil), d.Body...),
				Offset:  int64(d.DeliveryTag),
				Time:    d.Timestamp,
				Headers: amqpHeaders(d.Headers),
			}
			if err := handler(ctx, msg); err != nil {
				r.logger.Error("message handler failed", zap.Error(err), zap.Uint64("delivery_tag", d.DeliveryTag))
				// requeue once; a redelivered message that fails again is dropped
				if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
					r.logger.Warn("nack failed", zap.Error(nackErr))
				}
				continue
			}
			if err := d.Ack(false); err != nil {
				r.logger.Warn("ack failed", zap.Error(err))
			}
		}
	}
}

func (r *rabbitClient) Topic() string { return r.routingKey }

func (r *rabbitClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.ch != nil && !r.ch.IsClosed() {
		err = errors.Join(err, r.ch.Close())
	}
	if r.conn != nil && !r.conn.IsClosed() {
		err = errors.Join(err, r.conn.Close())
	}
	return err
}

func amqpHeaders(table amqp.Table) map[string]string {
	if len(table) == 0 {
		return nil
	}
	m := make(map[string]string, len(table))
	for k, v := range table {
		m[k] = fmt.Sprint(v)
	}
	return m
}
