package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
)

// kafkaClient implements the Client via kafka-go.
type kafkaClient struct {
	writer *kafka.Writer
	reader *kafka.Reader
	topic  string
	logger *zap.Logger
}

func newKafkaClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Client, error) {
	topic := cfg.Messaging.Kafka.Topic

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Messaging.Kafka.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Logger:       kafkaLogger{logger: logger},
		ErrorLogger:  kafkaLogger{logger: logger},
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Messaging.Kafka.Brokers,
		GroupID:        cfg.Messaging.ConsumerGroup,
		Topic:          topic,
		MinBytes:       cfg.Messaging.Kafka.MinBytes,
		MaxBytes:       cfg.Messaging.Kafka.MaxBytes,
		CommitInterval: cfg.Messaging.Kafka.CommitInterval,
		Dialer: &kafka.Dialer{
			Timeout:  cfg.Messaging.Kafka.ConnectTimeout,
			ClientID: cfg.Messaging.Kafka.ClientID,
		},
	})

	client := &kafkaClient{writer: writer, reader: reader, topic: topic, logger: logger}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Info("closing kafka client")
			return errors.Join(writer.Close(), reader.Close())
		},
	})

	return client, nil
}

// Publish keys by order id so every event of one order lands on the same
// partition and keeps its order.
func (k *kafkaClient) Publish(ctx context.Context, key []byte, value []byte) error {
	return k.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

func (k *kafkaClient) Consume(ctx context.Context, handler Handler) error {
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			k.logger.Error("kafka fetch failed", zap.Error(err))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		wrapped := Message{
			Topic:   msg.Topic,
			Key:     append([]byte(nil), msg.Key...),
			Value:   append([]byte(nil), msg.Value...),
			Offset:  msg.Offset,
			Time:    msg.Time,
			Headers: kafkaHeaders(msg.Headers),
		}

		// commits are cumulative per partition, so a message that is not
		// handled here is skipped as soon as a later offset is committed
		if !deliver(ctx, handler, wrapped, k.logger) && ctx.Err() != nil {
			return ctx.Err()
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			k.logger.Warn("commit failed", zap.Error(err))
		}
	}
}

func (k *kafkaClient) Topic() string { return k.topic }

// deliver runs handler and retries a failure once, matching the single
// requeue RabbitMQ deliveries get. It reports whether the message was handled.
func deliver(ctx context.Context, handler Handler, msg Message, logger *zap.Logger) bool {
	err := handler(ctx, msg)
	if err == nil {
		return true
	}
	logger.Warn("message handler failed; retrying", zap.Error(err), zap.Int64("offset", msg.Offset))

	if err := handler(ctx, msg); err != nil {
		logger.Error("dropping message after failed retry", zap.Error(err), zap.Int64("offset", msg.Offset))
		return false
	}
	return true
}

func kafkaHeaders(headers []kafka.Header) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Key] = string(h.Value)
	}
	return m
}

type kafkaLogger struct {
	logger *zap.Logger
}

func (k kafkaLogger) Printf(msg string, args ...interface{}) {
	k.logger.Sugar().Debugf(msg, args...)
}
