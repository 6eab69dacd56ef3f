package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Additional-Code/bloom/internal/entity"
)

// EventType names what happened to an order.
type EventType string

const (
	EventOrderCreated   EventType = "order.created"
	EventOrderCompleted EventType = "order.completed"
	EventOrderBilled    EventType = "order.billed"
	EventOrdersCleared  EventType = "orders.cleared"
)

// OrderEvent is the payload published on the bus for kitchen and billing
// consumers. OrderID is zero for EventOrdersCleared.
type OrderEvent struct {
	Type        EventType        `json:"type"`
	OrderID     int64            `json:"orderId,omitempty"`
	Status      entity.Status    `json:"status,omitempty"`
	OrderType   entity.OrderType `json:"orderType,omitempty"`
	TableNumber string           `json:"tableNumber,omitempty"`
	TotalAmount string           `json:"totalAmount,omitempty"`
	Items       int              `json:"items,omitempty"`
	Cleared     int              `json:"cleared,omitempty"`
	OccurredAt  time.Time        `json:"occurredAt"`
}

// NewOrderEvent describes order as it stands after the event.
func NewOrderEvent(t EventType, order entity.Order, at time.Time) OrderEvent {
	return OrderEvent{
		Type:        t,
		OrderID:     order.ID,
		Status:      order.Status,
		OrderType:   order.OrderType,
		TableNumber: order.TableNumber,
		TotalAmount: order.TotalAmount.StringFixed(2),
		Items:       len(order.Items),
		OccurredAt:  at,
	}
}

// EventForStatus maps the status an order just reached to its event type.
func EventForStatus(s entity.Status) (EventType, bool) {
	switch s {
	case entity.StatusCompleted:
		return EventOrderCompleted, true
	case entity.StatusBilled:
		return EventOrderBilled, true
	default:
		return "", false
	}
}

// Key partitions events by order id.
func (e OrderEvent) Key() []byte {
	if e.OrderID == 0 {
		return []byte(string(e.Type))
	}
	return []byte(strconv.FormatInt(e.OrderID, 10))
}

// DecodeOrderEvent parses a message value published by PublishOrderEvent.
func DecodeOrderEvent(msg Message) (OrderEvent, error) {
	var ev OrderEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return OrderEvent{}, fmt.Errorf("decode order event: %w", err)
	}
	if ev.Type == "" {
		return OrderEvent{}, fmt.Errorf("decode order event: missing type")
	}
	return ev, nil
}

// PublishOrderEvent encodes ev as JSON and publishes it on client.
func PublishOrderEvent(ctx context.Context, client Client, ev OrderEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}
	return client.Publish(ctx, ev.Key(), payload)
}
