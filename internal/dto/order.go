package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/bloom/internal/entity"
	"github.com/Additional-Code/bloom/internal/service/query"
)

// OrderLine is one item of an order on the wire.
type OrderLine struct {
	ItemID   string  `json:"itemId"`
	ItemName string  `json:"itemName"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID          int64       `json:"id"`
	Items       []OrderLine `json:"items"`
	TableNumber *string     `json:"tableNumber"`
	OrderType   string      `json:"orderType"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	CompletedAt *time.Time  `json:"completedAt"`
	BilledAt    *time.Time  `json:"billedAt"`
}

// OrderListResponse wraps the order list the way polling clients expect it.
type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
}

// CreateOrderLine is one requested item. Price accepts a JSON number or string.
type CreateOrderLine struct {
	ItemID   string          `json:"itemId"`
	ItemName string          `json:"itemName"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Items       []CreateOrderLine `json:"items"`
	TableNumber string            `json:"tableNumber,omitempty"`
	OrderType   string            `json:"orderType"`
}

// UpdateStatusRequest is the only accepted body of PATCH /orders/:id.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// ClearRequest is the body of POST /orders/clear.
type ClearRequest struct {
	Password string `json:"password"`
}

// ClearResponse reports a successful history wipe.
type ClearResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Cleared int    `json:"cleared"`
}

// ItemCount is one entry of the top items ranking.
type ItemCount struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// AnalyticsResponse is the aggregate dashboard view.
type AnalyticsResponse struct {
	Revenue        float64      `json:"revenue"`
	CompletionRate int          `json:"completionRate"`
	TopItems       []ItemCount  `json:"topItems"`
	Counts         query.Counts `json:"counts"`
}

// Input converts the request into the domain create input.
func (r CreateOrderRequest) Input() entity.CreateInput {
	items := make([]entity.OrderLine, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, entity.OrderLine{
			ItemID:   it.ItemID,
			ItemName: it.ItemName,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}
	return entity.CreateInput{
		Items:       items,
		TableNumber: r.TableNumber,
		OrderType:   entity.OrderType(r.OrderType),
	}
}

// FromOrder maps a domain order onto its wire form.
func FromOrder(o entity.Order) OrderResponse {
	items := make([]OrderLine, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderLine{
			ItemID:   it.ItemID,
			ItemName: it.ItemName,
			Quantity: it.Quantity,
			Price:    it.Price.InexactFloat64(),
		})
	}
	var table *string
	if o.TableNumber != "" {
		t := o.TableNumber
		table = &t
	}
	return OrderResponse{
		ID:          o.ID,
		Items:       items,
		TableNumber: table,
		OrderType:   string(o.OrderType),
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount.InexactFloat64(),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		CompletedAt: o.CompletedAt,
		BilledAt:    o.BilledAt,
	}
}

// FromOrders maps a list, never returning nil so it encodes as [].
func FromOrders(orders []entity.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromOrder(o))
	}
	return out
}

// FromSummary maps the query layer's aggregate view.
func FromSummary(s query.Summary) AnalyticsResponse {
	top := make([]ItemCount, 0, len(s.TopItems))
	for _, it := range s.TopItems {
		top = append(top, ItemCount{ItemID: it.ItemID, ItemName: it.ItemName, Quantity: it.Quantity})
	}
	return AnalyticsResponse{
		Revenue:        s.Revenue.InexactFloat64(),
		CompletionRate: s.CompletionRate,
		TopItems:       top,
		Counts:         s.Counts,
	}
}
