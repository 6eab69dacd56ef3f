package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderType distinguishes orders served at a table from orders taken away.
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeTakeaway OrderType = "takeaway"
)

// Valid reports whether the order type is one of the known values.
func (t OrderType) Valid() bool {
	return t == OrderTypeDineIn || t == OrderTypeTakeaway
}

// OrderLine is a single menu item inside an order.
type OrderLine struct {
	ItemID   string          `json:"itemId"`
	ItemName string          `json:"itemName"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Subtotal returns quantity × unit price.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order represents a customer order stored by the order store.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID          int64           `bun:"id,pk,autoincrement" json:"id"`
	Items       []OrderLine     `bun:"items,notnull" json:"items"`
	TableNumber string          `bun:"table_number,nullzero" json:"tableNumber,omitempty"`
	OrderType   OrderType       `bun:"order_type,notnull" json:"orderType"`
	Status      Status          `bun:"status,notnull" json:"status"`
	TotalAmount decimal.Decimal `bun:"total_amount,notnull" json:"totalAmount"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull" json:"updatedAt"`
	CompletedAt *time.Time      `bun:"completed_at" json:"completedAt"`
	BilledAt    *time.Time      `bun:"billed_at" json:"billedAt"`
}

// CreateInput carries the caller supplied fields of a new order.
type CreateInput struct {
	Items       []OrderLine
	TableNumber string
	OrderType   OrderType
}

// NewOrder validates the input and builds a pending order stamped at now.
// The returned order has no id; the store assigns one on insert.
func NewOrder(in CreateInput, now time.Time) (*Order, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	items := make([]OrderLine, len(in.Items))
	copy(items, in.Items)

	table := in.TableNumber
	if in.OrderType != OrderTypeDineIn {
		table = ""
	}

	return &Order{
		Items:       items,
		TableNumber: table,
		OrderType:   in.OrderType,
		Status:      StatusPending,
		TotalAmount: Total(items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Total sums the subtotals of all lines.
func Total(items []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ApplyStatus writes the whitelisted fields of a status change onto the order.
// Callers are expected to have checked the transition with CanTransition.
func (o *Order) ApplyStatus(change StatusChange) {
	at := change.At
	o.Status = change.To
	o.UpdatedAt = at
	switch change.To {
	case StatusCompleted:
		o.CompletedAt = &at
	case StatusBilled:
		o.BilledAt = &at
	}
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (o Order) Clone() Order {
	out := o
	out.Items = make([]OrderLine, len(o.Items))
	copy(out.Items, o.Items)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		out.CompletedAt = &t
	}
	if o.BilledAt != nil {
		t := *o.BilledAt
		out.BilledAt = &t
	}
	return out
}
