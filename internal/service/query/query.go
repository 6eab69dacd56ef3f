// Package query derives read-only views over the order collection. The
// functions never modify their input and are safe to call concurrently.
package query

import (
	"cmp"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/bloom/internal/entity"
)

// ItemCount is the quantity sold of one menu item.
type ItemCount struct {
	ItemID   string `json:"itemId"`
	ItemName string `json:"itemName"`
	Quantity int    `json:"quantity"`
}

// Counts tallies orders per status.
type Counts struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Billed    int `json:"billed"`
	Total     int `json:"total"`
}

// Summary is the analytics view shown on the manager dashboard.
type Summary struct {
	Revenue        decimal.Decimal `json:"revenue"`
	CompletionRate int             `json:"completionRate"`
	TopItems       []ItemCount     `json:"topItems"`
	Counts         Counts          `json:"counts"`
}

// ByStatus returns the orders currently in status.
func ByStatus(orders []entity.Order, status entity.Status) []entity.Order {
	out := make([]entity.Order, 0)
	for _, o := range orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// ByDate returns orders created on the calendar day of day, both sides
// evaluated in loc.
func ByDate(orders []entity.Order, day time.Time, loc *time.Location) []entity.Order {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.In(loc).Date()
	out := make([]entity.Order, 0)
	for _, o := range orders {
		oy, om, od := o.CreatedAt.In(loc).Date()
		if oy == y && om == m && od == d {
			out = append(out, o)
		}
	}
	return out
}

// ParseDay reads a YYYY-MM-DD date as midnight in loc.
func ParseDay(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(time.DateOnly, raw, loc)
}

// RecentlyUpdated returns orders whose last change happened at or after since.
func RecentlyUpdated(orders []entity.Order, since time.Time) []entity.Order {
	out := make([]entity.Order, 0)
	for _, o := range orders {
		if !o.UpdatedAt.Before(since) {
			out = append(out, o)
		}
	}
	return out
}

// CountByStatus tallies orders per status.
func CountByStatus(orders []entity.Order) Counts {
	var c Counts
	for _, o := range orders {
		switch o.Status {
		case entity.StatusPending:
			c.Pending++
		case entity.StatusCompleted:
			c.Completed++
		case entity.StatusBilled:
			c.Billed++
		}
	}
	c.Total = len(orders)
	return c
}

// Aggregate computes revenue over billed orders, the share of orders that
// left pending (rounded half up, 0 when there are none) and the topN items
// by quantity. Items with equal quantity keep the order they were first seen in.
func Aggregate(orders []entity.Order, topN int) Summary {
	counts := CountByStatus(orders)

	revenue := decimal.Zero
	for _, o := range orders {
		if o.Status == entity.StatusBilled {
			revenue = revenue.Add(o.TotalAmount)
		}
	}

	rate := 0
	if counts.Total > 0 {
		done := counts.Completed + counts.Billed
		rate = (done*200 + counts.Total) / (2 * counts.Total)
	}

	return Summary{
		Revenue:        revenue,
		CompletionRate: rate,
		TopItems:       TopItems(orders, topN),
		Counts:         counts,
	}
}

// TopItems ranks items by total quantity across all orders.
func TopItems(orders []entity.Order, topN int) []ItemCount {
	index := make(map[string]int)
	ranked := make([]ItemCount, 0)
	for _, o := range orders {
		for _, line := range o.Items {
			i, ok := index[line.ItemID]
			if !ok {
				i = len(ranked)
				index[line.ItemID] = i
				ranked = append(ranked, ItemCount{ItemID: line.ItemID, ItemName: line.ItemName})
			}
			ranked[i].Quantity += line.Quantity
		}
	}

	slices.SortStableFunc(ranked, func(a, b ItemCount) int {
		return cmp.Compare(b.Quantity, a.Quantity)
	})

	if topN >= 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}
