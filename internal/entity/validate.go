package entity

import (
	"fmt"
	"strings"
)

// FieldProblem describes one invalid field of a create request.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a create request.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid order"
	}
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Message)
	}
	return "invalid order: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Message: message})
}

// Validate checks a create request and returns a *ValidationError listing
// every problem, or nil.
func Validate(in CreateInput) error {
	verr := &ValidationError{}

	if len(in.Items) == 0 {
		verr.add("items", "at least one item is required")
	}
	for i, item := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.ItemID) == "" {
			verr.add(field+".itemId", "is required")
		}
		if item.Quantity < 1 {
			verr.add(field+".quantity", "must be at least 1")
		}
		if item.Price.IsNegative() {
			verr.add(field+".price", "must not be negative")
		}
	}

	switch {
	case !in.OrderType.Valid():
		verr.add("orderType", fmt.Sprintf("must be %q or %q", OrderTypeDineIn, OrderTypeTakeaway))
	case in.OrderType == OrderTypeDineIn && strings.TrimSpace(in.TableNumber) == "":
		verr.add("tableNumber", "is required for dine-in orders")
	}

	if len(verr.Problems) > 0 {
		return verr
	}
	return nil
}
