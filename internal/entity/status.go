package entity

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusBilled    Status = "billed"
)

// next holds the only allowed successor of each non-terminal status.
var next = map[Status]Status{
	StatusPending:   StatusCompleted,
	StatusCompleted: StatusBilled,
}

var rank = map[Status]int{
	StatusPending:   0,
	StatusCompleted: 1,
	StatusBilled:    2,
}

// ParseStatus converts raw input into a known Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := rank[s]; !ok {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	_, ok := next[s]
	return s.Valid() && !ok
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s Status) Before(other Status) bool {
	a, okA := rank[s]
	b, okB := rank[other]
	return okA && okB && a < b
}

// CanTransition reports whether from → to is a single forward step.
func CanTransition(from, to Status) bool {
	n, ok := next[from]
	return ok && n == to
}

// StatusChange is the only partial update the store accepts: a forward step
// from a known status, stamped at a single instant.
type StatusChange struct {
	From Status
	To   Status
	At   time.Time
}
