package syncclient

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Additional-Code/bloom/internal/dto"
)

// Entry is an order created locally that the server may not know yet.
type Entry struct {
	LocalID  uuid.UUID
	Request  dto.CreateOrderRequest
	QueuedAt time.Time
	Synced   bool
	ServerID int64
}

// Outbox queues locally created orders until the server accepts them.
type Outbox struct {
	mu      sync.Mutex
	entries []Entry
}

// NewOutbox returns an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Enqueue records a new unsynced order.
func (o *Outbox) Enqueue(req dto.CreateOrderRequest, at time.Time) Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	e := Entry{LocalID: uuid.New(), Request: req, QueuedAt: at}
	o.entries = append(o.entries, e)
	return e
}

// Pending returns unsynced entries in queue order.
func (o *Outbox) Pending() []Entry {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Entry, 0, len(o.entries))
	for _, e := range o.entries {
		if !e.Synced {
			out = append(out, e)
		}
	}
	return out
}

// MarkSynced reconciles a local entry with the id the server assigned.
func (o *Outbox) MarkSynced(localID uuid.UUID, serverID int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range o.entries {
		if o.entries[i].LocalID == localID {
			o.entries[i].Synced = true
			o.entries[i].ServerID = serverID
			return true
		}
	}
	return false
}

// Drop removes an entry the server will never accept.
func (o *Outbox) Drop(localID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range o.entries {
		if o.entries[i].LocalID == localID {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			return
		}
	}
}

// Lookup returns the entry for a local id.
func (o *Outbox) Lookup(localID uuid.UUID) (Entry, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, e := range o.entries {
		if e.LocalID == localID {
			return e, true
		}
	}
	return Entry{}, false
}

// PruneSynced drops every entry the server has accepted and returns how
// many were dropped.
func (o *Outbox) PruneSynced() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := o.entries[:0]
	dropped := 0
	for _, e := range o.entries {
		if e.Synced {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	o.entries = kept
	return dropped
}
