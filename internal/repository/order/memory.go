package order

import (
	"context"
	"sync"

	"github.com/Additional-Code/bloom/internal/entity"
)

// MemoryStore keeps orders in process memory. All mutations hold the write
// lock for their full duration, so readers never see a partially applied order.
type MemoryStore struct {
	mu     sync.RWMutex
	orders []entity.Order
	index  map[int64]int
	nextID int64
}

// NewMemoryStore returns an empty store whose first order gets id 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[int64]int), nextID: 1}
}

func (s *MemoryStore) Create(_ context.Context, order *entity.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.ID = s.nextID
	s.nextID++
	s.index[order.ID] = len(s.orders)
	s.orders = append(s.orders, order.Clone())
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out, nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	o := s.orders[i].Clone()
	return &o, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id int64, change entity.StatusChange) (*entity.Order, error) {
	if err := checkChange(change); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.orders[i].Status != change.From {
		return nil, ErrStatusConflict
	}

	updated := s.orders[i].Clone()
	updated.ApplyStatus(change)
	s.orders[i] = updated

	o := updated.Clone()
	return &o, nil
}

// Clear drops every order and restarts numbering at 1.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = nil
	s.index = make(map[int64]int)
	s.nextID = 1
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
