package syncclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/dto"
)

const lastKnownKey = "orders"

// Snapshot is the order list a terminal should display.
type Snapshot struct {
	Orders    []dto.OrderResponse
	Pending   int
	Stale     bool
	FetchedAt time.Time
}

// Syncer polls the API, flushes the outbox and falls back to the last list
// it saw when the server cannot be reached. Submit, Flush and Refresh are
// serialised so a queued order is never posted twice.
type Syncer struct {
	mu sync.Mutex

	client    *Client
	outbox    *Outbox
	lastKnown *expirable.LRU[string, Snapshot]
	cfg       config.Sync
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a Syncer from the sync configuration.
func New(cfg config.Sync, logger *zap.Logger) *Syncer {
	return NewWithClient(NewClient(cfg.ServerURL, cfg.RequestTimeout), cfg, logger)
}

// NewWithClient builds a Syncer around an existing client.
func NewWithClient(client *Client, cfg config.Sync, logger *zap.Logger) *Syncer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Syncer{
		client:    client,
		outbox:    NewOutbox(),
		lastKnown: expirable.NewLRU[string, Snapshot](1, nil, 0),
		cfg:       cfg,
		logger:    logger.Named("sync"),
		now:       time.Now,
	}
}

// Client exposes the underlying API client for one-off calls.
func (s *Syncer) Client() *Client { return s.client }

// Outbox exposes the queue of locally created orders.
func (s *Syncer) Outbox() *Outbox { return s.outbox }

// Submit queues an order and tries to deliver it right away. A transient
// failure leaves the order queued for the next Refresh and is not an error;
// an error means the server rejected the order.
func (s *Syncer) Submit(ctx context.Context, req dto.CreateOrderRequest) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.outbox.Enqueue(req, s.now())
	_, err := s.flush(ctx)
	if current, ok := s.outbox.Lookup(e.LocalID); ok {
		return current, nil
	}
	return e, err
}

// Flush sends queued orders in queue order and stops at the first transient
// failure. Orders the server rejects are dropped from the queue; the first
// rejection is returned after the rest have been tried.
func (s *Syncer) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush(ctx)
}

func (s *Syncer) flush(ctx context.Context) (int, error) {
	var rejected error
	sent := 0
	for _, e := range s.outbox.Pending() {
		created, err := retry(ctx, s.cfg, func() (dto.OrderResponse, error) {
			return s.client.CreateOrder(ctx, e.Request)
		})
		if err != nil {
			if retryable(err) {
				return sent, err
			}
			s.logger.Warn("server rejected queued order", zap.String("local_id", e.LocalID.String()), zap.Error(err))
			s.outbox.Drop(e.LocalID)
			if rejected == nil {
				rejected = err
			}
			continue
		}
		s.outbox.MarkSynced(e.LocalID, created.ID)
		sent++
	}
	return sent, rejected
}

// Refresh flushes the outbox and fetches the current list. When the list
// cannot be fetched the last known one is returned marked stale.
func (s *Syncer) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.flush(ctx); err != nil {
		s.logger.Debug("outbox flush incomplete", zap.Error(err))
	}

	orders, err := retry(ctx, s.cfg, func() ([]dto.OrderResponse, error) {
		return s.client.ListOrders(ctx)
	})
	if err != nil {
		last, ok := s.lastKnown.Get(lastKnownKey)
		if !ok {
			return Snapshot{}, err
		}
		s.logger.Warn("order list unavailable; using last known", zap.Time("fetched_at", last.FetchedAt), zap.Error(err))
		last.Stale = true
		last.Pending = len(s.outbox.Pending())
		return last, nil
	}

	// the list was fetched after the flush, so it already reflects every
	// synced entry, or their removal by a clear
	s.outbox.PruneSynced()

	snap := Snapshot{Orders: orders, Pending: len(s.outbox.Pending()), FetchedAt: s.now()}
	s.lastKnown.Add(lastKnownKey, snap)
	return snap, nil
}

// Run refreshes on every poll interval until ctx is cancelled, handing each
// snapshot to onUpdate.
func (s *Syncer) Run(ctx context.Context, onUpdate func(Snapshot)) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info("sync started", zap.String("server", s.client.baseURL), zap.Duration("interval", s.cfg.PollInterval))
	for {
		snap, err := s.Refresh(ctx)
		switch {
		case err == nil:
			if onUpdate != nil {
				onUpdate(snap)
			}
		case errors.Is(err, context.Canceled):
		default:
			s.logger.Error("sync failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// retry runs op with bounded exponential backoff. Answers that will not
// change on retry stop it immediately.
func retry[T any](ctx context.Context, cfg config.Sync, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if cfg.InitialBackoff > 0 {
		b.InitialInterval = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		b.MaxInterval = cfg.MaxBackoff
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(cfg.MaxRetries)))
}
