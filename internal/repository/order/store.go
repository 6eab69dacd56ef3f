package order

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"

	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/database"
	"github.com/Additional-Code/bloom/internal/entity"
)

var (
	// ErrNotFound is returned when no order has the requested id.
	ErrNotFound = errors.New("order not found")
	// ErrStatusConflict is returned when the stored status no longer matches
	// the status a change was computed from, or the change is not a forward step.
	ErrStatusConflict = errors.New("order status conflict")
	// ErrUnavailable wraps failures to reach the backing storage.
	ErrUnavailable = errors.New("order storage unavailable")
)

// Store owns the canonical collection of orders. Implementations hand out
// copies only; List returns orders by ascending id (insertion order).
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	List(ctx context.Context) ([]entity.Order, error)
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	UpdateStatus(ctx context.Context, id int64, change entity.StatusChange) (*entity.Order, error)
	Clear(ctx context.Context) error
	Ping(ctx context.Context) error
}

// NewStore selects the backend named by ORDERS_BACKEND.
func NewStore(cfg config.Config, conns *database.Connections, logger *zap.Logger) (Store, error) {
	switch cfg.Orders.Backend {
	case "memory":
		logger.Info("using in-memory order store")
		return NewMemoryStore(), nil
	case "database":
		if conns == nil {
			return nil, errors.New("database order store requires connections")
		}
		logger.Info("using database order store", zap.String("driver", cfg.Database.Driver))
		return NewDatabaseStore(conns), nil
	default:
		return nil, fmt.Errorf("unsupported orders backend: %s", cfg.Orders.Backend)
	}
}

func checkChange(change entity.StatusChange) error {
	if !entity.CanTransition(change.From, change.To) {
		return fmt.Errorf("%w: %s -> %s", ErrStatusConflict, change.From, change.To)
	}
	return nil
}

// classify marks connectivity failures as ErrUnavailable and leaves other
// errors untouched.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
