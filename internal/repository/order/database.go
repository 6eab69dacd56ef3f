package order

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/bloom/internal/database"
	"github.com/Additional-Code/bloom/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/bloom/repository/order")

// DatabaseStore persists orders through Bun. Writes go to the writer pool;
// reads use the reader pool except where a write must be read back.
type DatabaseStore struct {
	writer *bun.DB
	reader *bun.DB
}

// NewDatabaseStore wires a store backed by configured database connections.
func NewDatabaseStore(conns *database.Connections) *DatabaseStore {
	return &DatabaseStore{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create inserts the order and fills in the id assigned by the database.
func (r *DatabaseStore) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderStore.Create", trace.WithAttributes(
		attribute.String("order.type", string(order.OrderType)),
		attribute.Int("order.items", len(order.Items)),
	))
	defer span.End()

	order.ID = 0
	if _, err := r.writer.NewInsert().Model(order).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return classify(err)
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	return nil
}

// List returns every order by ascending id.
func (r *DatabaseStore) List(ctx context.Context) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderStore.List")
	defer span.End()

	orders := make([]entity.Order, 0)
	if err := r.reader.NewSelect().Model(&orders).OrderExpr("id ASC").Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, classify(err)
	}
	span.SetAttributes(attribute.Int("orders.count", len(orders)))
	return orders, nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *DatabaseStore) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderStore.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := r.get(ctx, r.reader, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
	}
	return order, err
}

// UpdateStatus performs a compare-and-set on the status column so two
// concurrent transitions of the same order cannot both stamp a timestamp.
func (r *DatabaseStore) UpdateStatus(ctx context.Context, id int64, change entity.StatusChange) (*entity.Order, error) {
	if err := checkChange(change); err != nil {
		return nil, err
	}
	ctx, span := repoTracer.Start(ctx, "OrderStore.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status.from", string(change.From)),
		attribute.String("order.status.to", string(change.To)),
	))
	defer span.End()

	q := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", change.To).
		Set("updated_at = ?", change.At).
		Where("id = ?", id).
		Where("status = ?", change.From)
	switch change.To {
	case entity.StatusCompleted:
		q = q.Set("completed_at = ?", change.At)
	case entity.StatusBilled:
		q = q.Set("billed_at = ?", change.At)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, classify(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, classify(err)
	}

	current, err := r.get(ctx, r.writer, id)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		span.SetStatus(codes.Error, "status conflict")
		return nil, ErrStatusConflict
	}
	return current, nil
}

// Clear removes all orders and restarts the id sequence.
func (r *DatabaseStore) Clear(ctx context.Context) error {
	ctx, span := repoTracer.Start(ctx, "OrderStore.Clear")
	defer span.End()

	var err error
	switch r.writer.Dialect().Name() {
	case dialect.PG:
		_, err = r.writer.ExecContext(ctx, "TRUNCATE TABLE orders RESTART IDENTITY")
	case dialect.MySQL:
		_, err = r.writer.ExecContext(ctx, "TRUNCATE TABLE orders")
	default:
		// sqlite reuses max(rowid)+1 for an INTEGER PRIMARY KEY, so an empty table restarts at 1.
		_, err = r.writer.NewDelete().Model((*entity.Order)(nil)).Where("1 = 1").Exec(ctx)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear failed")
		return classify(err)
	}
	return nil
}

// Ping checks the writer connection.
func (r *DatabaseStore) Ping(ctx context.Context) error {
	return classify(r.writer.PingContext(ctx))
}

func (r *DatabaseStore) get(ctx context.Context, db *bun.DB, id int64) (*entity.Order, error) {
	order := new(entity.Order)
	err := db.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return order, nil
}
