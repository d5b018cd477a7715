package order

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/upfit/internal/database"
	"github.com/Additional-Code/upfit/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/upfit/repository/order")

var searchColumns = []string{"o.id", "o.dealer_code", "o.manufacturer", "o.body_type", "o.series", "o.powertrain"}

// BunRepository is the relational Repository backed by bun.
type BunRepository struct {
	writer bun.IDB
	reader bun.IDB
	inTx   bool
	lock   bool
}

// NewBunRepository wires a repository backed by configured database connections.
func NewBunRepository(conns *database.Connections) *BunRepository {
	return &BunRepository{
		writer: conns.Writer,
		reader: conns.Reader,
		lock:   conns.Writer.Dialect().Name() != dialect.SQLite,
	}
}

// Create inserts a new order using the write connection.
func (r *BunRepository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	return spanErr(span, err, "insert failed")
}

// Update writes every column of an existing order.
func (r *BunRepository) Update(ctx context.Context, order *entity.Order) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.String("order.id", order.ID)))
	defer span.End()

	res, err := r.writer.NewUpdate().Model(order).WherePK().Exec(ctx)
	if err != nil {
		return spanErr(span, err, "update failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// Get fetches an order by primary key, reading through the writer inside a transaction.
func (r *BunRepository) Get(ctx context.Context, id string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Get", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	q := r.db().NewSelect().Model(order).Where("o.id = ?", id)
	if r.inTx && r.lock {
		q = q.For("UPDATE")
	}
	return scanOrder(ctx, span, q, order)
}

// Lookup matches id, stock number or VIN ignoring case.
func (r *BunRepository) Lookup(ctx context.Context, key string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Lookup", trace.WithAttributes(attribute.String("order.key", key)))
	defer span.End()

	lc := strings.ToLower(strings.TrimSpace(key))
	if lc == "" {
		return nil, ErrNotFound
	}
	order := new(entity.Order)
	q := r.db().NewSelect().Model(order).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(o.id) = ?", lc).
				WhereOr("LOWER(o.stock_number) = ?", lc).
				WhereOr("LOWER(o.vin) = ?", lc)
		}).
		OrderExpr("o.created_at DESC, o.id DESC").
		Limit(1)
	return scanOrder(ctx, span, q, order)
}

// List applies the filter in SQL, newest first.
func (r *BunRepository) List(ctx context.Context, f Filter) ([]*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []*entity.Order
	q := r.db().NewSelect().Model(&orders)
	if f.Status != "" {
		q = q.Where("o.status = ?", f.Status)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("o.status IN (?)", bun.In(f.Statuses))
	}
	if f.DealerCode != "" {
		q = q.Where("o.dealer_code = ?", f.DealerCode)
	}
	if f.UpfitterID != "" {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("o.upfitter_id = ?", f.UpfitterID).WhereOr("o.build_upfitter_id = ?", f.UpfitterID)
		})
	}
	if f.IsStock != nil {
		q = q.Where("o.is_stock = ?", *f.IsStock)
	}
	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, col := range searchColumns {
				q = q.WhereOr("LOWER("+col+") LIKE ? ESCAPE '!'", pattern)
			}
			return q
		})
	}
	if f.From != nil {
		q = q.Where("o.created_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("o.created_at <= ?", f.To.UTC())
	}
	if f.OEMEtaBefore != nil {
		q = q.Where("o.oem_eta IS NOT NULL").Where("o.oem_eta < ?", f.OEMEtaBefore.UTC())
	}

	if err := q.OrderExpr("o.created_at DESC, o.id DESC").Scan(ctx); err != nil {
		return nil, spanErr(span, err, "select failed")
	}
	span.SetAttributes(attribute.Int("order.count", len(orders)))
	return orders, nil
}

// StockNumbers returns the stock numbers starting with prefix, reading
// through the writer inside a transaction.
func (r *BunRepository) StockNumbers(ctx context.Context, prefix string) ([]string, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.StockNumbers", trace.WithAttributes(attribute.String("order.stock_prefix", prefix)))
	defer span.End()

	var stock []string
	err := r.db().NewSelect().Model((*entity.Order)(nil)).
		Column("o.stock_number").
		Where("o.stock_number LIKE ? ESCAPE '!'", escapeLike(prefix)+"%").
		Scan(ctx, &stock)
	if err != nil {
		return nil, spanErr(span, err, "select failed")
	}
	return stock, nil
}

// Delete removes orders and cascades to their events and notes.
func (r *BunRepository) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.StringSlice("order.ids", ids)))
	defer span.End()

	var deleted int
	err := r.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		tx := repo.(*BunRepository).writer
		if _, err := tx.NewDelete().Model((*entity.OrderEvent)(nil)).Where("order_id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*entity.OrderNote)(nil)).Where("order_id IN (?)", bun.In(ids)).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("id IN (?)", bun.In(ids)).Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = int(n)
		return nil
	})
	if err != nil {
		return 0, spanErr(span, err, "delete failed")
	}
	return deleted, nil
}

// AppendEvent stores a transition record.
func (r *BunRepository) AppendEvent(ctx context.Context, event *entity.OrderEvent) error {
	_, err := r.writer.NewInsert().Model(event).Exec(ctx)
	return err
}

// Events returns the order's transitions oldest first.
func (r *BunRepository) Events(ctx context.Context, orderID string) ([]*entity.OrderEvent, error) {
	var events []*entity.OrderEvent
	err := r.db().NewSelect().Model(&events).
		Where("e.order_id = ?", orderID).
		OrderExpr("e.at ASC, e.id ASC").
		Scan(ctx)
	return events, err
}

// AddNote stores a note.
func (r *BunRepository) AddNote(ctx context.Context, note *entity.OrderNote) error {
	_, err := r.writer.NewInsert().Model(note).Exec(ctx)
	return err
}

// Notes returns the order's notes oldest first.
func (r *BunRepository) Notes(ctx context.Context, orderID string) ([]*entity.OrderNote, error) {
	var notes []*entity.OrderNote
	err := r.db().NewSelect().Model(&notes).
		Where("n.order_id = ?", orderID).
		OrderExpr("n.at ASC, n.id ASC").
		Scan(ctx)
	return notes, err
}

// NextValue increments the counter row in place so concurrent callers
// serialise on the row lock taken by the UPDATE.
func (r *BunRepository) NextValue(ctx context.Context, name string, start int64) (int64, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.NextValue", trace.WithAttributes(attribute.String("sequence.name", name)))
	defer span.End()

	var value int64
	err := r.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		tx := repo.(*BunRepository).writer
		seed := &entity.Sequence{Name: name, NextValue: start}
		if _, err := tx.NewInsert().Model(seed).Ignore().Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewUpdate().Model((*entity.Sequence)(nil)).
			Set("next_value = next_value + 1").
			Where("name = ?", name).
			Exec(ctx); err != nil {
			return err
		}
		var next int64
		if err := tx.NewSelect().Model((*entity.Sequence)(nil)).
			Column("next_value").
			Where("name = ?", name).
			Scan(ctx, &next); err != nil {
			return err
		}
		value = next - 1
		return nil
	})
	if err != nil {
		return 0, spanErr(span, err, "sequence failed")
	}
	return value, nil
}

// WithTx runs fn inside a database transaction. Nested calls join the
// outer transaction.
func (r *BunRepository) WithTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &BunRepository{writer: tx, reader: tx, inTx: true, lock: r.lock})
	})
}

func (r *BunRepository) db() bun.IDB {
	if r.inTx {
		return r.writer
	}
	return r.reader
}

func scanOrder(ctx context.Context, span trace.Span, q *bun.SelectQuery, order *entity.Order) (*entity.Order, error) {
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, spanErr(span, err, "select failed")
	}
	return order, nil
}

func spanErr(span trace.Span, err error, msg string) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
