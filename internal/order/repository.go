package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("order not found")

type Repository interface {
	List(ctx context.Context) ([]Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	// Save upserts the order header and replaces its items.
	Save(ctx context.Context, o *Order) error
	SaveAll(ctx context.Context, orders []Order) error
	// UpdateStatus applies a status change to an already-mirrored order.
	UpdateStatus(ctx context.Context, id string, status Status) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) List(ctx context.Context) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, subtotal, discount, total, created_at, fetched_at
		 FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Status, &o.Subtotal, &o.Discount, &o.Total, &o.CreatedAt, &o.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *repo) GetByID(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, subtotal, discount, total, created_at, fetched_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.Status, &o.Subtotal, &o.Discount, &o.Total, &o.CreatedAt, &o.FetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, name, quantity, unit_price FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return &o, nil
}

func (r *repo) Save(ctx context.Context, o *Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = saveTx(ctx, tx, o); err != nil {
		return err
	}

	err = tx.Commit()
	return err
}

func (r *repo) SaveAll(ctx context.Context, orders []Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i := range orders {
		if err = saveTx(ctx, tx, &orders[i]); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

func saveTx(ctx context.Context, tx *sql.Tx, o *Order) error {
	const upsert = `
		INSERT INTO orders (id, status, subtotal, discount, total, created_at, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    subtotal = EXCLUDED.subtotal,
		    discount = EXCLUDED.discount,
		    total = EXCLUDED.total,
		    fetched_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, upsert, o.ID, o.Status, o.Subtotal, o.Discount, o.Total, o.CreatedAt); err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, o.ID); err != nil {
		return fmt.Errorf("clear order_items: %w", err)
	}

	for _, it := range o.Items {
		id := it.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, o.ID, it.ProductID, it.Name, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}
	return nil
}

func (r *repo) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $2, fetched_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
