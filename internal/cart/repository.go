package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// The local cart is a single-row mirror of the server cart; the fixed key
// keeps the upsert honest.
const localCartID = "local"

type Repository interface {
	// Get returns the mirrored cart, or nil when nothing has been synced yet.
	Get(ctx context.Context) (*Cart, error)
	// Replace overwrites the mirror with the server's cart in one transaction.
	Replace(ctx context.Context, c *Cart) error
	Clear(ctx context.Context) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) Get(ctx context.Context) (*Cart, error) {
	var c Cart
	err := r.db.QueryRowContext(ctx,
		`SELECT discount_code, subtotal, discount, total, fetched_at FROM cart WHERE id = $1`,
		localCartID,
	).Scan(&c.DiscountCode, &c.Subtotal, &c.Discount, &c.Total, &c.FetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select cart: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, quantity, unit_price, updated_at FROM cart_items ORDER BY updated_at`)
	if err != nil {
		return nil, fmt.Errorf("select cart_items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart_item: %w", err)
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return &c, nil
}

func (r *repo) Replace(ctx context.Context, c *Cart) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const upsertCart = `
		INSERT INTO cart (id, discount_code, subtotal, discount, total, fetched_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE
		SET discount_code = EXCLUDED.discount_code,
		    subtotal = EXCLUDED.subtotal,
		    discount = EXCLUDED.discount,
		    total = EXCLUDED.total,
		    fetched_at = NOW()
	`
	if _, err = tx.ExecContext(ctx, upsertCart, localCartID, c.DiscountCode, c.Subtotal, c.Discount, c.Total); err != nil {
		return fmt.Errorf("upsert cart: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items`); err != nil {
		return fmt.Errorf("clear cart_items: %w", err)
	}

	if len(c.Items) > 0 {
		stmt, prepErr := tx.PrepareContext(ctx,
			`INSERT INTO cart_items (id, product_id, quantity, unit_price, updated_at) VALUES ($1, $2, $3, $4, NOW())`)
		if prepErr != nil {
			err = prepErr
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, it := range c.Items {
			id := it.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err = stmt.ExecContext(ctx, id, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
				return fmt.Errorf("insert cart_item: %w", err)
			}
		}
	}

	err = tx.Commit()
	return err
}

func (r *repo) Clear(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM cart_items`); err != nil {
		return fmt.Errorf("clear cart_items: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM cart`); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	err = tx.Commit()
	return err
}
