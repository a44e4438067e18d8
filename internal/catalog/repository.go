package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrNotFound = errors.New("not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository interface {
	ListByCategory(ctx context.Context, categoryID string) ([]Product, error)
	Get(ctx context.Context, productID string) (*Product, error)
	UpsertProducts(ctx context.Context, products []Product) error
	ListCategories(ctx context.Context) ([]Category, error)
	UpsertCategories(ctx context.Context, categories []Category) error
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const productColumns = `id, name, description, price, stock, rating, COALESCE(category_id, ''), image_url, fetched_at`

func (r *PostgresRepository) ListByCategory(ctx context.Context, categoryID string) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY name`
	args := []any{}
	if categoryID != "" {
		query = `SELECT ` + productColumns + ` FROM products WHERE category_id = $1 ORDER BY name`
		args = append(args, categoryID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Rating, &p.CategoryID, &p.ImageURL, &p.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}

func (r *PostgresRepository) Get(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Rating, &p.CategoryID, &p.ImageURL, &p.FetchedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select product: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) UpsertProducts(ctx context.Context, products []Product) error {
	if len(products) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO products (id, name, description, price, stock, rating, category_id, image_url, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    description = EXCLUDED.description,
		    price = EXCLUDED.price,
		    stock = EXCLUDED.stock,
		    rating = EXCLUDED.rating,
		    category_id = EXCLUDED.category_id,
		    image_url = EXCLUDED.image_url,
		    fetched_at = NOW()
	`
	for _, p := range products {
		if _, err := tx.Exec(ctx, upsert, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Rating, p.CategoryID, p.ImageURL); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, fetched_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return categories, nil
}

func (r *PostgresRepository) UpsertCategories(ctx context.Context, categories []Category) error {
	if len(categories) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const upsert = `
		INSERT INTO categories (id, name, fetched_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, fetched_at = NOW()
	`
	for _, c := range categories {
		if _, err := tx.Exec(ctx, upsert, c.ID, c.Name); err != nil {
			return fmt.Errorf("upsert category %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
