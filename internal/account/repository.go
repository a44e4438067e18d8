package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNoProfile = errors.New("no profile synced")

type Repository interface {
	// GetUser returns the mirrored profile, or nil when nobody is logged in.
	GetUser(ctx context.Context) (*User, error)
	SaveUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context) error

	ListAddresses(ctx context.Context) ([]Address, error)
	// ReplaceAddresses overwrites the address mirror for the current profile.
	// It fails with ErrNoProfile when no user row exists yet.
	ReplaceAddresses(ctx context.Context, addrs []Address) error
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

func (r *repo) GetUser(ctx context.Context) (*User, error) {
	var u User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, phone, email, fetched_at FROM users LIMIT 1`,
	).Scan(&u.ID, &u.Name, &u.Phone, &u.Email, &u.FetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *repo) SaveUser(ctx context.Context, u *User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// A login under a different account replaces the mirror wholesale;
	// addresses cascade with the old user row.
	if _, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id <> $1`, u.ID); err != nil {
		return fmt.Errorf("delete stale users: %w", err)
	}

	const upsert = `
		INSERT INTO users (id, name, phone, email, fetched_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    phone = EXCLUDED.phone,
		    email = EXCLUDED.email,
		    fetched_at = NOW()
	`
	if _, err = tx.ExecContext(ctx, upsert, u.ID, u.Name, u.Phone, u.Email); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	err = tx.Commit()
	return err
}

func (r *repo) DeleteUser(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("delete users: %w", err)
	}
	return nil
}

func (r *repo) ListAddresses(ctx context.Context) ([]Address, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, province, city, postal_code, line, recipient FROM addresses ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select addresses: %w", err)
	}
	defer rows.Close()

	var out []Address
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.Province, &a.City, &a.PostalCode, &a.Line, &a.Recipient); err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (r *repo) ReplaceAddresses(ctx context.Context, addrs []Address) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var userID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM users LIMIT 1`).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNoProfile
			return err
		}
		return fmt.Errorf("select user: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM addresses`); err != nil {
		return fmt.Errorf("clear addresses: %w", err)
	}

	for _, a := range addrs {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO addresses (id, user_id, province, city, postal_code, line, recipient)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			a.ID, userID, a.Province, a.City, a.PostalCode, a.Line, a.Recipient); err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
	}

	err = tx.Commit()
	return err
}
