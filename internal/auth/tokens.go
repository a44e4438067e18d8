// Package auth persists the bearer tokens for the remote NoghreSod API.
// A 401 from the remote clears the stored tokens; nothing re-authenticates
// automatically, the user has to log in again.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Tokens struct {
	AccessToken  string
	RefreshToken string
	// ExpiresAt is zero when the access token carries no exp claim.
	ExpiresAt time.Time
}

func (t Tokens) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

type Store interface {
	// Current returns the stored tokens, or nil when logged out.
	Current(ctx context.Context) (*Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Invalidate(ctx context.Context) error
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Current(ctx context.Context) (*Tokens, error) {
	var t Tokens
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at FROM auth_tokens WHERE id = 1`,
	).Scan(&t.AccessToken, &t.RefreshToken, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select tokens: %w", err)
	}
	if expiresAt.Valid {
		t.ExpiresAt = expiresAt.Time
	}
	return &t, nil
}

func (s *SQLStore) Save(ctx context.Context, t Tokens) error {
	if t.ExpiresAt.IsZero() {
		if exp, ok := expiryFromToken(t.AccessToken); ok {
			t.ExpiresAt = exp
		}
	}

	var expiresAt any
	if !t.ExpiresAt.IsZero() {
		expiresAt = t.ExpiresAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_tokens (id, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
	`, t.AccessToken, t.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert tokens: %w", err)
	}
	return nil
}

func (s *SQLStore) Invalidate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE id = 1`); err != nil {
		return fmt.Errorf("delete tokens: %w", err)
	}
	return nil
}

// expiryFromToken reads the exp claim without verifying the signature; the
// server remains the authority, this only schedules local refresh prompts.
func expiryFromToken(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
