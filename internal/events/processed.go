package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ProcessedStore remembers which event ids have already been applied, so a
// redelivered message is acked without touching the order mirror twice.
type ProcessedStore interface {
	WasProcessed(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

type sqlProcessedStore struct {
	db *sql.DB
}

func NewProcessedStore(db *sql.DB) ProcessedStore {
	return &sqlProcessedStore{db: db}
}

func (s *sqlProcessedStore) WasProcessed(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_events WHERE event_id = $1`, eventID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select processed_events: %w", err)
	}
	return true, nil
}

func (s *sqlProcessedStore) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_events (event_id, processed_at) VALUES ($1, NOW())
		 ON CONFLICT (event_id) DO NOTHING`, eventID)
	if err != nil {
		return fmt.Errorf("insert processed_events: %w", err)
	}
	return nil
}
