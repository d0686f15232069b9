// ABOUTME: Outcome log recording how each session ended
// ABOUTME: Backs the diagnostics API with merged/failed/cancelled history per user

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultOutcomeLimit = 50
	maxOutcomeLimit     = 500
)

// SaveOutcome persists an outcome
func (s *SQLiteStore) SaveOutcome(ctx context.Context, o *Outcome) error {
	query := `
		INSERT INTO outcomes (id, frontend, user_id, session_id, kind, attachments, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		o.ID,
		o.Frontend,
		o.UserID,
		o.SessionID,
		string(o.Kind),
		o.Attachments,
		o.Detail,
		o.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

// GetOutcome retrieves a single outcome by ID
func (s *SQLiteStore) GetOutcome(ctx context.Context, id string) (*Outcome, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, frontend, user_id, session_id, kind, attachments, detail, created_at
		FROM outcomes WHERE id = ?
	`, id)

	o, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOutcomes returns outcomes newest first, optionally for a single user
func (s *SQLiteStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]*Outcome, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOutcomeLimit
	}
	if limit > maxOutcomeLimit {
		limit = maxOutcomeLimit
	}

	query := `
		SELECT id, frontend, user_id, session_id, kind, attachments, detail, created_at
		FROM outcomes
	`
	args := []any{}
	if filter.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, filter.UserID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []*Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating outcomes: %w", err)
	}
	return outcomes, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*Outcome, error) {
	var o Outcome
	var kind, createdAt string
	if err := row.Scan(&o.ID, &o.Frontend, &o.UserID, &o.SessionID, &kind, &o.Attachments, &o.Detail, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning outcome: %w", err)
	}
	o.Kind = OutcomeKind(kind)

	var err error
	o.CreatedAt, err = time.Parse(timeFormat, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &o, nil
}
