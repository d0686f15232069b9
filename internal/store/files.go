// ABOUTME: Tracked-file records for crash-safe temp file cleanup
// ABOUTME: Files are recorded when downloaded or generated and forgotten once deleted

package store

import (
	"context"
	"fmt"
	"time"
)

// RecordFile upserts a tracked file record
func (s *SQLiteStore) RecordFile(ctx context.Context, rec *FileRecord) error {
	query := `
		INSERT INTO tracked_files (path, session_id, user_id, owner, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			session_id = excluded.session_id,
			user_id = excluded.user_id,
			owner = excluded.owner,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.Path,
		rec.SessionID,
		rec.UserID,
		rec.Owner,
		rec.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("recording file: %w", err)
	}
	return nil
}

// ForgetFiles deletes the records for paths. Unknown paths are ignored.
func (s *SQLiteStore) ForgetFiles(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM tracked_files WHERE path = ?`)
	if err != nil {
		return fmt.Errorf("preparing delete: %w", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		if _, err := stmt.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("forgetting %s: %w", p, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ListFiles returns all tracked file records, oldest first
func (s *SQLiteStore) ListFiles(ctx context.Context) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, session_id, user_id, owner, created_at
		FROM tracked_files
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying tracked files: %w", err)
	}
	defer rows.Close()

	var records []*FileRecord
	for rows.Next() {
		var rec FileRecord
		var createdAt string
		if err := rows.Scan(&rec.Path, &rec.SessionID, &rec.UserID, &rec.Owner, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning tracked file: %w", err)
		}
		rec.CreatedAt, err = time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tracked files: %w", err)
	}
	return records, nil
}
