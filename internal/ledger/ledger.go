// ABOUTME: FileLedger tracks temp files owned by a session and guarantees their removal
// ABOUTME: Purges are best-effort and idempotent; failures are collected and logged, never raised

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lelobhai2456/Pdf-merger/internal/store"
)

// Recorder persists tracked paths so a later process can sweep files left
// behind by a crash. store.SQLiteStore implements it.
type Recorder interface {
	RecordFile(ctx context.Context, rec *store.FileRecord) error
	ForgetFiles(ctx context.Context, paths []string) error
	ListFiles(ctx context.Context) ([]*store.FileRecord, error)
}

// PurgeReport summarises a purge. Missing files count as cleaned.
type PurgeReport struct {
	Removed  int
	Missing  int
	Failures []error
}

// Err joins all failures, or returns nil when every path was cleaned.
func (r PurgeReport) Err() error {
	return errors.Join(r.Failures...)
}

// Ledger is the bookkeeping of files pending guaranteed deletion, grouped by
// session ID.
type Ledger struct {
	mu       sync.Mutex
	tracked  map[string][]string
	owner    string
	recorder Recorder
	logger   *slog.Logger
	remove   func(string) error
}

// New creates a ledger. recorder may be nil, in which case nothing is persisted.
func New(recorder Recorder, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		tracked:  make(map[string][]string),
		owner:    uuid.New().String(),
		recorder: recorder,
		logger:   logger.With("component", "ledger"),
		remove:   os.Remove,
	}
}

// Owner identifies this ledger instance in persisted records.
func (l *Ledger) Owner() string {
	return l.owner
}

// Track records path for later cleanup under sessionID.
// Tracking the same path twice for a session is a no-op.
func (l *Ledger) Track(ctx context.Context, sessionID, userID, path string) {
	l.mu.Lock()
	for _, p := range l.tracked[sessionID] {
		if p == path {
			l.mu.Unlock()
			return
		}
	}
	l.tracked[sessionID] = append(l.tracked[sessionID], path)
	l.mu.Unlock()

	if l.recorder == nil {
		return
	}
	rec := &store.FileRecord{
		Path:      path,
		SessionID: sessionID,
		UserID:    userID,
		Owner:     l.owner,
		CreatedAt: time.Now(),
	}
	if err := l.recorder.RecordFile(ctx, rec); err != nil {
		l.logger.Warn("failed to persist tracked file", "session_id", sessionID, "path", path, "error", err)
	}
}

// Tracked returns the paths currently tracked for sessionID.
func (l *Ledger) Tracked(sessionID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := l.tracked[sessionID]
	out := make([]string, len(paths))
	copy(out, paths)
	return out
}

// PurgeAll deletes every path tracked for sessionID. A failure on one path
// never stops the others. Calling it again for the same session is a no-op.
func (l *Ledger) PurgeAll(ctx context.Context, sessionID string) PurgeReport {
	l.mu.Lock()
	paths := l.tracked[sessionID]
	delete(l.tracked, sessionID)
	l.mu.Unlock()

	report, cleaned := l.removeAll(paths)
	l.forget(ctx, cleaned)

	if len(report.Failures) > 0 {
		l.logger.Warn("cleanup incomplete",
			"session_id", sessionID,
			"removed", report.Removed,
			"missing", report.Missing,
			"failed", len(report.Failures),
			"error", report.Err(),
		)
	} else if len(paths) > 0 {
		l.logger.Debug("session files purged", "session_id", sessionID, "removed", report.Removed, "missing", report.Missing)
	}
	return report
}

// Sweep deletes every persisted file that belongs to another ledger
// instance, i.e. files orphaned by a previous process.
func (l *Ledger) Sweep(ctx context.Context) (PurgeReport, error) {
	if l.recorder == nil {
		return PurgeReport{}, nil
	}
	records, err := l.recorder.ListFiles(ctx)
	if err != nil {
		return PurgeReport{}, fmt.Errorf("listing tracked files: %w", err)
	}

	var paths []string
	for _, rec := range records {
		if rec.Owner == l.owner {
			continue
		}
		paths = append(paths, rec.Path)
	}

	report, cleaned := l.removeAll(paths)
	l.forget(ctx, cleaned)

	if len(paths) > 0 {
		l.logger.Info("swept orphaned files",
			"removed", report.Removed,
			"missing", report.Missing,
			"failed", len(report.Failures),
		)
	}
	return report, nil
}

// removeAll deletes paths and returns the report plus the paths that are gone.
func (l *Ledger) removeAll(paths []string) (PurgeReport, []string) {
	var report PurgeReport
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		err := l.remove(p)
		switch {
		case err == nil:
			report.Removed++
			cleaned = append(cleaned, p)
		case errors.Is(err, os.ErrNotExist):
			report.Missing++
			cleaned = append(cleaned, p)
		default:
			report.Failures = append(report.Failures, err)
			l.logger.Warn("failed to remove file", "path", p, "error", err)
		}
	}
	return report, cleaned
}

// forget drops cleaned paths from the recorder. Paths that failed to delete
// stay recorded so a later sweep can retry them.
func (l *Ledger) forget(ctx context.Context, paths []string) {
	if l.recorder == nil || len(paths) == 0 {
		return
	}
	if err := l.recorder.ForgetFiles(ctx, paths); err != nil {
		l.logger.Warn("failed to forget purged files", "count", len(paths), "error", err)
	}
}
