// ABOUTME: Store interface and data types for pdfmerge persistence
// ABOUTME: Defines FileRecord (crash-safe temp file bookkeeping) and Outcome (terminal session log)

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// timeFormat is fixed-width so stored timestamps sort lexicographically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// FileRecord is a temp file that must be deleted eventually.
// Owner identifies the ledger instance (process) that created the record.
type FileRecord struct {
	Path      string
	SessionID string
	UserID    string
	Owner     string
	CreatedAt time.Time
}

// OutcomeKind classifies how a session ended
type OutcomeKind string

const (
	OutcomeMerged         OutcomeKind = "merged"          // merged and delivered
	OutcomeMergeFailed    OutcomeKind = "merge_failed"    // merge capability reported an error
	OutcomeDeliveryFailed OutcomeKind = "delivery_failed" // merged but the document could not be sent
	OutcomeEmpty          OutcomeKind = "empty"           // finish with no attachments
	OutcomeCancelled      OutcomeKind = "cancelled"       // explicit cancel
	OutcomeRestarted      OutcomeKind = "restarted"       // discarded by a new start command
)

// Outcome is a terminal transition of a session, kept for diagnostics
type Outcome struct {
	ID          string
	Frontend    string
	UserID      string
	SessionID   string
	Kind        OutcomeKind
	Attachments int
	Detail      string
	CreatedAt   time.Time
}

// OutcomeFilter narrows ListOutcomes. Zero values mean "any" and a default limit.
type OutcomeFilter struct {
	UserID string
	Limit  int
}

// Store defines the persistence operations used by the service
type Store interface {
	// Tracked files
	RecordFile(ctx context.Context, rec *FileRecord) error
	ForgetFiles(ctx context.Context, paths []string) error
	ListFiles(ctx context.Context) ([]*FileRecord, error)

	// Outcomes
	SaveOutcome(ctx context.Context, o *Outcome) error
	GetOutcome(ctx context.Context, id string) (*Outcome, error)
	ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]*Outcome, error)

	// Close releases any resources held by the store
	Close() error
}
