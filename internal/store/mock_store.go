// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	files    map[string]*FileRecord // keyed by path
	outcomes []*Outcome

	// FailRecord makes RecordFile return this error when set
	FailRecord error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string]*FileRecord),
	}
}

// RecordFile stores a copy of rec.
func (m *MockStore) RecordFile(ctx context.Context, rec *FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRecord != nil {
		return m.FailRecord
	}
	r := *rec
	m.files[r.Path] = &r
	return nil
}

// ForgetFiles removes records for paths.
func (m *MockStore) ForgetFiles(ctx context.Context, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.files, p)
	}
	return nil
}

// ListFiles returns copies of all records, oldest first.
func (m *MockStore) ListFiles(ctx context.Context) ([]*FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*FileRecord, 0, len(m.files))
	for _, r := range m.files {
		c := *r
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// SaveOutcome appends a copy of o.
func (m *MockStore) SaveOutcome(ctx context.Context, o *Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *o
	m.outcomes = append(m.outcomes, &c)
	return nil
}

// GetOutcome returns the outcome with the given ID.
func (m *MockStore) GetOutcome(ctx context.Context, id string) (*Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.outcomes {
		if o.ID == id {
			c := *o
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// ListOutcomes returns outcomes newest first.
func (m *MockStore) ListOutcomes(ctx context.Context, filter OutcomeFilter) ([]*Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultOutcomeLimit
	}

	var out []*Outcome
	for i := len(m.outcomes) - 1; i >= 0 && len(out) < limit; i-- {
		o := m.outcomes[i]
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		c := *o
		out = append(out, &c)
	}
	return out, nil
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// Outcomes returns all recorded outcomes in insertion order.
func (m *MockStore) Outcomes() []*Outcome {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Outcome, len(m.outcomes))
	copy(out, m.outcomes)
	return out
}

var _ Store = (*MockStore)(nil)
var _ Store = (*SQLiteStore)(nil)
