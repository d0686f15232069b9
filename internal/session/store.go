// ABOUTME: In-memory SessionStore keyed by user identity
// ABOUTME: Serialises structural mutation globally and per-user work via keyed locks

package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a read-only copy of a session for diagnostics.
type Snapshot struct {
	ID          string
	UserID      string
	ChatID      string
	State       State
	Attachments int
	CreatedAt   time.Time
}

// userLock is a reference-counted mutex for a single user key.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// Store holds at most one session per user. Sessions are lost on restart.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	locks    map[string]*userLock
	limit    int
	now      func() time.Time
}

// NewStore creates an empty store whose sessions accept up to limit
// attachments. Values outside 1..MaxAttachments fall back to MaxAttachments.
func NewStore(limit int) *Store {
	if limit <= 0 || limit > MaxAttachments {
		limit = MaxAttachments
	}
	return &Store{
		sessions: make(map[string]*Session),
		locks:    make(map[string]*userLock),
		limit:    limit,
		now:      time.Now,
	}
}

// Limit returns the attachment limit applied to new sessions.
func (s *Store) Limit() int {
	return s.limit
}

// Lock acquires the per-user lock and returns the function that releases it.
// All reads and writes of a user's session happen under this lock.
func (s *Store) Lock(userID string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Unlock()
			s.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(s.locks, userID)
			}
			s.mu.Unlock()
		})
	}
}

// Get returns the user's session, if any.
func (s *Store) Get(userID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// CreateFresh replaces any existing record with a new Collecting session.
// It does not touch files: callers purge the previous session first.
func (s *Store) CreateFresh(userID, chatID string) *Session {
	sess := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		ChatID:    chatID,
		CreatedAt: s.now(),
		state:     StateCollecting,
		limit:     s.limit,
	}

	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
	return sess
}

// Remove deletes the user's session record. Removing a missing user is a no-op.
func (s *Store) Remove(userID string) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Snapshot returns copies of all live sessions ordered by creation time.
func (s *Store) Snapshot() []Snapshot {
	s.mu.Lock()
	out := make([]Snapshot, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, Snapshot{
			ID:          sess.ID,
			UserID:      sess.UserID,
			ChatID:      sess.ChatID,
			State:       sess.State(),
			Attachments: sess.Count(),
			CreatedAt:   sess.CreatedAt,
		})
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
