// ABOUTME: Session model for an in-progress PDF collection conversation
// ABOUTME: Defines the closed State enum, Attachment records and the attachment bound

package session

import (
	"errors"
	"sync"
	"time"
)

// MaxAttachments is the hard upper bound on attachments held by one session.
const MaxAttachments = 99

// ErrLimitReached is returned when appending would exceed the session limit.
var ErrLimitReached = errors.New("attachment limit reached")

// State is the conversation state of a session.
// Idle is never stored: a user without an entry in the Store is idle.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateFinishing
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateFinishing:
		return "finishing"
	default:
		return "unknown"
	}
}

// Attachment is a user-uploaded file and its local copy.
type Attachment struct {
	LocalPath    string
	OriginalName string
	Size         int64
}

// Session is the per-user record of an in-progress collection.
// A Session must only be mutated while the owning user's Store lock is held;
// the internal mutex only makes diagnostics reads safe.
type Session struct {
	ID        string
	UserID    string
	ChatID    string
	CreatedAt time.Time

	mu          sync.RWMutex
	state       State
	attachments []Attachment
	limit       int
}

// State returns the current conversation state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState moves the session to st.
func (s *Session) SetState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Attachments returns a copy of the attachments in arrival order.
func (s *Session) Attachments() []Attachment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Attachment, len(s.attachments))
	copy(out, s.attachments)
	return out
}

// Paths returns the local paths of all attachments in arrival order.
func (s *Session) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, len(s.attachments))
	for i, a := range s.attachments {
		paths[i] = a.LocalPath
	}
	return paths
}

// Count returns the number of attachments collected so far.
func (s *Session) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attachments)
}

// Limit returns the maximum number of attachments this session accepts.
func (s *Session) Limit() int {
	return s.limit
}

// Full reports whether the session has reached its attachment limit.
func (s *Session) Full() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attachments) >= s.limit
}

// TotalBytes returns the summed size of all collected attachments.
func (s *Session) TotalBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, a := range s.attachments {
		total += a.Size
	}
	return total
}

// Append adds an attachment at the end of the collection.
// It never truncates: when the session is full the attachment is rejected.
func (s *Session) Append(a Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.attachments) >= s.limit {
		return ErrLimitReached
	}
	s.attachments = append(s.attachments, a)
	return nil
}
