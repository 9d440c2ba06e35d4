package admin

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/inovacc/pagewright/internal/content"
)

// Session is one signed-in operator. The snapshot is replaced as a whole
// after every write and never patched.
type Session struct {
	ID    string
	Token string
	Email string

	mu         sync.RWMutex
	snapshot   *content.Snapshot
	loadedAt   time.Time
	publishing atomic.Bool
}

func newSession(token, email string) *Session {
	return &Session{ID: uuid.NewString(), Token: token, Email: email}
}

// Snapshot returns the content loaded for this session.
func (s *Session) Snapshot() *content.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

// LoadedAt is when the snapshot was last loaded.
func (s *Session) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadedAt
}

// Publishing reports whether a publish is in flight for this session.
func (s *Session) Publishing() bool {
	return s.publishing.Load()
}

func (s *Session) replace(snap *content.Snapshot, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snap
	s.loadedAt = at
}

// Sessions is the table of open sessions keyed by session ID.
type Sessions struct {
	mu    sync.RWMutex
	items map[string]*Session
}

// NewSessions returns an empty table.
func NewSessions() *Sessions {
	return &Sessions{items: make(map[string]*Session)}
}

func (t *Sessions) Put(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items[s.ID] = s
}

func (t *Sessions) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.items[id]

	return s, ok
}

func (t *Sessions) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.items, id)
}

// Len returns the number of open sessions.
func (t *Sessions) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.items)
}
