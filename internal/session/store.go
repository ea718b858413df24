// Package session holds per-session conversation state for the
// lifetime of the process.
//
// The store is process-wide and safe for concurrent use. Map access is
// guarded by one RWMutex; each session additionally carries its own
// mutex so concurrent work on different sessions never contends on a
// generation path.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/upanishadai/tutor-server/internal/domain"
)

// ErrTeacherMessageOpen indicates a second outbound generation was
// started while one is still streaming for the same session.
var ErrTeacherMessageOpen = errors.New("teacher message already open")

type entry struct {
	mu   sync.Mutex
	sess *domain.Session
	// open is the index of the in-flight teacher message, -1 if none.
	open int
}

// Store owns all sessions. Sessions are created lazily and never
// persisted across restarts.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// ensure returns the entry for id, creating it if absent. Creation is
// idempotent: under concurrent first messages there is a single winner.
func (s *Store) ensure(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	now := s.now()
	e = &entry{
		sess: &domain.Session{
			ID:         id,
			CreatedAt:  now,
			LastActive: now,
		},
		open: -1,
	}
	s.entries[id] = e
	slog.Debug("session created", "session_id", id)
	return e
}

// Ensure creates the session if absent and overlays any set profile
// fields. Duplicate creation reuses the existing session.
func (s *Store) Ensure(id string, profile domain.StudentProfile) {
	e := s.ensure(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sess.Profile = e.sess.Profile.Merge(profile)
	e.sess.LastActive = s.now()
}

// Profile returns the session's current student profile. The zero
// profile is returned for an unknown id.
func (s *Store) Profile(id string) domain.StudentProfile {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return domain.StudentProfile{}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Profile
}

// AppendStudent appends an inbound student message, auto-creating the
// session if needed, and returns the recorded message.
func (s *Store) AppendStudent(id, content string) domain.Message {
	e := s.ensure(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	msg := domain.Message{
		Content:   content,
		Sender:    domain.SenderStudent,
		Timestamp: s.now(),
		Complete:  true,
	}
	e.sess.Messages = append(e.sess.Messages, msg)
	e.sess.LastActive = msg.Timestamp
	return msg
}

// StartTeacher opens the session's single in-flight teacher message.
// At most one teacher message may be incomplete at a time.
func (s *Store) StartTeacher(id string) error {
	e := s.ensure(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.open >= 0 {
		return ErrTeacherMessageOpen
	}
	e.sess.Messages = append(e.sess.Messages, domain.Message{
		Sender:    domain.SenderTeacher,
		Timestamp: s.now(),
	})
	e.open = len(e.sess.Messages) - 1
	e.sess.LastActive = s.now()
	return nil
}

// AppendTeacherChunk grows the in-flight teacher message. Chunks for a
// session without an open teacher message are dropped with a log line
// rather than corrupting the log.
func (s *Store) AppendTeacherChunk(id, chunk string) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		slog.Warn("teacher chunk for unknown session dropped", "session_id", id)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open < 0 {
		slog.Warn("teacher chunk with no open message dropped", "session_id", id)
		return
	}
	e.sess.Messages[e.open].Content += chunk
	e.sess.LastActive = s.now()
}

// CompleteTeacher marks the in-flight teacher message complete. The
// flag transitions false to true exactly once; a second call is a
// no-op.
func (s *Store) CompleteTeacher(id string) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open < 0 {
		return
	}
	e.sess.Messages[e.open].Complete = true
	e.open = -1
	e.sess.LastActive = s.now()
}

// History returns a materialized copy of the most recent limit
// messages in arrival order. Unknown ids yield an empty slice.
func (s *Store) History(id string, limit int) []domain.Message {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || limit <= 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := e.sess.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// EvictIdle removes sessions whose last activity is older than ttl and
// returns the evicted ids.
func (s *Store) EvictIdle(ttl time.Duration) []string {
	cutoff := s.now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, e := range s.entries {
		e.mu.Lock()
		idle := e.sess.LastActive.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.entries, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}
