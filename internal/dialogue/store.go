package dialogue

import (
	"sync"
	"time"

	"github.com/sells-group/haggle/internal/model"
)

// Store holds per-session conversation turns. Turns returns a copy the
// caller may modify freely.
type Store interface {
	// Lock serializes work on one session and keeps it from being evicted
	// until the returned func is called.
	Lock(sessionID string) (unlock func())
	Turns(sessionID string) []model.Message
	Append(sessionID string, msgs ...model.Message)
	Replace(sessionID string, turns []model.Message)
	// EvictIdle removes unlocked sessions not touched within maxIdle and
	// returns how many were removed.
	EvictIdle(maxIdle time.Duration) int
	Len() int
}

type session struct {
	mu       sync.Mutex
	turns    []model.Message
	lastSeen time.Time
	holders  int
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*session), now: time.Now}
}

// get returns the session, creating it lazily. Callers hold s.mu.
func (s *MemoryStore) get(id string) *session {
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	sess.lastSeen = s.now()
	return sess
}

func (s *MemoryStore) Lock(sessionID string) func() {
	s.mu.Lock()
	sess := s.get(sessionID)
	sess.holders++
	s.mu.Unlock()

	sess.mu.Lock()
	return func() {
		sess.mu.Unlock()
		s.mu.Lock()
		sess.holders--
		sess.lastSeen = s.now()
		s.mu.Unlock()
	}
}

func (s *MemoryStore) Turns(sessionID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.get(sessionID).turns
	out := make([]model.Message, len(turns))
	copy(out, turns)
	return out
}

func (s *MemoryStore) Append(sessionID string, msgs ...model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(sessionID)
	sess.turns = append(sess.turns, msgs...)
}

func (s *MemoryStore) Replace(sessionID string, turns []model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.get(sessionID)
	sess.turns = append([]model.Message(nil), turns...)
}

func (s *MemoryStore) EvictIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxIdle)
	n := 0
	for id, sess := range s.sessions {
		if sess.holders > 0 || sess.lastSeen.After(cutoff) {
			continue
		}
		delete(s.sessions, id)
		n++
	}
	return n
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
