package store

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// maxSessions bounds how many live conversations the process retains.
	maxSessions = 1024
	// sessionIdleTTL evicts conversations nobody has touched in a day.
	sessionIdleTTL = 24 * time.Hour
)

// MemoryStore keeps conversations in process memory. Whole conversations are
// evicted least-recently-used once maxSessions is reached or after
// sessionIdleTTL of inactivity; within a conversation the turn cap is FIFO.
type MemoryStore struct {
	mu       sync.Mutex
	sessions *expirable.LRU[string, *conversation]
}

type conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: expirable.NewLRU[string, *conversation](maxSessions, nil, sessionIdleTTL),
	}
}

func (s *MemoryStore) conversation(sessionID string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.sessions.Get(sessionID); ok {
		return c
	}
	c := &conversation{}
	s.sessions.Add(sessionID, c)
	return c
}

// Append records a new turn, evicting the oldest once the cap is exceeded.
func (s *MemoryStore) Append(_ context.Context, sessionID string, role Role, content string) (Turn, error) {
	c := s.conversation(sessionID)
	t := newTurn(sessionID, role, content)
	c.mu.Lock()
	c.turns = append(c.turns, t)
	if over := len(c.turns) - MaxTurnsPerSession; over > 0 {
		c.turns = append(c.turns[:0:0], c.turns[over:]...)
	}
	c.mu.Unlock()
	return t, nil
}

// Read returns the retained turns oldest first; empty for unknown sessions.
func (s *MemoryStore) Read(_ context.Context, sessionID string) ([]Turn, error) {
	s.mu.Lock()
	c, ok := s.sessions.Get(sessionID)
	s.mu.Unlock()
	if !ok {
		return []Turn{}, nil
	}
	c.mu.Lock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	c.mu.Unlock()
	return out, nil
}

func (s *MemoryStore) Persistent() bool { return false }

func (s *MemoryStore) Close() {}
