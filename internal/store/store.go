package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MaxTurnsPerSession caps the retained history per conversation. The oldest
// turns are evicted first once the cap is exceeded.
const MaxTurnsPerSession = 100

// Turn is one message in a conversation. It is immutable once created.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}

// Store persists conversation turns keyed by session identifier.
type Store interface {
	// Append records a new turn, creating the conversation if absent.
	Append(ctx context.Context, sessionID string, role Role, content string) (Turn, error)
	// Read returns the retained history, oldest first. Unknown sessions
	// yield an empty slice, never an error.
	Read(ctx context.Context, sessionID string) ([]Turn, error)
	// Persistent reports whether turns survive a process restart.
	Persistent() bool
	Close()
}

func newTurn(sessionID string, role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
