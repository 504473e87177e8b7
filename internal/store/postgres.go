package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PodZamkom/Constitution/internal/apierr"
)

const turnsSchema = `
CREATE TABLE IF NOT EXISTS turns (
	id UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS turns_session_created_idx ON turns (session_id, created_at);
`

// PostgresStore persists turns in Postgres, one row per turn.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to the given DSN and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorageUnavailable, "connect to postgres", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apierr.Wrap(apierr.KindStorageUnavailable, "ping postgres", err)
	}
	if _, err := pool.Exec(ctx, turnsSchema); err != nil {
		pool.Close()
		return nil, apierr.Wrap(apierr.KindStorageUnavailable, "ensure turns schema", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Append inserts one turn row.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, role Role, content string) (Turn, error) {
	t := newTurn(sessionID, role, content)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO turns (id, session_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.SessionID, string(t.Role), t.Content, t.CreatedAt,
	)
	if err != nil {
		return Turn{}, apierr.Wrap(apierr.KindStorageUnavailable, "insert turn", err)
	}
	return t, nil
}

// Read returns the most recent MaxTurnsPerSession turns, oldest first.
func (s *PostgresStore) Read(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, role, content, created_at
		 FROM turns WHERE session_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		sessionID, MaxTurnsPerSession,
	)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindStorageUnavailable, "query turns", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		var role string
		if err := rows.Scan(&t.ID, &t.SessionID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, apierr.Wrap(apierr.KindStorageUnavailable, "scan turn", err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.Wrap(apierr.KindStorageUnavailable, "iterate turns", err)
	}
	// Query is newest-first so the LIMIT keeps the most recent turns;
	// callers expect chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *PostgresStore) Persistent() bool { return true }

func (s *PostgresStore) Close() { s.pool.Close() }
