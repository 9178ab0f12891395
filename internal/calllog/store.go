// Package calllog records one row per completed chat turn (the user's query
// and the assistant's response). The admin dashboard's totalCalls figure is
// a count over these rows.
package calllog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Recorder is the capability the conversation engine requires. Deployments
// that do not persist call logs supply Noop explicitly.
type Recorder interface {
	Record(ctx context.Context, userQuery, botResponse string) error
}

type execDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists call logs to Postgres.
type Store struct {
	db execDB
}

// NewStore creates a call log store backed by a pgx pool.
func NewStore(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("calllog: pgx pool required")
	}
	return &Store{db: pool}
}

// NewStoreWithDB allows injecting a mock database for testing.
func NewStoreWithDB(db execDB) *Store {
	return &Store{db: db}
}

// Record inserts one turn.
func (s *Store) Record(ctx context.Context, userQuery, botResponse string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO call_logs (user_query, bot_response, created_at) VALUES ($1, $2, $3)`,
		userQuery, botResponse, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("calllog: insert: %w", err)
	}
	return nil
}

// Noop is a Recorder that drops every record.
type Noop struct{}

func (Noop) Record(context.Context, string, string) error { return nil }
