package data

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrNoEventID      = errors.New("event row insert returned no id")
)

// RetryBackoff is the pause between attempts of a blocking update loop.
const RetryBackoff = 1 * time.Second

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store is the single shared handle to the record store. Several monitors'
// recorders share one connection, so every statement runs inside a short
// critical section: lock, execute, unlock. Nothing holds the lock across
// a retry sleep.
type Store struct {
	db DBTX
	mu sync.Mutex
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// Exec runs a single statement under the store lock.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.ExecContext(ctx, query, args...)
}

// QueryRow runs a single-row query under the store lock.
func (s *Store) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.QueryRowContext(ctx, query, args...)
}

// RetryUntil runs fn until it succeeds or ctx is cancelled, sleeping
// RetryBackoff between attempts. Cancellation is only observed between
// attempts; an in-flight statement is never interrupted. Callers use this
// for aggregate and finalization updates, which must not be dropped.
func (s *Store) RetryUntil(ctx context.Context, op string, fn func() error) error {
	for {
		err := fn()
		if err == nil {
			return nil
		}
		log.Printf("[ERROR] Store: %s failed, retrying in %v: %v", op, RetryBackoff, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(RetryBackoff):
		}
	}
}
