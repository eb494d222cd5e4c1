// Package postgres implements repository.SubscriberRepository on PostgreSQL
// through database/sql and the lib/pq driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "postgres" driver with database/sql.
	_ "github.com/lib/pq"
)

// Store persists subscribers in a PostgreSQL table.
//
// The UNIQUE constraint on email is the real duplicate guard: Create inserts
// with ON CONFLICT DO NOTHING and reports zero affected rows as
// apperror.ErrConflict, so a lost race never surfaces as a driver error.
type Store struct {
	db *sql.DB
}

// New opens a connection pool for the given postgres:// URI, verifies it with
// a ping and bootstraps the subscribers table.
func New(ctx context.Context, uri string) (*Store, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("postgres: opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	s := NewWithDB(db)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return s, nil
}

// NewWithDB wraps an existing pool without touching the schema.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS subscribers (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating subscribers table: %w", err)
	}
	return nil
}
