// Package sqlite implements repository.SubscriberRepository on SQLite.
//
// WHY SQLITE AS THE DEFAULT?
// SQLite is embedded: the whole store is one file next to the binary, so the
// service runs locally with zero infrastructure. Postgres and Redis backends
// exist for deployments that need a shared store.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// modernc.org/sqlite is a pure Go translation of SQLite, so builds need no CGo
// toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database. Handy for tests.
const MemoryPath = ":memory:"

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (creating if needed) the SQLite database at dbPath and bootstraps
// the subscribers table.
//
// dbPath examples:
//   - "data/applysync.db" → file-based database (persistent)
//   - ":memory:"          → in-memory database (lost on close)
//
// CONNECTION POOL AND :memory:
// Every new connection to ":memory:" gets its OWN empty database. database/sql
// opens connections on demand, so concurrent requests would each see a different
// database. We pin the pool to a single connection in that case.
func New(dbPath string) (*DB, error) {
	dsn := dbPath
	if dbPath != MemoryPath {
		// busy_timeout makes concurrent writers wait for the lock instead of
		// failing immediately with SQLITE_BUSY.
		sep := "?"
		if strings.Contains(dbPath, "?") {
			sep = "&"
		}
		dsn = dbPath + sep + "_pragma=busy_timeout(5000)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == MemoryPath {
		conn.SetMaxOpenConns(1)
	}

	// sql.Open does not connect; Ping forces it so a bad path fails here
	// instead of on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Ping checks the database is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the subscribers table.
//
// The UNIQUE constraint on email is the real duplicate guard: the service's
// lookup-before-insert can lose a race, this cannot. Default BINARY collation
// keeps comparisons case-sensitive.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS subscribers (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_subscribers_created_at ON subscribers(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating subscribers table: %w", err)
	}
	return nil
}
