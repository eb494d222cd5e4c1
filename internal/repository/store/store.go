// Package store picks a SubscriberRepository backend from a connection URI.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sakif/applysync/internal/repository"
	"github.com/sakif/applysync/internal/repository/postgres"
	"github.com/sakif/applysync/internal/repository/redis"
	"github.com/sakif/applysync/internal/repository/sqlite"
)

// ErrUnsupportedScheme is returned for URIs no backend understands.
var ErrUnsupportedScheme = errors.New("unsupported store scheme")

// Backend names, as reported in logs.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Backend returns the backend name for uri, or an error wrapping
// ErrUnsupportedScheme.
//
//	sqlite://data/applysync.db    → sqlite (file)
//	sqlite://:memory:             → sqlite (in-memory)
//	postgres://user:pw@host/db    → postgres (also postgresql://)
//	redis://host:6379/0           → redis (also rediss://)
func Backend(uri string) (string, error) {
	switch {
	case strings.HasPrefix(uri, "sqlite://"):
		return BackendSQLite, nil
	case strings.HasPrefix(uri, "postgres://"), strings.HasPrefix(uri, "postgresql://"):
		return BackendPostgres, nil
	case strings.HasPrefix(uri, "redis://"), strings.HasPrefix(uri, "rediss://"):
		return BackendRedis, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, Redact(uri))
}

// Open connects to the store named by uri. The returned repository has already
// answered a ping; callers own Close.
func Open(ctx context.Context, uri string) (repository.SubscriberRepository, error) {
	backend, err := Backend(uri)
	if err != nil {
		return nil, err
	}

	switch backend {
	case BackendSQLite:
		path := strings.TrimPrefix(uri, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("store: sqlite URI has no path")
		}
		if path != sqlite.MemoryPath {
			// Like `mkdir -p` for the database's parent directory.
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("store: creating sqlite directory: %w", err)
			}
		}
		db, err := sqlite.New(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendPostgres:
		s, err := postgres.New(ctx, uri)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := redis.New(ctx, uri)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Redact drops credentials so URIs are safe to log.
func Redact(uri string) string {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return uri
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + "://" + rest
}
