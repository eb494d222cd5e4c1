// Package repository declares the storage contracts the service layer depends on.
// Concrete backends live in the sqlite, postgres and redis subpackages.
package repository

//go:generate mockgen -source=repository.go -destination=mock/mock_repository.go -package=mock SubscriberRepository

import (
	"context"

	"github.com/sakif/applysync/internal/model"
)

// SubscriberRepository persists subscribers keyed by exact email.
//
// Implementations MUST enforce email uniqueness themselves: Create returns an
// error wrapping apperror.ErrConflict when the email already exists, even if
// two callers race past FindByEmail at the same time.
type SubscriberRepository interface {
	// FindByEmail returns apperror.ErrNotFound when no record matches.
	FindByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	// Create fills in ID and CreatedAt on the passed subscriber.
	Create(ctx context.Context, subscriber *model.Subscriber) error
	// Ping reports whether the store is reachable right now.
	Ping(ctx context.Context) error
	Close() error
}
