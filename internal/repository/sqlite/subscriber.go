package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/applysync/internal/apperror"
	"github.com/sakif/applysync/internal/model"
	"github.com/sakif/applysync/internal/repository"
)

// compile-time check that *DB implements repository.SubscriberRepository
var _ repository.SubscriberRepository = (*DB)(nil)

// FindByEmail looks up a subscriber by exact email.
// Returns apperror.ErrNotFound if there is no such row.
func (db *DB) FindByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	var s model.Subscriber

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM subscribers WHERE email = ?`,
		email,
	).Scan(&s.ID, &s.Email, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("subscriber", email)
		}
		return nil, fmt.Errorf("sqlite: finding subscriber by email: %w", err)
	}

	return &s, nil
}

// Create inserts a new subscriber, generating its ID and CreatedAt.
//
// ON CONFLICT DO NOTHING:
// Instead of letting the UNIQUE constraint raise a driver-specific error, we ask
// SQLite to skip the row and then check RowsAffected. Zero rows means someone
// else already owns this email, which we report as apperror.ErrConflict.
func (db *DB) Create(ctx context.Context, subscriber *model.Subscriber) error {
	subscriber.ID = xid.New().String()
	subscriber.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO subscribers (id, email, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		subscriber.ID,
		subscriber.Email,
		subscriber.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting subscriber: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: reading rows affected: %w", err)
	}
	if n == 0 {
		return apperror.Conflict("subscriber", subscriber.Email)
	}

	return nil
}
