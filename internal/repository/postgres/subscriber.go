package postgres

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

var _ repository.SubscriberRepository = (*Store)(nil)

func (s *Store) FindByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	var sub model.Subscriber
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM subscribers WHERE email = $1`, email,
	).Scan(&sub.ID, &sub.Email, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("subscriber", email)
		}
		return nil, fmt.Errorf("postgres: find subscriber: %w", err)
	}
	return &sub, nil
}

// Create inserts the subscriber. A row already holding the email makes the
// insert a no-op, which is reported as apperror.ErrConflict.
func (s *Store) Create(ctx context.Context, subscriber *model.Subscriber) error {
	subscriber.ID = xid.New().String()
	subscriber.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers (id, email, created_at) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING`,
		subscriber.ID, subscriber.Email, subscriber.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return apperror.Conflict("subscriber", subscriber.Email)
	}
	return nil
}
