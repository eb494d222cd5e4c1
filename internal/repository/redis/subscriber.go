package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/xid"

	"github.com/sakif/applysync/internal/apperror"
	"github.com/sakif/applysync/internal/model"
	"github.com/sakif/applysync/internal/repository"
)

var _ repository.SubscriberRepository = (*Store)(nil)

func (s *Store) FindByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	raw, err := s.client.Get(ctx, key(email)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, apperror.NotFound("subscriber", email)
		}
		return nil, fmt.Errorf("redis: get subscriber: %w", err)
	}

	var sub model.Subscriber
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("redis: decode subscriber: %w", err)
	}
	return &sub, nil
}

// Create stores the subscriber only if its key does not exist yet.
func (s *Store) Create(ctx context.Context, subscriber *model.Subscriber) error {
	subscriber.ID = xid.New().String()
	subscriber.CreatedAt = time.Now().UTC()

	raw, err := json.Marshal(subscriber)
	if err != nil {
		return fmt.Errorf("redis: encode subscriber: %w", err)
	}

	// No expiry: subscribers live until someone deletes them by hand.
	ok, err := s.client.SetNX(ctx, key(subscriber.Email), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: setnx subscriber: %w", err)
	}
	if !ok {
		return apperror.Conflict("subscriber", subscriber.Email)
	}
	return nil
}
