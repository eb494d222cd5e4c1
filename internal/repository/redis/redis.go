// Package redis implements repository.SubscriberRepository on Redis.
//
// Each subscriber is a JSON string under "subscriber:<email>". SETNX gives us
// an atomic insert-if-absent, which is the uniqueness guard.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces subscriber keys.
const KeyPrefix = "subscriber:"

// Store wraps a go-redis client.
type Store struct {
	client *goredis.Client
}

// New parses a redis:// or rediss:// URI, connects and pings.
func New(ctx context.Context, uri string) (*Store, error) {
	opts, err := goredis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("redis: parse URL: %w", err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func key(email string) string {
	return KeyPrefix + email
}
