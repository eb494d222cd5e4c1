// Package events publishes domain events about subscribers.
package events

import (
	"context"
	"time"
)

// EventSubscriberCreated is the type header value for SubscriberCreated.
const EventSubscriberCreated = "subscriber.created"

// SubscriberCreated is emitted once per newly stored subscriber.
type SubscriberCreated struct {
	Event     string    `json:"event"`
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"ts"`
}

// NewSubscriberCreated fills in the envelope fields.
func NewSubscriberCreated(id, email string, createdAt time.Time) SubscriberCreated {
	return SubscriberCreated{
		Event:     EventSubscriberCreated,
		Version:   1,
		ID:        id,
		Email:     email,
		CreatedAt: createdAt,
	}
}

// Publisher delivers events to downstream consumers. Publish runs inside the
// request that created the subscriber, so it should hand off rather than wait
// for a broker acknowledgement. Close drains whatever is still pending.
type Publisher interface {
	Publish(ctx context.Context, ev SubscriberCreated) error
	Close()
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, SubscriberCreated) error { return nil }
func (NopPublisher) Close()                                          {}
