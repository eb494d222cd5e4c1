// Package model defines the data structures used throughout the application.
package model

import "time"

// Subscriber is a single newsletter sign-up.
//
// WHY AN ID IF EMAIL IS UNIQUE?
// Email is the natural key and the store enforces its uniqueness, but we still
// generate an internal xid so records have a stable, URL-safe handle that does
// not leak the address itself (e.g. in event keys or logs).
//
// Records are written once and never updated, so there is no UpdatedAt.
type Subscriber struct {
	ID        string    `json:"id"        db:"id"`
	Email     string    `json:"email"     db:"email"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
