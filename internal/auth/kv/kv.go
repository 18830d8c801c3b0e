// Package kv defines the ephemeral TTL store used for authorization codes
// and device authorizations. Implementations must expire entries server-side
// and support atomic read-modify-write for state transitions.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("kv: not found")

	// ErrConflict is returned by Update when the entry changed concurrently
	// and the transition was not applied.
	ErrConflict = errors.New("kv: conflict")
)

// UpdateFunc inspects the current value and returns the replacement. It runs
// inside an optimistic transaction and may be retried; it must be free of
// side effects. Returning an error aborts the update and surfaces that error.
type UpdateFunc func(current []byte) ([]byte, error)

// Store is a TTL key-value store.
type Store interface {
	// Get returns the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel atomically returns the value at key and removes it, or returns
	// ErrNotFound. Exactly one of several concurrent callers observes the
	// value of a single-use entry.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Set writes the value with the given TTL, overwriting any existing entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX writes the value only if the key does not exist. Returns false
	// without error when the key is already present.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Update applies fn to the current value atomically, preserving the
	// entry's remaining TTL. Returns ErrNotFound if the key is absent and
	// ErrConflict if the entry kept changing under concurrent writers.
	Update(ctx context.Context, key string, fn UpdateFunc) error

	// Close releases the underlying connection.
	Close() error
}
