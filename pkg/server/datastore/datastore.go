package datastore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist or has expired.
var ErrNotFound = errors.New("datastore: key not found")

// DataStore is the key/value storage used for users, session tokens and
// secrets.
type DataStore interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key with no expiry.
	Set(ctx context.Context, key, value string) error

	// SetWithTTL stores value at key and expires it after ttl.
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// Close releases the underlying client.
	Close() error
}
