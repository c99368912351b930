// Package fakedatastore provides an in-memory DataStore for tests.
package fakedatastore

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/simple-secrets/simple-secrets/pkg/server/datastore"
)

type entry struct {
	value     string
	expiresAt time.Time
}

// DataStore is a map-backed datastore.DataStore. TTL entries expire lazily
// on read, against an overridable clock.
type DataStore struct {
	mu      sync.Mutex
	entries map[string]entry

	// Now reports the current time; tests may override it to advance the
	// clock.
	Now func() time.Time

	// NextErr, when set, is returned by the next operation and cleared.
	NextErr error

	// ErrFor returns the configured error for operations on an exact key.
	ErrFor map[string]error

	// FailTTLWrites makes every SetWithTTL fail. Session token keys are
	// random, so per-key injection cannot target them.
	FailTTLWrites bool
}

var _ datastore.DataStore = (*DataStore)(nil)

func New() *DataStore {
	return &DataStore{
		entries: make(map[string]entry),
		Now:     time.Now,
	}
}

func (d *DataStore) takeErr(key string) error {
	if err := d.ErrFor[key]; err != nil {
		return err
	}
	err := d.NextErr
	d.NextErr = nil
	return err
}

func (d *DataStore) Get(_ context.Context, key string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeErr(key); err != nil {
		return "", err
	}

	e, ok := d.entries[key]
	if !ok {
		return "", datastore.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !d.Now().Before(e.expiresAt) {
		delete(d.entries, key)
		return "", datastore.ErrNotFound
	}
	return e.value, nil
}

func (d *DataStore) Set(_ context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.takeErr(key); err != nil {
		return err
	}

	d.entries[key] = entry{value: value}
	return nil
}

func (d *DataStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailTTLWrites {
		return errors.New("fakedatastore: ttl writes disabled")
	}
	if err := d.takeErr(key); err != nil {
		return err
	}

	d.entries[key] = entry{value: value, expiresAt: d.Now().Add(ttl)}
	return nil
}

func (d *DataStore) Close() error {
	return nil
}
