// Package store defines the key/value persistence contract shared by every
// storage backend and a registry of backend factories.
//
// Backends must make Add atomic: when several callers race to Add the same
// key, exactly one of them succeeds. Challenge claims, op receipts and commit
// indexes all rely on this.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the store implementation cannot find the value
	// for a given key.
	ErrNotFound = errors.New("store: key not found")

	// ErrExists is returned by Add when a live value is already stored.
	ErrExists = errors.New("store: key already exists")

	// ErrBadConfig is returned when a store implementation is configured wrongly.
	ErrBadConfig = errors.New("store: configuration is invalid")
)

// Interface is what every storage backend implements. An expiry of zero or
// less means the value never expires.
type Interface interface {
	// Delete removes a value from the store by key.
	Delete(ctx context.Context, key string) error

	// Get returns the value of a key assuming that value exists and has not expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set puts a value into the store that expires according to its expiry.
	Set(ctx context.Context, key string, value []byte, expiry time.Duration) error

	// Add puts a value into the store only if no live value exists, returning
	// ErrExists otherwise.
	Add(ctx context.Context, key string, value []byte, expiry time.Duration) error

	// IsPersistent reports whether values survive a process restart.
	IsPersistent() bool
}
