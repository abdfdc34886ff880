// Package kvstore provides the byte-oriented key/value stores used to persist
// cache snapshots. Stores give no transactional guarantees.
package kvstore

import (
	"context"
	"errors"
)

var (
	// ErrNotJSON is returned by stores that only accept JSON documents.
	ErrNotJSON = errors.New("kvstore: value is not valid JSON")
	// ErrUnknownBackend is returned by Open for an unrecognised backend name.
	ErrUnknownBackend = errors.New("kvstore: unknown backend")
)

// Store persists one opaque value per namespace.
type Store interface {
	// Get returns the value stored under namespace. The boolean is false when
	// nothing has been stored yet.
	Get(ctx context.Context, namespace string) ([]byte, bool, error)
	// Set replaces the value stored under namespace.
	Set(ctx context.Context, namespace string, value []byte) error
}
