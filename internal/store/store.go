// Package store defines the interface for the published-record store
// and its S3 and in-memory implementations.
package store

import (
	"context"
	"errors"
)

// ErrKeyNotFound indicates the requested key holds no object
var ErrKeyNotFound = errors.New("key not found in object store")

// ObjectStore is the publish target for per-commit timing records
type ObjectStore interface {
	// Exists probes for a key without fetching its body
	Exists(ctx context.Context, key string) (bool, error)

	// Put uploads a blob under the given key, replacing any previous
	// object
	Put(ctx context.Context, key string, body []byte) error

	// Get fetches a blob. Returns ErrKeyNotFound for absent keys.
	Get(ctx context.Context, key string) ([]byte, error)
}
