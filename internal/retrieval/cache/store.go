package cache

import (
	"context"
	"errors"
)

// ErrNotFound is the canonical miss. Backends map their own "no such key"
// onto it; every other error is treated by the cache as a miss too, but gets
// logged.
var ErrNotFound = errors.New("cache: key not found")

// Store is a durable blob store. Keys are slash-separated paths built from
// hex digests, so every backend can treat them as opaque safe strings.
// Set must be atomic per key: a reader never observes a partial value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error

	// List returns all stored keys beginning with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
