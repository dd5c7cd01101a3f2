package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested key was not found in the backend.
	ErrNotFound = errors.New("cache: key not found")

	// ErrInvalidEntry indicates the stored entry is corrupted.
	ErrInvalidEntry = errors.New("cache: invalid entry")
)

// Backend is a dumb key/value store. Backends never inspect values and
// never apply expiry policy beyond a best-effort physical TTL; the Service
// owns entry lifecycle.
type Backend interface {
	// Get returns the stored bytes for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores data under key. ttl is advisory: backends that support
	// native expiry may drop the data after ttl, others ignore it and
	// rely on the Service's lazy expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear drops all entries.
	Clear(ctx context.Context) error

	// Ping reports backend reachability.
	Ping(ctx context.Context) error

	// Name identifies the backend in logs and metrics.
	Name() string
}
