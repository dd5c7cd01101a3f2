package cache

import (
	"encoding/json"
	"time"
)

// Entry is the envelope stored for every cached value. Backends store it as
// opaque bytes; only the Service inspects it.
type Entry struct {
	// Key is the resource key the entry was stored under.
	Key string `json:"key"`

	// Value is the raw JSON payload.
	Value json.RawMessage `json:"value"`

	// ExpiresAt is when the entry becomes stale. Nil means no expiry.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// SourceFile is the fixture path the value was written through to,
	// if fixture recording was active.
	SourceFile string `json:"source_file,omitempty"`

	// CachedAt is when the entry was written.
	CachedAt time.Time `json:"cached_at"`
}

// Expired returns true if the entry's stored expiry has passed.
// Entries without an expiry never expire.
func (e *Entry) Expired() bool {
	if e.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*e.ExpiresAt)
}

// FreshWithin reports whether the entry was cached less than ttl ago.
// Used for sliding-expiry reads that re-derive freshness from the write
// time instead of trusting the stored expiry.
func (e *Entry) FreshWithin(ttl time.Duration) bool {
	return time.Since(e.CachedAt) < ttl
}

// TTL returns the time until the stored expiry, or 0 if already expired
// or no expiry is set.
func (e *Entry) TTL() time.Duration {
	if e.ExpiresAt == nil {
		return 0
	}
	ttl := time.Until(*e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
