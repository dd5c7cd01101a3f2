package cache

import (
	"strings"
)

// Key identifies a cached resource. Identical logical resources always
// produce identical key strings; the string doubles as the job-dedup key
// and, via FixtureFile, as the mock-fixture filename stem.
type Key struct {
	// Service is the owning upstream service (e.g. "opendota").
	Service string

	// Resource is the resource type (e.g. "player", "team", "items").
	Resource string

	// Parts are the identifying segments (IDs, facets), in order.
	Parts []string
}

// NewKey builds a key from service, resource and identifying parts.
//
// Example:
//
//	NewKey("opendota", "player", "2345", "totals").String()
//	// "opendota:player:2345:totals"
func NewKey(service, resource string, parts ...string) Key {
	return Key{Service: service, Resource: resource, Parts: parts}
}

// String generates the deterministic key string.
// Format: service:resource:part1:part2
func (k Key) String() string {
	segments := make([]string, 0, 2+len(k.Parts))
	if k.Service != "" {
		segments = append(segments, k.Service)
	}
	if k.Resource != "" {
		segments = append(segments, k.Resource)
	}
	for _, p := range k.Parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, ":")
}

// FixtureFile derives the fixture filename for this key.
// Colons and slashes are folded to dashes so the key maps onto a flat
// directory of JSON files.
//
// Example: "opendota:player:2345" -> "opendota-player-2345.json"
func (k Key) FixtureFile() string {
	return SanitizeKey(k.String()) + ".json"
}

// SanitizeKey folds key separators into filename-safe dashes.
func SanitizeKey(key string) string {
	r := strings.NewReplacer(":", "-", "/", "-", "\\", "-", " ", "-")
	return r.Replace(key)
}
