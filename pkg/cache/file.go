package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileBackend stores entries as individual files in a local directory.
// It is the durability fallback when Redis is unreachable and doubles as
// a zero-dependency store for development. TTL is ignored; staleness is
// handled by the Service's lazy expiry against the entry envelope.
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file-backed store rooted at dir, creating it
// if necessary.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("file backend: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file backend: create dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// path maps a key to its file, folding separators into dashes.
func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, SanitizeKey(key)+".cache.json")
}

// Get returns the stored bytes for key, or ErrNotFound.
func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("file get: %w", err)
	}
	return data, nil
}

// Set stores data under key. The advisory ttl is ignored.
func (b *FileBackend) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	tmp := b.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("file set: %w", err)
	}
	if err := os.Rename(tmp, b.path(key)); err != nil {
		return fmt.Errorf("file set rename: %w", err)
	}
	return nil
}

// Delete removes key. Absent keys are not an error.
func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file delete: %w", err)
	}
	return nil
}

// Clear removes every entry file in the directory.
func (b *FileBackend) Clear(_ context.Context) error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("file clear: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".cache.json") {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil {
			return fmt.Errorf("file clear: %w", err)
		}
	}
	return nil
}

// Ping verifies the directory is writable.
func (b *FileBackend) Ping(_ context.Context) error {
	probe := filepath.Join(b.dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("file ping: %w", err)
	}
	return os.Remove(probe)
}

// Name identifies the backend.
func (b *FileBackend) Name() string {
	return "file"
}
