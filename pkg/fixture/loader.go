// Package fixture reads and records canned JSON payloads for mock replay.
//
// The loader is byte-transparent: it never parses payloads, so the same
// parsing code runs for live and replayed data.
package fixture

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// ErrNoFixture indicates no fixture file exists for the requested name.
var ErrNoFixture = errors.New("fixture: not found")

// Loader reads fixtures from a directory and, when recording is enabled,
// persists live upstream payloads back to it for future replay.
type Loader struct {
	dir       string
	writeReal bool
	logger    zerolog.Logger
}

// NewLoader creates a fixture loader rooted at dir. writeReal enables
// recording of live responses via Record.
func NewLoader(dir string, writeReal bool, logger zerolog.Logger) *Loader {
	return &Loader{dir: dir, writeReal: writeReal, logger: logger}
}

// Dir returns the fixture root directory.
func (l *Loader) Dir() string {
	return l.dir
}

// Path resolves a fixture name to its on-disk path.
func (l *Loader) Path(name string) string {
	return filepath.Join(l.dir, name)
}

// TryLoad returns the raw fixture bytes, or ErrNoFixture when absent.
func (l *Loader) TryLoad(name string) ([]byte, error) {
	data, err := os.ReadFile(l.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoFixture
		}
		return nil, fmt.Errorf("fixture read %s: %w", name, err)
	}
	return data, nil
}

// Record persists a live payload as a fixture, creating parent
// directories as needed. A no-op unless recording is enabled.
func (l *Loader) Record(name string, raw []byte) error {
	if !l.writeReal {
		return nil
	}
	path := l.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("fixture mkdir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("fixture write %s: %w", name, err)
	}
	l.logger.Debug().Str("fixture", name).Int("bytes", len(raw)).Msg("Recorded fixture")
	return nil
}

// Remove deletes a fixture. Absent fixtures are not an error.
func (l *Loader) Remove(name string) error {
	if err := os.Remove(l.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("fixture remove %s: %w", name, err)
	}
	return nil
}
