package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fitsight-io/fitsight/pkg/logging"
)

// Manager manages the on-disk artifact cache. The filesystem is the lock:
// nothing serializes concurrent regeneration of the same key across
// processes, though in-process duplicate misses are coalesced.
type Manager struct {
	// root is the cache root directory.
	root string
	// logger is the manager logger.
	logger *logging.Logger
	// flights coalesces concurrent in-process generation of the same path.
	flights singleflight.Group
}

// NewManager creates an artifact cache manager rooted at the specified
// directory, creating the root and category subdirectories if needed.
func NewManager(root string, logger *logging.Logger) (*Manager, error) {
	manager := &Manager{
		root:   root,
		logger: logger,
	}
	for _, category := range Categories() {
		if err := manager.EnsureCategoryDir(category); err != nil {
			return nil, err
		}
	}
	return manager, nil
}

// Root returns the cache root directory.
func (m *Manager) Root() string {
	return m.root
}

// EnsureCategoryDir creates the subdirectory for a category if it does not
// already exist. It is idempotent.
func (m *Manager) EnsureCategoryDir(category Category) error {
	if err := os.MkdirAll(filepath.Join(m.root, string(category)), 0700); err != nil {
		return fmt.Errorf("unable to create category directory: %w", err)
	}
	return nil
}

// Path computes the cache path for a category, content key, and extension.
func (m *Manager) Path(category Category, key, extension string) string {
	return filepath.Join(m.root, string(category), key+"."+extension)
}

// IsCached indicates whether or not an artifact is present. Presence alone
// qualifies a file for on-demand serving.
func (m *Manager) IsCached(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// IsFresh indicates whether or not an artifact is present and younger than
// the specified time-to-live. The pre-generation worker uses this to decide
// whether regeneration is needed.
func (m *Manager) IsFresh(path string, ttl time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return time.Since(info.ModTime()) < ttl
}

// Remove deletes a cached artifact if present.
func (m *Manager) Remove(path string) {
	os.Remove(path)
}

// Read reads a cached artifact.
func (m *Manager) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read cached artifact: %w", err)
	}
	return data, nil
}

// Store writes an artifact to its cache path and reads it back, returning
// the bytes that will serve the response. Reading back what was written
// prevents a read-after-write race on slow filesystems. A half-written file
// is removed on error so that the next attempt is a clean miss.
func (m *Manager) Store(path string, data []byte) ([]byte, error) {
	if err := os.WriteFile(path, data, 0600); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("unable to write artifact: %w", err)
	}
	stored, err := os.ReadFile(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("unable to read back artifact: %w", err)
	}
	return stored, nil
}

// Materialize returns the artifact at the specified path, generating and
// storing it on a miss. Concurrent in-process misses for the same path share
// a single generation.
func (m *Manager) Materialize(path string, generate func() ([]byte, error)) ([]byte, error) {
	// Fast path: serve a present artifact.
	if m.IsCached(path) {
		return m.Read(path)
	}

	// Slow path: generate under a per-path flight.
	data, err, shared := m.flights.Do(path, func() (interface{}, error) {
		// Re-check presence: a concurrent flight may have finished between
		// the miss and the flight acquisition.
		if m.IsCached(path) {
			return m.Read(path)
		}
		generated, err := generate()
		if err != nil {
			return nil, err
		}
		return m.Store(path, generated)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.logger.Debugf("Coalesced duplicate generation for %s", filepath.Base(path))
	}
	return data.([]byte), nil
}
