// Package results keeps the most recent compatibility analysis on disk so it
// can be shown again without another round-trip. The cache belongs to the
// logged-in user and is cleared when the session ends.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/truematch/internal/platform"
)

// DefaultFileName is the cache file created under the client home.
const DefaultFileName = "last_result.json"

// ErrNotFound is returned by Load when nothing is cached.
var ErrNotFound = errors.New("no cached result")

// Entry is a cached analysis
type Entry struct {
	Version string          `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	UserID  string          `json:"user_id,omitempty"`
	Result  platform.Result `json:"result"`
}

// Cache handles result persistence
type Cache struct {
	path string
}

// NewCache creates a cache backed by the file at path
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Path returns the cache file path
func (c *Cache) Path() string {
	return c.path
}

// Save stores result for userID, replacing any previous entry
func (c *Cache) Save(userID string, result platform.Result) error {
	if result.Empty() {
		return fmt.Errorf("refusing to cache an empty result")
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(Entry{
		Version: "1",
		SavedAt: time.Now().UTC(),
		UserID:  userID,
		Result:  result,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write result cache: %w", err)
	}
	return nil
}

// Load returns the cached entry. An entry cached for a different user is
// treated as absent.
func (c *Cache) Load(userID string) (*Entry, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read result cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result cache: %w", err)
	}
	if entry.Result.Empty() {
		return nil, ErrNotFound
	}
	if userID != "" && entry.UserID != "" && entry.UserID != userID {
		return nil, ErrNotFound
	}
	return &entry, nil
}

// Clear removes the cache file
func (c *Cache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete result cache: %w", err)
	}
	return nil
}
