// Package identity resolves trusted-account handles to stable platform IDs
// and persists the mapping in a time-bounded durable cache.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultValidityWindow is how long a resolved cache remains usable before
// a full re-resolution is forced.
const DefaultValidityWindow = 24 * time.Hour

// Cache is the persisted handle-to-ID mapping from one full resolution
// pass. Handle keys are lowercased.
type Cache struct {
	HandleToID            map[string]string `json:"handle_to_id"`
	CreatedAt             time.Time         `json:"created_at"`
	FailedHandles         []string          `json:"failed_handles"`
	TotalAccounts         int               `json:"total_accounts"`
	SuccessfulResolutions int               `json:"successful_resolutions"`
}

// IsValid reports whether the cache is fresh enough to reuse at the given
// instant.
func (c *Cache) IsValid(now time.Time, window time.Duration) bool {
	if c == nil || c.CreatedAt.IsZero() {
		return false
	}
	return now.Sub(c.CreatedAt) < window
}

// LoadCache reads a persisted cache from disk. A missing or corrupt file is
// treated as cache absent, not an error.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading identity cache: %w", err)
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Identity cache is corrupt, treating as absent")
		return nil, nil
	}
	return &cache, nil
}

// SaveCache writes the cache atomically: to a temporary file in the same
// directory, then renamed over the target, so a crash mid-write never
// leaves a partial document behind.
func SaveCache(path string, cache *Cache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding identity cache: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing cache file: %w", err)
	}

	log.Debug().
		Str("path", path).
		Int("resolved", len(cache.HandleToID)).
		Int("failed", len(cache.FailedHandles)).
		Msg("Identity cache saved")
	return nil
}
