package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileCache stores entries as JSON files below dir, sharded by the first
// two hex digits of the key hash. Writes are atomic (temp file + rename), so
// several processes can share a directory.
type FileCache struct {
	dir string
}

// NewFileCache creates dir if needed and returns a cache rooted there.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCache{dir: dir}, nil
}

type fileEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string { return c.dir }

// Get returns the entry for key. Corrupt and expired entries are removed
// and reported as misses.
func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := c.path(key)
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil || e.Key != key {
		_ = os.Remove(path)
		return nil, false, nil
	}
	if !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return e.Data, true, nil
}

// Set writes data under key.
func (c *FileCache) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	e := fileEntry{Key: key, Data: data}
	if ttl > 0 {
		e.ExpiresAt = time.Now().Add(ttl)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}

	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes key; a missing entry is not an error.
func (c *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes every entry but keeps the directory.
func (c *FileCache) Clear(context.Context) error {
	entries, err := os.ReadDir(c.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op.
func (c *FileCache) Close() error { return nil }

func (c *FileCache) path(key string) string {
	h := Hash([]byte(key))
	return filepath.Join(c.dir, h[:2], h[2:]+".json")
}

var (
	_ Cache   = (*FileCache)(nil)
	_ Clearer = (*FileCache)(nil)
)
