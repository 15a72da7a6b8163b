package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Store.Get] when an entry exists but is older
// than the store TTL. The stale value is still returned so callers can fall
// back to it when a refetch fails.
var ErrExpired = errors.New("cache entry expired")

// Store keeps JSON documents of type T in a directory, one file per key.
//
// File names are the SHA-256 of the prefixed key. Freshness is judged by
// modification time and a TTL of 0 disables expiry. Writes go through a temp
// file and a rename, so concurrent readers never observe partial entries:
//
//	manifests, _ := httputil.NewStore[Manifest](dir, 0)
//	manifests = manifests.Namespace("manifest:")
//	mf, ok, err := manifests.Get("0.2.0")
type Store[T any] struct {
	dir    string
	ttl    time.Duration
	prefix string
	now    func() time.Time
}

// NewStore creates a Store rooted at dir, creating the directory if needed.
// An empty dir means CacheDir("elk")/http.
func NewStore[T any](dir string, ttl time.Duration) (*Store[T], error) {
	if dir == "" {
		base, err := CacheDir("elk")
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "http")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store[T]{dir: dir, ttl: ttl, now: time.Now}, nil
}

func (s *Store[T]) Dir() string { return s.dir }

// Get returns the entry for key. A missing entry is (zero, false, nil); a
// stale one is (value, false, ErrExpired).
func (s *Store[T]) Get(key string) (T, bool, error) {
	var v T
	path := s.path(key)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, err
	}
	if s.ttl > 0 && s.now().Sub(info.ModTime()) > s.ttl {
		return v, false, ErrExpired
	}
	return v, true, nil
}

// Set writes v under key, replacing any previous entry.
func (s *Store[T]) Set(key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".entry-*")
	if err != nil {
		return err
	}
	_, werr := tmp.Write(data)
	if cerr := tmp.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp.Name())
		return werr
	}
	return os.Rename(tmp.Name(), s.path(key))
}

// Delete removes the entry for key. Missing entries are not an error.
func (s *Store[T]) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Namespace returns a view of the same directory whose keys carry prefix.
// Namespaces nest: s.Namespace("a:").Namespace("b:") uses "a:b:".
func (s *Store[T]) Namespace(prefix string) *Store[T] {
	ns := *s
	ns.prefix += prefix
	return &ns
}

func (s *Store[T]) path(key string) string {
	sum := sha256.Sum256([]byte(s.prefix + key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:]))
}
