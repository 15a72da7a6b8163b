package httputil

import (
	"os"
	"path/filepath"
)

// CacheRoot returns the per-user cache root: $XDG_CACHE_HOME when set,
// otherwise ~/.cache.
func CacheRoot() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache"), nil
}

// CacheDir returns CacheRoot joined with name.
func CacheDir(name string) (string, error) {
	root, err := CacheRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, name), nil
}
