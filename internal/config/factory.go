package config

import (
	"context"
	"io"
	"path/filepath"

	"github.com/matzehuels/elk/pkg/cache"
	"github.com/matzehuels/elk/pkg/httputil"
	"github.com/matzehuels/elk/pkg/server"
)

// OpenCache opens the configured layout cache backend.
func (c *Config) OpenCache(ctx context.Context) (cache.Cache, error) {
	switch c.Cache.Backend {
	case BackendNone:
		return cache.NewNullCache(), nil
	case BackendRedis:
		return cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     c.Cache.RedisAddr,
			Password: c.Cache.RedisPassword,
			DB:       c.Cache.RedisDB,
		})
	case BackendMongo:
		return cache.NewMongoCache(ctx, cache.MongoConfig{
			URI:      c.Cache.MongoURI,
			Database: c.Cache.MongoDatabase,
		})
	default:
		dir, err := c.CacheDir()
		if err != nil {
			return nil, err
		}
		return cache.NewFileCache(dir)
	}
}

// CacheDir returns the file cache directory, default
// $XDG_CACHE_HOME/elk/layouts.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	root, err := httputil.CacheDir("elk")
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "layouts"), nil
}

// StderrLog returns the rotating server stderr log, or nil when
// server.log_file is unset.
func (c *Config) StderrLog() io.WriteCloser {
	if c.Server.LogFile == "" {
		return nil
	}
	return server.NewStderrLog(server.LogFileOptions{
		Filename:   c.Server.LogFile,
		MaxSizeMB:  c.Server.LogMaxSizeMB,
		MaxBackups: c.Server.LogMaxBackups,
		MaxAgeDays: c.Server.LogMaxAgeDays,
		Compress:   c.Server.LogCompress,
	})
}
