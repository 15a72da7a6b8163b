// Package config loads the settings shared by the elk commands.
//
// Values are layered, later sources winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file, $XDG_CONFIG_HOME/elk/config.toml unless --config names one
//  3. a .env file in the working directory
//  4. ELK_* environment variables, e.g. ELK_POOL_SIZE or ELK_CACHE_BACKEND
//
// A variable set in the real environment is never overridden by .env.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/elk/pkg/distribution"
	elkerrors "github.com/matzehuels/elk/pkg/errors"
	"github.com/matzehuels/elk/pkg/java"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config is the complete configuration. TOML tables and keys match the
// struct tags; the environment variable of a key is ELK_ followed by the
// upper-cased table and key joined by an underscore.
type Config struct {
	Server ServerConfig `toml:"server"`
	Java   JavaConfig   `toml:"java"`
	Pool   PoolConfig   `toml:"pool"`
	Cache  CacheConfig  `toml:"cache"`
	HTTP   HTTPConfig   `toml:"http"`
	Log    LogConfig    `toml:"log"`
}

// ServerConfig selects the ELK server release and where its stderr goes.
type ServerConfig struct {
	Version       string `toml:"version" validate:"required"`
	URL           string `toml:"url" validate:"omitempty,url"`
	SHA256        string `toml:"sha256" validate:"omitempty,len=64,hexadecimal"`
	CacheDir      string `toml:"cache_dir"`
	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb" validate:"gte=0"`
	LogMaxBackups int    `toml:"log_max_backups" validate:"gte=0"`
	LogMaxAgeDays int    `toml:"log_max_age_days" validate:"gte=0"`
	LogCompress   bool   `toml:"log_compress"`
}

type JavaConfig struct {
	Home       string `toml:"home"`
	MinVersion int    `toml:"min_version" validate:"gte=0"`
	MaxVersion int    `toml:"max_version" validate:"gte=0"`
}

type PoolConfig struct {
	Size int `toml:"size" validate:"min=1,max=64"`
}

type CacheConfig struct {
	Backend       string   `toml:"backend" validate:"oneof=file none redis mongo"`
	TTL           Duration `toml:"ttl"`
	Dir           string   `toml:"dir"`
	RedisAddr     string   `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db" validate:"gte=0"`
	MongoURI      string   `toml:"mongo_uri" validate:"required_if=Backend mongo"`
	MongoDatabase string   `toml:"mongo_database"`
}

type HTTPConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type LogConfig struct {
	Level string `toml:"level" validate:"oneof=debug info warn error"`
}

// Duration is a time.Duration written as a Go duration string ("168h").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Version:       distribution.DefaultVersion,
			LogMaxSizeMB:  10,
			LogMaxBackups: 3,
			LogMaxAgeDays: 28,
		},
		Java: JavaConfig{
			MinVersion: java.MinVersion,
			MaxVersion: java.MaxVersion,
		},
		Pool:  PoolConfig{Size: 2},
		Cache: CacheConfig{Backend: BackendFile, TTL: Duration{7 * 24 * time.Hour}, MongoDatabase: "elk"},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Log:   LogConfig{Level: "info"},
	}
}

// Validate checks field constraints and the relations between fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return elkerrors.Wrap(elkerrors.ErrCodeInvalidConfig, err, "invalid configuration")
	}
	if c.Java.MinVersion > 0 && c.Java.MaxVersion > 0 && c.Java.MaxVersion < c.Java.MinVersion {
		return elkerrors.New(elkerrors.ErrCodeInvalidConfig,
			"invalid configuration: java.max_version %d is below java.min_version %d", c.Java.MaxVersion, c.Java.MinVersion)
	}
	if c.Cache.TTL.Duration < 0 {
		return elkerrors.New(elkerrors.ErrCodeInvalidConfig, "invalid configuration: cache.ttl must not be negative")
	}
	return nil
}

// LogLevel returns the parsed log.level.
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// JavaOptions returns the Java discovery options.
func (c *Config) JavaOptions() java.Options {
	return java.Options{
		Home:       c.Java.Home,
		MinVersion: c.Java.MinVersion,
		MaxVersion: c.Java.MaxVersion,
	}
}

// DistributionOptions returns the release options for distribution.New.
func (c *Config) DistributionOptions() distribution.Options {
	return distribution.Options{
		Version: c.Server.Version,
		URL:     c.Server.URL,
		SHA256:  c.Server.SHA256,
		Dir:     c.Server.CacheDir,
		Java:    c.JavaOptions(),
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("server %s, pool %d, cache %s", c.Server.Version, c.Pool.Size, c.Cache.Backend)
}
