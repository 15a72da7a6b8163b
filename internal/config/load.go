package config

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	elkerrors "github.com/matzehuels/elk/pkg/errors"
)

// EnvPrefix prefixes every configuration variable.
const EnvPrefix = "ELK_"

// LoadOptions controls where Load reads from.
type LoadOptions struct {
	// Path is an explicit config file; it must exist. When empty,
	// DefaultPath is used if present.
	Path string
	// EnvFile defaults to ".env". Missing files are ignored.
	EnvFile string
	// LookupEnv replaces os.LookupEnv in tests.
	LookupEnv func(string) (string, bool)
}

// DefaultPath returns $XDG_CONFIG_HOME/elk/config.toml, falling back to
// ~/.config/elk/config.toml.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "elk", "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "elk", "config.toml"), nil
}

// Load builds the effective configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	path, explicit := opts.Path, opts.Path != ""
	if !explicit {
		path, _ = DefaultPath()
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, elkerrors.Wrap(elkerrors.ErrCodeInvalidConfig, err, "failed to read %s", envFile)
	}
	lookup = layered(lookup, dotenv)

	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return elkerrors.Wrap(elkerrors.ErrCodeFileNotFound, err, "config file %s not found", path)
		}
		return elkerrors.Wrap(elkerrors.ErrCodeInvalidConfig, err, "failed to parse %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return elkerrors.New(elkerrors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// layered consults the real environment first and the .env values second.
func layered(env func(string) (string, bool), dotenv map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
}

// Key describes one configuration key.
type Key struct {
	Name string // "cache.backend"
	Env  string // "ELK_CACHE_BACKEND"
	// field is the settable struct field of the key.
	field reflect.Value
}

// Keys lists every key of cfg in declaration order.
func Keys(cfg *Config) []Key {
	var keys []Key
	root := reflect.ValueOf(cfg).Elem()
	for i := range root.NumField() {
		table := root.Type().Field(i).Tag.Get("toml")
		section := root.Field(i)
		for j := range section.NumField() {
			name := table + "." + section.Type().Field(j).Tag.Get("toml")
			keys = append(keys, Key{
				Name:  name,
				Env:   EnvPrefix + strings.ToUpper(strings.ReplaceAll(name, ".", "_")),
				field: section.Field(j),
			})
		}
	}
	return keys
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, k := range Keys(cfg) {
		v, ok := lookup(k.Env)
		if !ok {
			continue
		}
		if err := setField(k.field, v); err != nil {
			return elkerrors.Wrap(elkerrors.ErrCodeInvalidConfig, err, "invalid %s", k.Env)
		}
	}
	return nil
}

func setField(f reflect.Value, v string) error {
	if u, ok := f.Addr().Interface().(interface{ UnmarshalText([]byte) error }); ok {
		return u.UnmarshalText([]byte(v))
	}
	v = strings.TrimSpace(v)
	switch f.Kind() {
	case reflect.String:
		f.SetString(v)
	case reflect.Int:
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		f.SetInt(int64(n))
	case reflect.Bool:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return errors.New("unsupported field type " + f.Kind().String())
	}
	return nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg *Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}
