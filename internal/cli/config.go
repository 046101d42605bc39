package cli

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/canopy/pkg/persistence/middleware"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding configuration.
const EnvPrefix = "CANOPY"

// Config is the CLI configuration shared by every command.
type Config struct {
	Dir       string
	LogLevel  string
	LogFormat string

	// Loader selects how the workspace is read: "yaml" (canopy.yaml files)
	// or "loam" (markdown documents with front matter).
	Loader string

	// Store selects where run records are kept: "memory", "file" or "redis".
	Store   string
	RunsDir string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	RedisTTL      time.Duration

	// Redact lists patterns masked in failure messages before records are saved.
	Redact []string

	// EncryptionKeys encrypt run records at rest when set. The first key
	// encrypts; the others only decrypt records written before a rotation.
	EncryptionKeys [][]byte
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Dir:       ".",
		LogLevel:  "warn",
		LogFormat: "text",
		Loader:    "yaml",
		Store:     "file",
		RedisAddr: "localhost:6379",
	}
}

// NewViper creates a viper instance reading CANOPY_* environment variables
// and, when present, <dir>/.canopy/config.yaml.
func NewViper(dir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(dir, ".canopy"))

	// Enable environment variable overrides: --redis-addr <- CANOPY_REDIS_ADDR
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("log-level", def.LogLevel)
	v.SetDefault("log-format", def.LogFormat)
	v.SetDefault("loader", def.Loader)
	v.SetDefault("store", def.Store)
	v.SetDefault("redis-addr", def.RedisAddr)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return v, nil
}

// LoadConfig extracts and validates the configuration held by v.
func LoadConfig(v *viper.Viper, dir string) (Config, error) {
	cfg := Config{
		Dir:           dir,
		LogLevel:      v.GetString("log-level"),
		LogFormat:     v.GetString("log-format"),
		Loader:        strings.ToLower(v.GetString("loader")),
		Store:         strings.ToLower(v.GetString("store")),
		RunsDir:       v.GetString("runs-dir"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		RedisPrefix:   v.GetString("redis-prefix"),
		RedisTTL:      v.GetDuration("redis-ttl"),
		Redact:        v.GetStringSlice("redact"),
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	switch cfg.Loader {
	case "yaml", "loam":
	default:
		return cfg, fmt.Errorf("unknown loader %q (expected yaml or loam)", cfg.Loader)
	}
	switch cfg.Store {
	case "memory", "file", "redis":
	default:
		return cfg, fmt.Errorf("unknown store %q (expected memory, file or redis)", cfg.Store)
	}
	if cfg.Store == "redis" && cfg.RedisAddr == "" {
		return cfg, fmt.Errorf("redis store requires --redis-addr")
	}

	keys := v.GetStringSlice("encryption-fallback-keys")
	if active := v.GetString("encryption-key"); active != "" {
		keys = append([]string{active}, keys...)
	} else if len(keys) > 0 {
		return cfg, fmt.Errorf("encryption-fallback-keys requires encryption-key")
	}
	for i, k := range keys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return cfg, fmt.Errorf("encryption key %d: %w", i, err)
		}
		if len(key) != middleware.KeySize {
			return cfg, fmt.Errorf("encryption key %d: must decode to %d bytes, got %d", i, middleware.KeySize, len(key))
		}
		cfg.EncryptionKeys = append(cfg.EncryptionKeys, key)
	}
	return cfg, nil
}
