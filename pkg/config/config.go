// Package config loads vertexql's runtime configuration: environment
// variables first, with an optional YAML file layered on top for values
// the file actually sets.
//
// Grounded on the teacher's pkg/config/config.go (env-var-first
// Config/LoadFromEnv/Validate, with getEnv/getEnvInt/getEnvBool/
// getEnvDuration helpers) and apoc/config.go's narrower per-procedure
// settings. Scaled to the sections this system actually has — storage,
// auth, the subquery cache, logging — dropping the teacher's Neo4j-
// compatibility variable names (NEO4J_*, dbms.* dotted keys) and its
// Bolt/HTTP server and compliance sections, none of which this system
// exposes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vertexql/vertexql/pkg/auth"
)

// StorageConfig selects and locates the storage driver spec.md §4.2's
// graph cache persists through.
type StorageConfig struct {
	// Driver is "memory" or "badger".
	Driver string `yaml:"driver"`
	// DataDir is the directory a badger driver opens; unused by memory.
	DataDir string `yaml:"data_dir"`
	// DefaultGraphPath is the graph a session with no explicit path
	// selects, e.g. "/schema/graph".
	DefaultGraphPath string `yaml:"default_graph_path"`
}

// AuthConfig mirrors pkg/auth.Config plus the enabled switch the
// coordinator checks before requiring credentials at all.
type AuthConfig struct {
	Enabled           bool          `yaml:"enabled"`
	MinPasswordLength int           `yaml:"min_password_length"`
	BcryptCost        int           `yaml:"bcrypt_cost"`
	MaxFailedLogins   int           `yaml:"max_failed_logins"`
	LockoutDuration   time.Duration `yaml:"lockout_duration"`
}

func (a AuthConfig) ToAuthPackageConfig() auth.Config {
	return auth.Config{
		MinPasswordLength: a.MinPasswordLength,
		BcryptCost:        a.BcryptCost,
		MaxFailedLogins:   a.MaxFailedLogins,
		LockoutDuration:   a.LockoutDuration,
	}
}

// CacheConfig sizes the subquery result cache, per spec.md §4.9.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig holds the logging settings. Validate checks Level; no
// code in this repository reads Level or Output to configure the logger.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (checked by Validate);
	// messages are not filtered by it.
	Level string `yaml:"level"`
	// Output names a destination ("stdout", "stderr", or a file path);
	// it is loaded but not applied.
	Output string `yaml:"output"`
}

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load builds a Config from defaults, then environment variables, then
// (if VERTEXQL_CONFIG_FILE is set) a YAML file's overrides on top of
// that, and validates the result.
func Load() (*Config, error) {
	cfg := loadFromEnv()
	if path := os.Getenv("VERTEXQL_CONFIG_FILE"); path != "" {
		if err := mergeYAMLFile(cfg, path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeYAMLFile unmarshals path's YAML onto an already-populated cfg:
// keys the file doesn't mention keep their env/default values, keys it
// does mention overwrite them. This is what gives the file
// "override what it sets" semantics instead of replacing the config
// wholesale.
func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func loadFromEnv() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:           getEnv("VERTEXQL_STORAGE_DRIVER", "memory"),
			DataDir:          getEnv("VERTEXQL_DATA_DIR", "./data"),
			DefaultGraphPath: getEnv("VERTEXQL_DEFAULT_GRAPH_PATH", "/schema/graph"),
		},
		Auth: AuthConfig{
			Enabled:           getEnvBool("VERTEXQL_AUTH_ENABLED", false),
			MinPasswordLength: getEnvInt("VERTEXQL_AUTH_MIN_PASSWORD_LENGTH", 8),
			BcryptCost:        getEnvInt("VERTEXQL_AUTH_BCRYPT_COST", 10),
			MaxFailedLogins:   getEnvInt("VERTEXQL_AUTH_MAX_FAILED_LOGINS", 5),
			LockoutDuration:   getEnvDuration("VERTEXQL_AUTH_LOCKOUT_DURATION", 15*time.Minute),
		},
		Cache: CacheConfig{
			Enabled: getEnvBool("VERTEXQL_CACHE_ENABLED", true),
			MaxSize: getEnvInt("VERTEXQL_CACHE_MAX_SIZE", 1000),
			TTL:     getEnvDuration("VERTEXQL_CACHE_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("VERTEXQL_LOG_LEVEL", "INFO"),
			Output: getEnv("VERTEXQL_LOG_OUTPUT", "stderr"),
		},
	}
}

// Validate checks values LoadFromEnv/YAML can't enforce just by parsing.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "badger":
	default:
		return fmt.Errorf("config: unknown storage driver %q (want memory or badger)", c.Storage.Driver)
	}
	if c.Storage.Driver == "badger" && c.Storage.DataDir == "" {
		return fmt.Errorf("config: badger storage requires a data directory")
	}
	if c.Auth.Enabled && c.Auth.MinPasswordLength <= 0 {
		return fmt.Errorf("config: auth min password length must be positive")
	}
	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("config: cache max size cannot be negative")
	}
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes" || v == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
