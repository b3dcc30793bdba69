package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"VERTEXQL_CONFIG_FILE",
		"VERTEXQL_STORAGE_DRIVER",
		"VERTEXQL_DATA_DIR",
		"VERTEXQL_DEFAULT_GRAPH_PATH",
		"VERTEXQL_AUTH_ENABLED",
		"VERTEXQL_AUTH_MIN_PASSWORD_LENGTH",
		"VERTEXQL_AUTH_BCRYPT_COST",
		"VERTEXQL_AUTH_MAX_FAILED_LOGINS",
		"VERTEXQL_AUTH_LOCKOUT_DURATION",
		"VERTEXQL_CACHE_ENABLED",
		"VERTEXQL_CACHE_MAX_SIZE",
		"VERTEXQL_CACHE_TTL",
		"VERTEXQL_LOG_LEVEL",
		"VERTEXQL_LOG_OUTPUT",
	}
	for _, v := range vars {
		os.Unsetenv(v)
	}
}

func TestLoadAppliesDefaultsWithNoEnv(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected default driver memory, got %q", cfg.Storage.Driver)
	}
	if cfg.Auth.MinPasswordLength != 8 {
		t.Fatalf("expected default min password length 8, got %d", cfg.Auth.MinPasswordLength)
	}
	if cfg.Cache.MaxSize != 1000 {
		t.Fatalf("expected default cache size 1000, got %d", cfg.Cache.MaxSize)
	}
	if cfg.Logging.Level != "INFO" {
		t.Fatalf("expected default log level INFO, got %q", cfg.Logging.Level)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	clearEnv(t)
	os.Setenv("VERTEXQL_STORAGE_DRIVER", "badger")
	os.Setenv("VERTEXQL_DATA_DIR", "/tmp/vertexql-data")
	os.Setenv("VERTEXQL_CACHE_MAX_SIZE", "250")
	os.Setenv("VERTEXQL_CACHE_TTL", "30s")
	defer clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "badger" {
		t.Fatalf("expected driver badger, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.DataDir != "/tmp/vertexql-data" {
		t.Fatalf("expected overridden data dir, got %q", cfg.Storage.DataDir)
	}
	if cfg.Cache.MaxSize != 250 {
		t.Fatalf("expected cache max size 250, got %d", cfg.Cache.MaxSize)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Fatalf("expected cache ttl 30s, got %v", cfg.Cache.TTL)
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	clearEnv(t)
	os.Setenv("VERTEXQL_STORAGE_DRIVER", "postgres")
	defer clearEnv(t)

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown storage driver")
	}
}

func TestLoadRejectsBadgerWithoutDataDir(t *testing.T) {
	clearEnv(t)
	os.Setenv("VERTEXQL_STORAGE_DRIVER", "badger")
	os.Setenv("VERTEXQL_DATA_DIR", "")
	defer clearEnv(t)

	cfg := loadFromEnv()
	cfg.Storage.DataDir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for badger driver with empty data dir")
	}
}

func TestYAMLFileOverridesOnlyWhatItSets(t *testing.T) {
	clearEnv(t)
	os.Setenv("VERTEXQL_CACHE_MAX_SIZE", "500")
	defer clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "vertexql.yaml")
	contents := "cache:\n  max_size: 42\nlogging:\n  level: DEBUG\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	os.Setenv("VERTEXQL_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cache.MaxSize != 42 {
		t.Fatalf("expected yaml override to set cache max size 42, got %d", cfg.Cache.MaxSize)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Fatalf("expected yaml override to set log level DEBUG, got %q", cfg.Logging.Level)
	}
	// Env-derived value the file doesn't mention must survive.
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected untouched field to keep env/default value, got %q", cfg.Storage.Driver)
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := loadFromEnv()
	cfg.Logging.Level = "VERBOSE"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestAuthConfigConvertsToAuthPackageConfig(t *testing.T) {
	cfg := loadFromEnv()
	cfg.Auth.MinPasswordLength = 12
	cfg.Auth.BcryptCost = 11
	ac := cfg.Auth.ToAuthPackageConfig()
	if ac.MinPasswordLength != 12 {
		t.Fatalf("expected MinPasswordLength 12, got %d", ac.MinPasswordLength)
	}
	if ac.BcryptCost != 11 {
		t.Fatalf("expected BcryptCost 11, got %d", ac.BcryptCost)
	}
}
