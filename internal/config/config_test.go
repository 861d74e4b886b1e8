package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_BASE_URL", "https://shop.example.com")
	t.Setenv("STOREFRONT_HTTP_TIMEOUT_SECONDS", "30")
	t.Setenv("STOREFRONT_STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6380")

	cfgPath := writeConfig(t, `
baseURL: "http://localhost:8000"
logLevel: "info"
httpTimeoutSeconds: 10
storageBackend: "memory"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.BaseURL != "https://shop.example.com" {
		t.Fatalf("baseURL = %q", cfg.BaseURL)
	}
	if cfg.HTTPTimeoutSeconds != 30 {
		t.Fatalf("httpTimeoutSeconds = %d, want 30", cfg.HTTPTimeoutSeconds)
	}
	if cfg.StorageBackend != BackendRedis || cfg.RedisAddr != "localhost:6380" {
		t.Fatalf("backend = %q redisAddr = %q", cfg.StorageBackend, cfg.RedisAddr)
	}
}

func TestLoadDefaultsBackendToMemory(t *testing.T) {
	cfgPath := writeConfig(t, `
baseURL: "http://localhost:8000"
`)
	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StorageBackend != BackendMemory {
		t.Fatalf("storageBackend = %q, want memory", cfg.StorageBackend)
	}
}

func TestValidateConfigRejectsMissingBaseURL(t *testing.T) {
	if err := validateConfig(FileConfig{StorageBackend: BackendMemory}); err == nil {
		t.Fatalf("validateConfig() expected error for missing baseURL")
	}
}

func TestValidateConfigRejectsFileBackendWithoutStateDir(t *testing.T) {
	cfg := FileConfig{
		BaseURL:        "http://localhost:8000",
		StorageBackend: BackendFile,
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for file backend without stateDir")
	}
}

func TestValidateConfigRejectsUnknownBackend(t *testing.T) {
	cfg := FileConfig{
		BaseURL:        "http://localhost:8000",
		StorageBackend: "sqlite",
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for unknown backend")
	}
}

func TestValidateConfigRejectsPostgresWithoutDatabaseURL(t *testing.T) {
	cfg := FileConfig{
		BaseURL:        "http://localhost:8000",
		StorageBackend: BackendPostgres,
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatalf("validateConfig() expected error for postgres backend without databaseURL")
	}
}
