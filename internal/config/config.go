package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Storage backend names accepted by validateConfig.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	BaseURL            string `yaml:"baseURL"`
	LogLevel           string `yaml:"logLevel"`
	LogsDir            string `yaml:"logsDir"`
	HTTPTimeoutSeconds int    `yaml:"httpTimeoutSeconds"`
	StorageBackend     string `yaml:"storageBackend"`
	StateDir           string `yaml:"stateDir"`
	RedisAddr          string `yaml:"redisAddr"`
	RedisPassword      string `yaml:"redisPassword"`
	DatabaseURL        string `yaml:"databaseURL"`
	TokensKey          string `yaml:"tokensKey"`
	CartKey            string `yaml:"cartKey"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("STOREFRONT_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("STOREFRONT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOGS_DIR"); v != "" {
		cfg.LogsDir = v
	}
	if v := os.Getenv("STOREFRONT_HTTP_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTPTimeoutSeconds = n
		}
	}
	if v := os.Getenv("STOREFRONT_STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = v
	}
	if v := os.Getenv("STOREFRONT_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendMemory
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validateConfig(cfg FileConfig) error {
	if cfg.BaseURL == "" {
		return errors.New("config: baseURL is required (set in config.yaml or STOREFRONT_BASE_URL)")
	}
	if cfg.HTTPTimeoutSeconds < 0 {
		return errors.New("config: httpTimeoutSeconds must be >= 0")
	}
	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendFile:
		if cfg.StateDir == "" {
			return errors.New("config: stateDir is required when storageBackend=file")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required when storageBackend=redis (set in config.yaml or REDIS_ADDR)")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required when storageBackend=postgres (set in config.yaml or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q", cfg.StorageBackend)
	}
	return nil
}
