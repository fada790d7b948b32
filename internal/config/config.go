package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7411"
	DefaultDBFileName = ".depot.db"
	DefaultLogLevel   = "info"

	// 10 MiB, matching the classic per-user starter quota.
	DefaultStorageQuotaBytes int64 = 10 * 1024 * 1024

	DefaultMaxUploadBytes     int64 = 100 * 1024 * 1024
	DefaultMultipartMaxMemory int64 = 8 * 1024 * 1024

	DefaultRateLimitCalls         = 2
	DefaultRateLimitWindowSeconds = 1

	configDirEnvKey = "DEPOT_CONFIG_DIR"

	apiURLEnvKey   = "DEPOT_API_URL"
	dbPathEnvKey   = "DEPOT_DB"
	blobRootEnvKey = "DEPOT_BLOB_ROOT"

	configFileName = ".depot.toml"
)

// StorageConfig defines quota and upload limits.
type StorageConfig struct {
	// QuotaBytes is the default per-user quota applied at provisioning.
	QuotaBytes         int64 `toml:"quota_bytes"`
	MaxUploadBytes     int64 `toml:"max_upload_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
}

// RateLimitConfig defines the per-user fixed-window request gate.
type RateLimitConfig struct {
	Calls         int `toml:"calls"`
	WindowSeconds int `toml:"window_seconds"`
}

// Config defines runtime configuration for depot.
type Config struct {
	APIURL    string          `toml:"api_url"`
	DBPath    string          `toml:"db_path"`
	BlobRoot  string          `toml:"blob_root"`
	LogLevel  string          `toml:"log_level"`
	Storage   StorageConfig   `toml:"storage"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Storage: StorageConfig{
			QuotaBytes:         DefaultStorageQuotaBytes,
			MaxUploadBytes:     DefaultMaxUploadBytes,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
		RateLimit: RateLimitConfig{
			Calls:         DefaultRateLimitCalls,
			WindowSeconds: DefaultRateLimitWindowSeconds,
		},
	}
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"blob_root",
	"log_level",
	"storage.quota_bytes",
	"storage.max_upload_bytes",
	"storage.multipart_max_memory",
	"rate_limit.calls",
	"rate_limit.window_seconds",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "blob_root":
		return c.BlobRoot, nil
	case "log_level":
		return c.LogLevel, nil
	case "storage.quota_bytes":
		return strconv.FormatInt(c.Storage.QuotaBytes, 10), nil
	case "storage.max_upload_bytes":
		return strconv.FormatInt(c.Storage.MaxUploadBytes, 10), nil
	case "storage.multipart_max_memory":
		return strconv.FormatInt(c.Storage.MultipartMaxMemory, 10), nil
	case "rate_limit.calls":
		return strconv.Itoa(c.RateLimit.Calls), nil
	case "rate_limit.window_seconds":
		return strconv.Itoa(c.RateLimit.WindowSeconds), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// Path returns the path of the config file in use.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

// Load reads config from the config file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err == nil {
		if info, statErr := os.Stat(path); statErr == nil && !info.IsDir() {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if statErr != nil && !os.IsNotExist(statErr) {
			return nil, statErr
		}
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}
	if cfg.BlobRoot == "" && cfg.DBPath != "" {
		cfg.BlobRoot = filepath.Join(filepath.Dir(cfg.DBPath), ".depot", "blobs")
	}

	if apiURL := os.Getenv(apiURLEnvKey); apiURL != "" {
		cfg.APIURL = apiURL
	}
	if dbPath := os.Getenv(dbPathEnvKey); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if blobRoot := os.Getenv(blobRootEnvKey); blobRoot != "" {
		cfg.BlobRoot = blobRoot
	}

	cfg.normalizeDefaults()

	return &cfg, nil
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "storage.quota_bytes", "storage.max_upload_bytes", "storage.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "rate_limit.calls", "rate_limit.window_seconds":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func (c *Config) normalizeDefaults() {
	if c.Storage.QuotaBytes <= 0 {
		c.Storage.QuotaBytes = DefaultStorageQuotaBytes
	}
	if c.Storage.MaxUploadBytes <= 0 {
		c.Storage.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.Storage.MultipartMaxMemory <= 0 {
		c.Storage.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if c.RateLimit.Calls <= 0 {
		c.RateLimit.Calls = DefaultRateLimitCalls
	}
	if c.RateLimit.WindowSeconds <= 0 {
		c.RateLimit.WindowSeconds = DefaultRateLimitWindowSeconds
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
}
