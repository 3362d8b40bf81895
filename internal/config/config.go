// ABOUTME: Configuration management for chirp with YAML config loading.
// ABOUTME: Handles server, storage and client settings, .env files, env overrides, and ~ expansion.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the server address used when no client API URL is configured.
const DefaultAPIURL = "http://localhost:3000"

// Config stores chirp configuration loaded from ~/.config/chirp/config.yaml.
type Config struct {
	Server ServerConfig `yaml:"server,omitempty"`
	Client ClientConfig `yaml:"client,omitempty"`
}

// ServerConfig holds settings for `chirp serve`.
type ServerConfig struct {
	Addr          string          `yaml:"addr,omitempty"`
	SessionSecret string          `yaml:"session_secret,omitempty"`
	Issuer        string          `yaml:"issuer,omitempty"`
	SignInURL     string          `yaml:"sign_in_url,omitempty"`
	Matcher       string          `yaml:"matcher,omitempty"`
	PublicRoutes  []string        `yaml:"public_routes,omitempty"`
	Storage       StorageConfig   `yaml:"storage,omitempty"`
	Cache         CacheConfig     `yaml:"cache,omitempty"`
	RateLimit     RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// StorageConfig selects and configures the post store.
type StorageConfig struct {
	Driver      string `yaml:"driver,omitempty"` // "markdown" or "postgres"
	DataDir     string `yaml:"data_dir,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// CacheConfig configures the optional Redis feed cache.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr,omitempty"`
	TTL       time.Duration `yaml:"ttl,omitempty"`
}

// RateLimitConfig bounds how often a single user may create posts.
type RateLimitConfig struct {
	PostsPerMinute int `yaml:"posts_per_minute,omitempty"`
}

// ClientConfig holds the terminal client's server address and session token.
type ClientConfig struct {
	APIURL       string `yaml:"api_url,omitempty"`
	SessionToken string `yaml:"session_token,omitempty"`
}

// HasSession returns true if the client has a session token to present.
func (c *Config) HasSession() bool {
	return c.Client.SessionToken != ""
}

// GetAPIURL returns the configured API URL or the default.
func (c *Config) GetAPIURL() string {
	if c.Client.APIURL != "" {
		return strings.TrimRight(c.Client.APIURL, "/")
	}
	return DefaultAPIURL
}

// GetDataDir returns the markdown store directory, defaulting to the XDG data dir.
func (c *Config) GetDataDir() (string, error) {
	if c.Server.Storage.DataDir != "" {
		return ExpandPath(c.Server.Storage.DataDir)
	}
	return DataDir()
}

// applyDefaults fills zero values with the built-in defaults.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if c.Server.SignInURL == "" {
		c.Server.SignInURL = "/sign-in"
	}
	if c.Server.Matcher == "" {
		c.Server.Matcher = "default"
	}
	if c.Server.PublicRoutes == nil {
		c.Server.PublicRoutes = []string{"/", "/sign-in", "/api/rpc/posts.getAll"}
	}
	if c.Server.Storage.Driver == "" {
		c.Server.Storage.Driver = "markdown"
	}
	if c.Server.Cache.TTL == 0 {
		c.Server.Cache.TTL = 30 * time.Second
	}
	if c.Server.RateLimit.PostsPerMinute == 0 {
		c.Server.RateLimit.PostsPerMinute = 3
	}
}

// ApplyEnv overrides file values with environment variables when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("CHIRP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CHIRP_SESSION_SECRET"); v != "" {
		c.Server.SessionSecret = v
	}
	if v := os.Getenv("CHIRP_ISSUER"); v != "" {
		c.Server.Issuer = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Server.Storage.Driver = "postgres"
		c.Server.Storage.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Server.Cache.RedisAddr = v
	}
	if v := os.Getenv("CHIRP_POSTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.RateLimit.PostsPerMinute = n
		}
	}
	if v := os.Getenv("CHIRP_API_URL"); v != "" {
		c.Client.APIURL = v
	}
	if v := os.Getenv("CHIRP_SESSION_TOKEN"); v != "" {
		c.Client.SessionToken = v
	}
}

// DataDir returns the default chirp data directory.
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "chirp"), nil
}

// GetConfigPath returns the config file path.
func GetConfigPath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "chirp", "config.yaml"), nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the environment.
// Missing files are skipped and variables already set are left untouched.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads config from the default path. Returns default config if file doesn't exist.
func Load() (*Config, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads config from path, then applies env overrides and defaults.
// The result is the effective config and must not be written back; use
// SaveClientTo to persist client settings.
func LoadFrom(path string) (*Config, error) {
	cfg, err := LoadFileFrom(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFileFrom reads only what is stored in the file at path, without env
// overrides or defaults. A missing file yields an empty config.
func LoadFileFrom(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}
	return cfg, nil
}

// UpdateClient edits the client section of the default config file.
func UpdateClient(update func(*ClientConfig)) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return UpdateClientAt(path, update)
}

// UpdateClientAt applies update to the client section of the config file at
// path and leaves every other setting in the file as it was.
func UpdateClientAt(path string, update func(*ClientConfig)) error {
	cfg, err := LoadFileFrom(path)
	if err != nil {
		return err
	}
	update(&cfg.Client)
	return cfg.SaveTo(path)
}

// SaveTo writes config to path with owner-only permissions.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
