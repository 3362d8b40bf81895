// ABOUTME: Tests for chirp configuration loading and path expansion.
// ABOUTME: Covers YAML parsing, defaults, env overrides, .env loading, and save/load roundtrip.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable ApplyEnv reads so the host environment can't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CHIRP_ADDR", "CHIRP_SESSION_SECRET", "CHIRP_ISSUER", "DATABASE_URL",
		"REDIS_ADDR", "CHIRP_POSTS_PER_MINUTE", "CHIRP_API_URL", "CHIRP_SESSION_TOKEN",
	} {
		t.Setenv(k, "")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"tilde only", "~", home},
		{"tilde slash", "~/foo/bar", filepath.Join(home, "foo", "bar")},
		{"absolute", "/tmp/foo", "/tmp/foo"},
		{"relative", "foo/bar", "foo/bar"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath(%q) error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestLoadDefaultConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected default addr :3000, got %q", cfg.Server.Addr)
	}
	if cfg.Server.Matcher != "default" {
		t.Errorf("expected default matcher, got %q", cfg.Server.Matcher)
	}
	if cfg.Server.Storage.Driver != "markdown" {
		t.Errorf("expected markdown driver, got %q", cfg.Server.Storage.Driver)
	}
	if cfg.Server.RateLimit.PostsPerMinute != 3 {
		t.Errorf("expected 3 posts per minute, got %d", cfg.Server.RateLimit.PostsPerMinute)
	}
	if cfg.HasSession() {
		t.Error("expected HasSession() to be false for default config")
	}
	if cfg.GetAPIURL() != DefaultAPIURL {
		t.Errorf("GetAPIURL() = %q, want %q", cfg.GetAPIURL(), DefaultAPIURL)
	}
}

func TestLoadYAMLConfig(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	configDir := filepath.Join(tmpDir, "chirp")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}

	configData := `server:
  addr: ":8080"
  session_secret: "s3cret"
  matcher: "strict"
  public_routes: ["/"]
  storage:
    driver: "markdown"
    data_dir: "~/chirp-data"
  cache:
    ttl: 1m
client:
  api_url: "https://chirp.example.com/"
  session_token: "tok"
`
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configData), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %q", cfg.Server.Addr)
	}
	if cfg.Server.SessionSecret != "s3cret" {
		t.Errorf("expected session_secret 's3cret', got %q", cfg.Server.SessionSecret)
	}
	if cfg.Server.Matcher != "strict" {
		t.Errorf("expected strict matcher, got %q", cfg.Server.Matcher)
	}
	if len(cfg.Server.PublicRoutes) != 1 || cfg.Server.PublicRoutes[0] != "/" {
		t.Errorf("expected public routes [/], got %v", cfg.Server.PublicRoutes)
	}
	if cfg.Server.Cache.TTL != time.Minute {
		t.Errorf("expected 1m ttl, got %v", cfg.Server.Cache.TTL)
	}
	if cfg.GetAPIURL() != "https://chirp.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.GetAPIURL())
	}
	if !cfg.HasSession() {
		t.Error("expected HasSession() to be true")
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, "chirp-data")
	if got, err := cfg.GetDataDir(); err != nil {
		t.Fatalf("GetDataDir() error: %v", err)
	} else if got != expected {
		t.Errorf("GetDataDir() = %q, want %q", got, expected)
	}
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/chirp")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CHIRP_SESSION_TOKEN", "env-token")
	t.Setenv("CHIRP_POSTS_PER_MINUTE", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Storage.Driver != "postgres" {
		t.Errorf("expected DATABASE_URL to select postgres, got %q", cfg.Server.Storage.Driver)
	}
	if cfg.Server.Storage.PostgresDSN != "postgres://localhost/chirp" {
		t.Errorf("unexpected dsn %q", cfg.Server.Storage.PostgresDSN)
	}
	if cfg.Server.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("unexpected redis addr %q", cfg.Server.Cache.RedisAddr)
	}
	if cfg.Client.SessionToken != "env-token" {
		t.Errorf("unexpected session token %q", cfg.Client.SessionToken)
	}
	if cfg.Server.RateLimit.PostsPerMinute != 10 {
		t.Errorf("expected 10 posts per minute, got %d", cfg.Server.RateLimit.PostsPerMinute)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("CHIRP_SESSION_SECRET=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	// godotenv never overrides variables that are already set, and t.Setenv above set it to "".
	if err := os.Unsetenv("CHIRP_SESSION_SECRET"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	if err := LoadDotEnv(filepath.Join(tmpDir, "missing.env"), envPath); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}
	if got := os.Getenv("CHIRP_SESSION_SECRET"); got != "from-dotenv" {
		t.Errorf("expected value from .env, got %q", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	err := UpdateClient(func(c *ClientConfig) {
		c.APIURL = "https://saved.example.com"
		c.SessionToken = "saved-token"
	})
	if err != nil {
		t.Fatalf("UpdateClient() error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.Client.APIURL != "https://saved.example.com" {
		t.Errorf("expected api_url 'https://saved.example.com', got %q", loaded.Client.APIURL)
	}
	if loaded.Client.SessionToken != "saved-token" {
		t.Errorf("expected session_token 'saved-token', got %q", loaded.Client.SessionToken)
	}

	path, _ := GetConfigPath()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestUpdateClientKeepsEnvAndDefaultsOutOfFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	initial := "server:\n  issuer: file-issuer\n  cache:\n    ttl: 1m\n"
	if err := os.WriteFile(path, []byte(initial), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHIRP_SESSION_SECRET", "env-only-secret")
	t.Setenv("DATABASE_URL", "postgres://u:hunter2@db/chirp")

	effective, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if effective.Server.SessionSecret != "env-only-secret" {
		t.Fatalf("env override not applied: %q", effective.Server.SessionSecret)
	}

	err = UpdateClientAt(path, func(c *ClientConfig) {
		c.APIURL = "https://chirp.example.com"
		c.SessionToken = "new-token"
	})
	if err != nil {
		t.Fatalf("UpdateClientAt() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	saved := string(data)
	for _, leaked := range []string{"env-only-secret", "hunter2", "postgres", "public_routes", "addr:", "sign_in_url"} {
		if strings.Contains(saved, leaked) {
			t.Errorf("saved config contains %q:\n%s", leaked, saved)
		}
	}
	for _, kept := range []string{"issuer: file-issuer", "session_token: new-token", "api_url: https://chirp.example.com"} {
		if !strings.Contains(saved, kept) {
			t.Errorf("saved config is missing %q:\n%s", kept, saved)
		}
	}

	clearEnv(t)
	reloaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if reloaded.Server.Storage.Driver != "markdown" {
		t.Errorf("driver = %q, want markdown once DATABASE_URL is unset", reloaded.Server.Storage.Driver)
	}
	if reloaded.Server.SessionSecret != "" {
		t.Errorf("session secret persisted: %q", reloaded.Server.SessionSecret)
	}
	if reloaded.Server.Cache.TTL != time.Minute {
		t.Errorf("cache ttl = %v, want 1m", reloaded.Server.Cache.TTL)
	}
}

func TestUpdateClientCreatesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := UpdateClientAt(path, func(c *ClientConfig) { c.SessionToken = "tok" }); err != nil {
		t.Fatalf("UpdateClientAt() error: %v", err)
	}
	raw, err := LoadFileFrom(path)
	if err != nil {
		t.Fatalf("LoadFileFrom() error: %v", err)
	}
	if raw.Client.SessionToken != "tok" || raw.Server.Addr != "" {
		t.Errorf("unexpected file contents: %+v", raw)
	}
}

func TestDefaultDataDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmpDir)

	cfg := &Config{}
	got, err := cfg.GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir() error: %v", err)
	}
	if got != filepath.Join(tmpDir, "chirp") {
		t.Errorf("GetDataDir() = %q", got)
	}
}
