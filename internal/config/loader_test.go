package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8000" {
		t.Errorf("expected port 8000, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Auth.MaxFailedLogins != 3 {
		t.Errorf("expected max_failed_logins 3, got %d", cfg.Auth.MaxFailedLogins)
	}
	if cfg.Client.MaxRetries != 3 {
		t.Errorf("expected client max_retries 3, got %d", cfg.Client.MaxRetries)
	}
	if cfg.Client.RetryDelay != 2*time.Second {
		t.Errorf("expected client retry_delay 2s, got %v", cfg.Client.RetryDelay)
	}
	if cfg.Client.DefaultTTL != 5*time.Minute {
		t.Errorf("expected client default_ttl 5m, got %v", cfg.Client.DefaultTTL)
	}
	if cfg.Client.TTLs["/brands"] != 30*time.Minute {
		t.Errorf("expected brands ttl 30m, got %v", cfg.Client.TTLs["/brands"])
	}
	if cfg.Cache.ShortTTL != 15*time.Minute || cfg.Cache.DefaultTTL != time.Hour || cfg.Cache.LongTTL != 24*time.Hour {
		t.Errorf("unexpected cache ttl classes: %+v", cfg.Cache)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
postgres:
  max_conns: 20
logging:
  level: "debug"
client:
  retry_delay: 500ms
  ttls:
    /stores: 10m
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "http://example.com" {
		t.Errorf("expected cors http://example.com, got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Postgres.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Client.RetryDelay != 500*time.Millisecond {
		t.Errorf("expected retry_delay 500ms, got %v", cfg.Client.RetryDelay)
	}
	if cfg.Client.TTLs["/stores"] != 10*time.Minute {
		t.Errorf("expected stores ttl 10m, got %v", cfg.Client.TTLs["/stores"])
	}
	// yaml.v3 merges into the existing map
	if cfg.Client.TTLs["/brands"] != 30*time.Minute {
		t.Errorf("expected default brands ttl to survive, got %v", cfg.Client.TTLs["/brands"])
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("SISPROMO_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("SISPROMO_PG_MAX_CONNS", "25")
	t.Setenv("SISPROMO_LOG_LEVEL", "warn")
	t.Setenv("SISPROMO_BREAKER_TIMEOUT", "1m")
	t.Setenv("SISPROMO_MAX_FAILED_LOGINS", "5")
	t.Setenv("SISPROMO_API_URL", "https://api.example.com/api/v1")
	t.Setenv("SISPROMO_CLIENT_RETRY_DELAY", "250ms")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("expected breaker timeout 1m, got %v", cfg.Breaker.Timeout)
	}
	if cfg.Auth.MaxFailedLogins != 5 {
		t.Errorf("expected max_failed_logins 5, got %d", cfg.Auth.MaxFailedLogins)
	}
	if cfg.Client.BaseURL != "https://api.example.com/api/v1" {
		t.Errorf("expected client base url override, got %s", cfg.Client.BaseURL)
	}
	if cfg.Client.RetryDelay != 250*time.Millisecond {
		t.Errorf("expected retry delay 250ms, got %v", cfg.Client.RetryDelay)
	}
}

func TestEnvInvalidValueIgnored(t *testing.T) {
	cfg := Defaults()
	t.Setenv("SISPROMO_PG_MAX_CONNS", "lots")
	t.Setenv("SISPROMO_CLIENT_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("invalid int should be ignored, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Client.Timeout != 10*time.Second {
		t.Errorf("invalid duration should be ignored, got %v", cfg.Client.Timeout)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "empty NATS URL",
			modify: func(c *Config) { c.NATS.URL = "" },
			errMsg: "nats.url is required",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "zero rate burst",
			modify: func(c *Config) { c.Rate.Burst = 0 },
			errMsg: "rate.burst must be >= 1",
		},
		{
			name:   "short jwt secret",
			modify: func(c *Config) { c.Auth.JWTSecret = "short" },
			errMsg: "auth.jwt_secret must be at least 32 characters",
		},
		{
			name:   "zero failed logins",
			modify: func(c *Config) { c.Auth.MaxFailedLogins = 0 },
			errMsg: "auth.max_failed_logins must be >= 1",
		},
		{
			name:   "negative client retries",
			modify: func(c *Config) { c.Client.MaxRetries = -1 },
			errMsg: "client.max_retries must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateShortSecretAllowedWhenAuthDisabled(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = ""
	if err := validate(&cfg); err != nil {
		t.Errorf("expected no error with auth disabled, got %v", err)
	}
}

func TestValidateSecretFileReplacesInlineSecret(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.JWTSecret = ""
	cfg.Auth.JWTSecretFile = "/run/secrets/jwt"
	if err := validate(&cfg); err != nil {
		t.Errorf("expected no error with a secret file, got %v", err)
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SISPROMO_PORT", "7070")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("YAML should override defaults: got level %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadFrom_ValidationError(t *testing.T) {
	t.Setenv("SISPROMO_RATE_BURST", "0")
	if _, err := LoadFrom("/nonexistent/cfg.yaml"); err == nil {
		t.Fatal("expected validation error")
	}
}
