package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "sispromo.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SISPROMO_PORT")
	setString(&cfg.Server.CORSOrigin, "SISPROMO_CORS_ORIGIN")
	setBool(&cfg.Server.SecureCookies, "SISPROMO_SECURE_COOKIES")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SISPROMO_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SISPROMO_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SISPROMO_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SISPROMO_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SISPROMO_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "SISPROMO_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SISPROMO_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "SISPROMO_LOG_ASYNC")

	// Auth
	setBool(&cfg.Auth.Enabled, "SISPROMO_AUTH_ENABLED")
	setString(&cfg.Auth.JWTSecret, "SISPROMO_JWT_SECRET")
	setString(&cfg.Auth.JWTSecretFile, "SISPROMO_JWT_SECRET_FILE")
	setDuration(&cfg.Auth.AccessTokenExpiry, "SISPROMO_ACCESS_TOKEN_EXPIRY")
	setDuration(&cfg.Auth.RefreshTokenExpiry, "SISPROMO_REFRESH_TOKEN_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "SISPROMO_BCRYPT_COST")
	setInt(&cfg.Auth.MaxFailedLogins, "SISPROMO_MAX_FAILED_LOGINS")
	setString(&cfg.Auth.DefaultAdminUser, "SISPROMO_ADMIN_USER")
	setString(&cfg.Auth.DefaultAdminEmail, "SISPROMO_ADMIN_EMAIL")
	setString(&cfg.Auth.DefaultAdminPass, "SISPROMO_ADMIN_PASS")

	setInt(&cfg.Breaker.MaxFailures, "SISPROMO_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "SISPROMO_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "SISPROMO_RATE_RPS")
	setInt(&cfg.Rate.Burst, "SISPROMO_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "SISPROMO_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "SISPROMO_RATE_MAX_IDLE_TIME")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "SISPROMO_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "SISPROMO_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "SISPROMO_CACHE_L2_TTL")
	setDuration(&cfg.Cache.ShortTTL, "SISPROMO_CACHE_SHORT_TTL")
	setDuration(&cfg.Cache.DefaultTTL, "SISPROMO_CACHE_DEFAULT_TTL")
	setDuration(&cfg.Cache.LongTTL, "SISPROMO_CACHE_LONG_TTL")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "SISPROMO_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "SISPROMO_IDEMPOTENCY_TTL")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "SISPROMO_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "SISPROMO_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "SISPROMO_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "SISPROMO_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "SISPROMO_OTEL_SAMPLE_RATE")

	// Client
	setString(&cfg.Client.BaseURL, "SISPROMO_API_URL")
	setDuration(&cfg.Client.Timeout, "SISPROMO_CLIENT_TIMEOUT")
	setInt(&cfg.Client.MaxRetries, "SISPROMO_CLIENT_MAX_RETRIES")
	setDuration(&cfg.Client.RetryDelay, "SISPROMO_CLIENT_RETRY_DELAY")
	setString(&cfg.Client.CacheDir, "SISPROMO_CLIENT_CACHE_DIR")
	setString(&cfg.Client.TokenFile, "SISPROMO_CLIENT_TOKEN_FILE")
	setInt64(&cfg.Client.L1MaxSizeMB, "SISPROMO_CLIENT_L1_SIZE_MB")
	setDuration(&cfg.Client.DefaultTTL, "SISPROMO_CLIENT_DEFAULT_TTL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecretFile == "" && len(cfg.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	if cfg.Auth.MaxFailedLogins < 1 {
		return errors.New("auth.max_failed_logins must be >= 1")
	}
	if cfg.Client.MaxRetries < 0 {
		return errors.New("client.max_retries must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
