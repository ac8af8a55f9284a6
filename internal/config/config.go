// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Hosted project. SupabaseURL and SupabaseAnonKey feed the REST fallback;
	// DatabaseURL is the direct Postgres connection string for the primary path.
	SupabaseURL     string
	SupabaseAnonKey string
	DatabaseURL     string
	RunMigrations   bool
	RESTTimeout     time.Duration

	// Connection resilience.
	InitTimeout       time.Duration // bound on the startup probe and admin-triggered checks
	RetryMaxAttempts  int
	RetryDelay        time.Duration
	WakeDelay         time.Duration
	KeepAliveEnabled  bool
	KeepAliveInterval time.Duration
	KeepAlivePause    time.Duration
	KeepAliveTimeout  time.Duration

	// Connection log.
	LocalStorePath string // SQLite file backing the connection log; empty keeps it in memory.
	LogCapacity    int

	// Admin console.
	AdminUsername     string
	AdminPasswordHash string // argon2id hash from scripts/hashpass
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration

	// Public write routes.
	RateLimitRPS   float64
	RateLimitBurst int

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first. Load does not
// check required fields; callers apply their overrides and then call Validate.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		SupabaseURL:       envStr("SUPABASE_URL", ""),
		SupabaseAnonKey:   envStr("SUPABASE_ANON_KEY", ""),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		LocalStorePath:    envStr("VITRINE_LOCAL_STORE", "vitrine-local.db"),
		AdminUsername:     envStr("VITRINE_ADMIN_USERNAME", "admin"),
		AdminPasswordHash: envStr("VITRINE_ADMIN_PASSWORD_HASH", ""),
		JWTPrivateKeyPath: envStr("VITRINE_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:  envStr("VITRINE_JWT_PUBLIC_KEY", ""),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:       envStr("OTEL_SERVICE_NAME", "vitrine"),
		LogLevel:          envStr("VITRINE_LOG_LEVEL", "info"),
	}

	var err error
	cfg.Port, err = envInt("VITRINE_PORT", 8080)
	collect(err)
	cfg.ReadTimeout, err = envDuration("VITRINE_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("VITRINE_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.RunMigrations, err = envBool("VITRINE_RUN_MIGRATIONS", false)
	collect(err)
	cfg.RESTTimeout, err = envDuration("VITRINE_REST_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.InitTimeout, err = envDuration("VITRINE_INIT_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.RetryMaxAttempts, err = envInt("VITRINE_RETRY_MAX_ATTEMPTS", 3)
	collect(err)
	cfg.RetryDelay, err = envDuration("VITRINE_RETRY_DELAY", time.Second)
	collect(err)
	cfg.WakeDelay, err = envDuration("VITRINE_WAKE_DELAY", 2*time.Second)
	collect(err)
	cfg.KeepAliveEnabled, err = envBool("VITRINE_KEEPALIVE_ENABLED", true)
	collect(err)
	cfg.KeepAliveInterval, err = envDuration("VITRINE_KEEPALIVE_INTERVAL", 5*time.Minute)
	collect(err)
	cfg.KeepAlivePause, err = envDuration("VITRINE_KEEPALIVE_PAUSE", 30*time.Second)
	collect(err)
	cfg.KeepAliveTimeout, err = envDuration("VITRINE_KEEPALIVE_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.LogCapacity, err = envInt("VITRINE_LOG_CAPACITY", 1000)
	collect(err)
	cfg.JWTExpiration, err = envDuration("VITRINE_JWT_EXPIRATION", 12*time.Hour)
	collect(err)
	cfg.RateLimitRPS, err = envFloat("VITRINE_RATE_LIMIT_RPS", 1)
	collect(err)
	cfg.RateLimitBurst, err = envInt("VITRINE_RATE_LIMIT_BURST", 5)
	collect(err)
	cfg.OTELInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	collect(err)
	maxBody, err := envInt("VITRINE_MAX_REQUEST_BODY_BYTES", 1*1024*1024) // 1 MB default
	collect(err)
	cfg.MaxRequestBodyBytes = int64(maxBody)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks that required configuration is present. The hosted
// project's URL and key are mandatory: without them neither transport works.
func (c Config) Validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("config: SUPABASE_URL is required")
	}
	if u, err := url.Parse(c.SupabaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: SUPABASE_URL=%q is not an http(s) URL", c.SupabaseURL)
	}
	if c.SupabaseAnonKey == "" {
		return fmt.Errorf("config: SUPABASE_ANON_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("config: VITRINE_RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if c.KeepAliveInterval <= 0 {
		return fmt.Errorf("config: VITRINE_KEEPALIVE_INTERVAL must be positive")
	}
	if c.LogCapacity <= 0 {
		return fmt.Errorf("config: VITRINE_LOG_CAPACITY must be positive")
	}
	if c.InitTimeout <= 0 {
		return fmt.Errorf("config: VITRINE_INIT_TIMEOUT must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: VITRINE_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("config: VITRINE_RATE_LIMIT_RPS and VITRINE_RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// AdminEnabled reports whether the admin console can authenticate anyone.
func (c Config) AdminEnabled() bool {
	return c.AdminPasswordHash != ""
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
