package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration, sourced from the environment.
type Config struct {
	// Service identity
	ServiceName  string
	BuildVersion string
	Env          string

	// HTTP
	ListenAddr string

	// Issuer is the external base URL, also the iss claim of every token.
	Issuer string

	// Logging
	LogLevel  string
	LogFormat string

	// Stores
	SQLitePath    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	IDTokenTTL      time.Duration

	// Flow state
	AuthorizationCodeTTL time.Duration
	DeviceCodeTTL        time.Duration
	DevicePollInterval   int
	VerificationURI      string

	// BootstrapSigningKey is an RSA private key PEM (escaped newlines
	// tolerated) used on first boot when the database holds no keys.
	BootstrapSigningKey string
}

// LoadConfig reads configuration from the environment, applying defaults
// suitable for local development.
func LoadConfig() (Config, error) {
	cfg := Config{
		ServiceName:  "auth",
		BuildVersion: getEnvOrDefault("AUTH_BUILD_VERSION", "dev"),
		Env:          getEnvOrDefault("AUTH_ENV", "dev"),

		ListenAddr: getEnvOrDefault("AUTH_LISTEN_ADDR", ":8080"),
		Issuer:     getEnvOrDefault("AUTH_ISSUER", "http://localhost:8080"),

		LogLevel:  getEnvOrDefault("AUTH_LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("AUTH_LOG_FORMAT", "json"),

		SQLitePath:    getEnvOrDefault("AUTH_SQLITE_PATH", "auth.db"),
		RedisAddr:     getEnvOrDefault("AUTH_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("AUTH_REDIS_PASSWORD"),

		VerificationURI:     getEnvOrDefault("AUTH_DEVICE_VERIFICATION_URI", ""),
		BootstrapSigningKey: os.Getenv("AUTH_BOOTSTRAP_SIGNING_KEY"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("AUTH_REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenTTL, err = getEnvDuration("AUTH_ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL, err = getEnvDuration("AUTH_REFRESH_TOKEN_TTL", 30*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.IDTokenTTL, err = getEnvDuration("AUTH_ID_TOKEN_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AuthorizationCodeTTL, err = getEnvDuration("AUTH_CODE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DeviceCodeTTL, err = getEnvDuration("AUTH_DEVICE_CODE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.DevicePollInterval, err = getEnvInt("AUTH_DEVICE_POLL_INTERVAL", 5); err != nil {
		return Config{}, err
	}

	if cfg.VerificationURI == "" {
		cfg.VerificationURI = cfg.Issuer + "/device"
	}

	return cfg, nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration like 15m: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}
