package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds process-level configuration. Everything expiry- or
// secret-sensitive is injected from here into the components that need it
// rather than read ambiently.
type Config struct {
	// Server
	Port int

	// Credential signing
	JWTSecret string
	TokenTTL  time.Duration

	// SIWE challenge
	SIWEDomain    string
	SIWEURI       string
	SIWEStatement string
	ChainID       int64
	NonceTTL      time.Duration

	// Storage
	PostgresDSN  string
	RedisURL     string
	NonceBackend string // "redis" or "postgres"
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnvInt("PORT", 9000),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TokenTTL:      getEnvDuration("TOKEN_TTL", 24*time.Hour),
		SIWEDomain:    getEnv("SIWE_DOMAIN", "finsight.app"),
		SIWEURI:       getEnv("SIWE_URI", "https://finsight.app"),
		SIWEStatement: getEnv("SIWE_STATEMENT", ""),
		ChainID:       int64(getEnvInt("SIWE_CHAIN_ID", 1)),
		NonceTTL:      getEnvDuration("NONCE_TTL", 5*time.Minute),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		NonceBackend:  getEnv("NONCE_BACKEND", "postgres"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required")
	}

	switch c.NonceBackend {
	case "postgres":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when NONCE_BACKEND is 'redis'")
		}
	default:
		return fmt.Errorf("NONCE_BACKEND must be 'postgres' or 'redis', got: %s", c.NonceBackend)
	}

	return nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value.
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration gets a duration environment variable with a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
