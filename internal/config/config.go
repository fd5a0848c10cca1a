// Package config loads service configuration from the environment. The god
// user id and the access-token validity live here on purpose: both are
// trusted process configuration, never derived from request data.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

// Config holds everything the api process needs at startup.
type Config struct {
	HTTPAddr string

	PGDSN string

	RedisAddr     string
	RedisPassword string

	JWTSecret string
	Issuer    string
	Audience  string

	// AccessTokenValidity bounds how long an access token lives and, with
	// RevocationTTLBuffer, how long revocation markers are retained.
	AccessTokenValidity time.Duration
	RevocationTTLBuffer time.Duration

	// APITokenCacheTTL trades revocation-propagation latency for storage
	// load on the API token validation path.
	APITokenCacheTTL time.Duration

	// GodUserID enables the platform break-glass bypass when non-empty.
	GodUserID string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	secret := strings.TrimSpace(os.Getenv("NIMBUS_JWT_SECRET"))
	if secret == "" {
		return nil, errors.New("config: NIMBUS_JWT_SECRET is required")
	}
	return &Config{
		HTTPAddr:            getEnv("NIMBUS_HTTP_ADDR", ":8080"),
		PGDSN:               os.Getenv("NIMBUS_PG_DSN"),
		RedisAddr:           getEnv("NIMBUS_REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("NIMBUS_REDIS_PASSWORD"),
		JWTSecret:           secret,
		Issuer:              getEnv("NIMBUS_TOKEN_ISSUER", "nimbus"),
		Audience:            getEnv("NIMBUS_TOKEN_AUDIENCE", "nimbus.cloud"),
		AccessTokenValidity: getDuration("ACCESS_TOKEN_VALIDITY", 72*time.Hour),
		RevocationTTLBuffer: getDuration("REVOCATION_TTL_BUFFER", 2*time.Hour),
		APITokenCacheTTL:    getDuration("API_TOKEN_CACHE_TTL", 30*time.Second),
		GodUserID:           strings.TrimSpace(os.Getenv("NIMBUS_GOD_USER_ID")),
	}, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
