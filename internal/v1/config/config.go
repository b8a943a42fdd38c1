package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration shared by both binaries
// (the signaling server and the sidecar). Fields that only apply to one
// binary are left zero-valued when validated through the other binary's
// entry point.
type Config struct {
	// Signaling server (bloom)
	BloomPort   string
	BloomWSAddr string

	// Sidecar
	SidecarToken string
	SidecarPort  string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	// Moderator/admin API JWKS
	Auth0Domain     string
	Auth0Audience   string
	SkipAuth        bool
	DevelopmentMode bool
	AllowedOrigins  string

	// Presence mirror (optional, degrades gracefully when disabled)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	// Rate Limits
	RateLimitAPIGlobal string
	RateLimitAPIPublic string
	RateLimitAPIRooms  string
	RateLimitAPIKick   string
	RateLimitWsIP      string
	RateLimitWsUser    string

	// Tracing (optional, no-ops when unset)
	OtelExporterOTLPEndpoint string
}

// ValidateBloomEnv validates environment variables required by the signaling
// server binary and returns a populated Config. Returns an error listing
// every validation failure, not just the first.
func ValidateBloomEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.BloomPort = os.Getenv("BLOOM_PORT")
	if cfg.BloomPort == "" {
		errors = append(errors, "BLOOM_PORT is required")
	} else if !isValidPort(cfg.BloomPort) {
		errors = append(errors, fmt.Sprintf("BLOOM_PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.BloomPort))
	}

	cfg.BloomWSAddr = getEnvOrDefault("BLOOM_WS_ADDR", "0.0.0.0:8080")

	validateCommon(cfg, &errors)

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg, "bloom_port", cfg.BloomPort, "bloom_ws_addr", cfg.BloomWSAddr)
	return cfg, nil
}

// ValidateSidecarEnv validates environment variables required by the
// sidecar binary and returns a populated Config.
func ValidateSidecarEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.SidecarToken = os.Getenv("SIDECAR_TOKEN")
	if cfg.SidecarToken == "" {
		errors = append(errors, "SIDECAR_TOKEN is required")
	} else if len(cfg.SidecarToken) < 32 {
		errors = append(errors, fmt.Sprintf("SIDECAR_TOKEN must be at least 32 characters (got %d)", len(cfg.SidecarToken)))
	}

	cfg.SidecarPort = os.Getenv("SIDECAR_PORT")
	if cfg.SidecarPort == "" {
		errors = append(errors, "SIDECAR_PORT is required")
	} else if !isValidPort(cfg.SidecarPort) {
		errors = append(errors, fmt.Sprintf("SIDECAR_PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.SidecarPort))
	}

	validateCommon(cfg, &errors)

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg, "sidecar_token", redactSecret(cfg.SidecarToken), "sidecar_port", cfg.SidecarPort)
	return cfg, nil
}

// validateCommon validates the environment variables shared by both binaries.
func validateCommon(cfg *Config, errors *[]string) {
	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			*errors = append(*errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.Auth0Domain = os.Getenv("AUTH0_DOMAIN")
	cfg.Auth0Audience = os.Getenv("AUTH0_AUDIENCE")
	cfg.SkipAuth = os.Getenv("SKIP_AUTH") == "true"
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.RateLimitAPIGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitAPIPublic = getEnvOrDefault("RATE_LIMIT_API_PUBLIC", "100-M")
	cfg.RateLimitAPIRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitAPIKick = getEnvOrDefault("RATE_LIMIT_API_KICK", "30-M")
	cfg.RateLimitWsIP = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	cfg.OtelExporterOTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

// isValidPort checks if a string is a valid TCP port number.
func isValidPort(s string) bool {
	port, err := strconv.Atoi(s)
	return err == nil && port >= 1 && port <= 65535
}

// isValidHostPort checks if a string is in the format "host:port"
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	if !isValidPort(parts[1]) {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted.
// extra is a flat key/value list of binary-specific fields to include.
func logValidatedConfig(cfg *Config, extra ...any) {
	fields := []any{
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"development_mode", cfg.DevelopmentMode,
		"rate_limit_api_global", cfg.RateLimitAPIGlobal,
	}
	fields = append(fields, extra...)

	slog.Info("environment configuration validated successfully")
	slog.Info("configuration", fields...)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// redactSecret redacts a secret by showing only the first 8 characters
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
