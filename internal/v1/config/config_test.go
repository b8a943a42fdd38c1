package config

import (
	"os"
	"strings"
	"testing"
)

// setupTestEnv sets up environment variables for testing
func setupTestEnv(t *testing.T) func() {
	keys := []string{
		"BLOOM_PORT", "BLOOM_WS_ADDR", "SIDECAR_TOKEN", "SIDECAR_PORT",
		"REDIS_ENABLED", "REDIS_ADDR", "GO_ENV", "LOG_LEVEL",
	}

	origVars := make(map[string]string, len(keys))
	for _, k := range keys {
		origVars[k] = os.Getenv(k)
		os.Unsetenv(k)
	}

	return func() {
		for key, val := range origVars {
			if val != "" {
				os.Setenv(key, val)
			} else {
				os.Unsetenv(key)
			}
		}
	}
}

const validSidecarToken = "this-is-a-very-long-secret-key-for-testing-purposes"

func TestValidateBloomEnv_ValidConfiguration(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("BLOOM_PORT", "8080")
	os.Setenv("REDIS_ENABLED", "false")

	cfg, err := ValidateBloomEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.BloomPort != "8080" {
		t.Errorf("Expected BLOOM_PORT to be '8080', got '%s'", cfg.BloomPort)
	}
	if cfg.BloomWSAddr != "0.0.0.0:8080" {
		t.Errorf("Expected BLOOM_WS_ADDR to default, got '%s'", cfg.BloomWSAddr)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("Expected GO_ENV to default to 'production', got '%s'", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LOG_LEVEL to default to 'info', got '%s'", cfg.LogLevel)
	}
}

func TestValidateBloomEnv_MissingPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	_, err := ValidateBloomEnv()
	if err == nil {
		t.Fatal("Expected error for missing BLOOM_PORT, got nil")
	}
	if !strings.Contains(err.Error(), "BLOOM_PORT is required") {
		t.Errorf("Expected error message about BLOOM_PORT, got: %v", err)
	}
}

func TestValidateBloomEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("BLOOM_PORT", "99999")

	_, err := ValidateBloomEnv()
	if err == nil {
		t.Fatal("Expected error for invalid BLOOM_PORT, got nil")
	}
	if !strings.Contains(err.Error(), "BLOOM_PORT must be a valid port number") {
		t.Errorf("Expected error message about invalid BLOOM_PORT, got: %v", err)
	}
}

func TestValidateBloomEnv_InvalidRedisAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("BLOOM_PORT", "8080")
	os.Setenv("REDIS_ENABLED", "true")
	os.Setenv("REDIS_ADDR", "invalid-format")

	_, err := ValidateBloomEnv()
	if err == nil {
		t.Fatal("Expected error for invalid REDIS_ADDR, got nil")
	}
	if !strings.Contains(err.Error(), "REDIS_ADDR must be in format 'host:port'") {
		t.Errorf("Expected error message about REDIS_ADDR format, got: %v", err)
	}
}

func TestValidateBloomEnv_RedisDefaultAddr(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("BLOOM_PORT", "8080")
	os.Setenv("REDIS_ENABLED", "true")
	// Don't set REDIS_ADDR

	cfg, err := ValidateBloomEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR to default to 'localhost:6379', got '%s'", cfg.RedisAddr)
	}
}

func TestValidateSidecarEnv_ValidConfiguration(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SIDECAR_TOKEN", validSidecarToken)
	os.Setenv("SIDECAR_PORT", "9090")

	cfg, err := ValidateSidecarEnv()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if cfg.SidecarToken != validSidecarToken {
		t.Errorf("Expected SIDECAR_TOKEN to be set correctly")
	}
	if cfg.SidecarPort != "9090" {
		t.Errorf("Expected SIDECAR_PORT to be '9090', got '%s'", cfg.SidecarPort)
	}
}

func TestValidateSidecarEnv_MissingToken(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SIDECAR_PORT", "9090")

	_, err := ValidateSidecarEnv()
	if err == nil {
		t.Fatal("Expected error for missing SIDECAR_TOKEN, got nil")
	}
	if !strings.Contains(err.Error(), "SIDECAR_TOKEN is required") {
		t.Errorf("Expected error message about SIDECAR_TOKEN, got: %v", err)
	}
}

func TestValidateSidecarEnv_ShortToken(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SIDECAR_TOKEN", "short")
	os.Setenv("SIDECAR_PORT", "9090")

	_, err := ValidateSidecarEnv()
	if err == nil {
		t.Fatal("Expected error for short SIDECAR_TOKEN, got nil")
	}
	if !strings.Contains(err.Error(), "must be at least 32 characters") {
		t.Errorf("Expected error message about SIDECAR_TOKEN length, got: %v", err)
	}
}

func TestValidateSidecarEnv_MissingPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("SIDECAR_TOKEN", validSidecarToken)

	_, err := ValidateSidecarEnv()
	if err == nil {
		t.Fatal("Expected error for missing SIDECAR_PORT, got nil")
	}
	if !strings.Contains(err.Error(), "SIDECAR_PORT is required") {
		t.Errorf("Expected error message about SIDECAR_PORT, got: %v", err)
	}
}

func TestRedactSecret(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected string
	}{
		{"Long secret", "this-is-a-very-long-secret-key", "this-is-***"},
		{"Short secret", "short", "***"},
		{"Exactly 8 chars", "12345678", "***"},
		{"9 chars", "123456789", "12345678***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := redactSecret(tt.secret)
			if result != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, result)
			}
		})
	}
}

func TestIsValidHostPort(t *testing.T) {
	tests := []struct {
		name     string
		addr     string
		expected bool
	}{
		{"Valid localhost", "localhost:8080", true},
		{"Valid IP", "127.0.0.1:3000", true},
		{"Valid hostname", "example.com:443", true},
		{"Missing port", "localhost", false},
		{"Missing host", ":8080", false},
		{"Invalid port", "localhost:99999", false},
		{"Non-numeric port", "localhost:abc", false},
		{"Multiple colons", "localhost:8080:9090", false},
		{"Empty string", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isValidHostPort(tt.addr)
			if result != tt.expected {
				t.Errorf("isValidHostPort('%s') = %v, expected %v", tt.addr, result, tt.expected)
			}
		})
	}
}
