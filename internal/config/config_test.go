// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults.
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Server.Environment != "development" {
		t.Errorf("Server.Environment = %q, want development", cfg.Server.Environment)
	}

	if cfg.Routing.OSRMURL != "https://router.project-osrm.org" {
		t.Errorf("Routing.OSRMURL = %q, want https://router.project-osrm.org", cfg.Routing.OSRMURL)
	}
	if cfg.Routing.Timeout != 30*time.Second {
		t.Errorf("Routing.Timeout = %v, want 30s", cfg.Routing.Timeout)
	}
	if cfg.Routing.MaxRetries != 5 {
		t.Errorf("Routing.MaxRetries = %d, want 5", cfg.Routing.MaxRetries)
	}

	if cfg.Capture.SimplificationTolerance != "25m" {
		t.Errorf("Capture.SimplificationTolerance = %q, want 25m", cfg.Capture.SimplificationTolerance)
	}

	if cfg.Database.Path != "/data/mototwist.duckdb" {
		t.Errorf("Database.Path = %q, want /data/mototwist.duckdb", cfg.Database.Path)
	}
	if cfg.Database.MaxMemory != "2GB" {
		t.Errorf("Database.MaxMemory = %q, want 2GB", cfg.Database.MaxMemory)
	}

	if cfg.Events.Backend != "channel" {
		t.Errorf("Events.Backend = %q, want channel", cfg.Events.Backend)
	}

	if cfg.Security.AuthMode != "jwt" {
		t.Errorf("Security.AuthMode = %q, want jwt", cfg.Security.AuthMode)
	}
	if cfg.Security.SessionStore != "badger" {
		t.Errorf("Security.SessionStore = %q, want badger", cfg.Security.SessionStore)
	}

	if cfg.API.DefaultPageSize != 20 || cfg.API.MaxPageSize != 100 {
		t.Errorf("API page sizes = %d/%d, want 20/100", cfg.API.DefaultPageSize, cfg.API.MaxPageSize)
	}
	if cfg.API.CacheTTL != 5*time.Minute || cfg.API.CacheBackend != "ttl" {
		t.Errorf("API cache = %v/%q, want 5m/ttl", cfg.API.CacheTTL, cfg.API.CacheBackend)
	}

	if cfg.Security.Casbin.DefaultRole != "rider" {
		t.Errorf("Casbin.DefaultRole = %q, want rider", cfg.Security.Casbin.DefaultRole)
	}
	if !cfg.Audit.Enabled || cfg.Audit.BufferSize != 256 || cfg.Audit.RetentionDays != 90 {
		t.Errorf("Audit defaults = %+v, want enabled/256/90", cfg.Audit)
	}
}

// setValidAuthEnv sets the minimum env for the default jwt auth mode to validate.
func setValidAuthEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MOTOTWIST_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "sturdy-horse-battery")
}

func TestLoadWithKoanfEnvOverrides(t *testing.T) {
	setValidAuthEnv(t)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("OSRM_URL", "http://localhost:5000")
	t.Setenv("TWIST_SIMPLIFICATION_TOLERANCE_M", "10m")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Routing.OSRMURL != "http://localhost:5000" {
		t.Errorf("Routing.OSRMURL = %q, want http://localhost:5000", cfg.Routing.OSRMURL)
	}
	if cfg.Capture.SimplificationTolerance != "10m" {
		t.Errorf("Capture.SimplificationTolerance = %q, want 10m", cfg.Capture.SimplificationTolerance)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != "https://a.example.com" {
		t.Errorf("CORSOrigins = %v, want two trimmed origins", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanfMototwistAliases(t *testing.T) {
	setValidAuthEnv(t)
	t.Setenv("MOTOTWIST_ADMIN_USERNAME", "chief")
	t.Setenv("MOTOTWIST_ADMIN_PASSWORD", "gravel-and-asphalt")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}

	if cfg.Security.AdminUsername != "chief" {
		t.Errorf("AdminUsername = %q, want chief", cfg.Security.AdminUsername)
	}
	if cfg.Security.AdminPassword != "gravel-and-asphalt" {
		t.Errorf("AdminPassword = %q, want gravel-and-asphalt", cfg.Security.AdminPassword)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	setValidAuthEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 8443
routing:
  osrm_url: "http://osrm.internal:5000"
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}

	if cfg.Server.Port != 8443 {
		t.Errorf("Server.Port = %d, want 8443 from config file", cfg.Server.Port)
	}
	if cfg.Routing.OSRMURL != "http://osrm.internal:5000" {
		t.Errorf("Routing.OSRMURL = %q, want value from config file", cfg.Routing.OSRMURL)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestEnvBeatsConfigFile(t *testing.T) {
	setValidAuthEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8443\n"), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9001")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error: %v", err)
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want env override 9001", cfg.Server.Port)
	}
}

func TestToleranceMeters(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		{"25m", 25, false},
		{"25", 25, false},
		{" 12.5m ", 12.5, false},
		{"0", 0, false},
		{"", 0, false},
		{"-3m", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c := CaptureConfig{SimplificationTolerance: tt.input}
			got, err := c.ToleranceMeters()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ToleranceMeters(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ToleranceMeters(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateAuthModeNoneRejectedInProduction(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.AuthMode = "none"
	cfg.Security.CORSOrigins = []string{"https://twists.example.com"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected production AUTH_MODE=none to be rejected")
	}
	if !strings.Contains(err.Error(), "AUTH_MODE=none") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateWildcardCORSRejectedInProduction(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Environment = "production"
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Security.AdminUsername = "admin"
	cfg.Security.AdminPassword = "sturdy-horse-battery"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected wildcard CORS to be rejected in production")
	}
	if !strings.Contains(err.Error(), "CORS_ORIGINS") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateJWTSecretTooShort(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "short"
	cfg.Security.AdminUsername = "admin"
	cfg.Security.AdminPassword = "sturdy-horse-battery"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected short JWT secret to be rejected")
	}
}

func TestValidatePlaceholderSecretRejected(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "changeme-changeme-changeme-changeme"
	cfg.Security.AdminUsername = "admin"
	cfg.Security.AdminPassword = "sturdy-horse-battery"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected placeholder JWT secret to be rejected")
	}
}

func TestValidateOSRMURL(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.AuthMode = "none"
	cfg.Routing.OSRMURL = "ftp://router.example.com"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected non-http OSRM_URL to be rejected")
	}

	cfg.Routing.OSRMURL = "http://router.example.com/route"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected OSRM_URL with path to be rejected")
	}

	cfg.Routing.OSRMURL = "http://router.example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid OSRM_URL, got error: %v", err)
	}
}

func TestValidateEventsBackend(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.AuthMode = "none"

	cfg.Events.Backend = "carrier-pigeon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown events backend to be rejected")
	}

	cfg.Events.Backend = "nats"
	cfg.Events.NATSURL = "nats://localhost:4222"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected nats backend to validate, got: %v", err)
	}
}

func TestValidateCacheBackend(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.AuthMode = "none"

	cfg.API.CacheBackend = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected unknown cache backend to be rejected")
	}

	cfg.API.CacheBackend = "lfu"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected lfu backend to validate, got: %v", err)
	}
}

func TestIsProduction(t *testing.T) {
	cfg := defaultConfig()

	for _, env := range []string{"production", "PROD", "Production"} {
		cfg.Server.Environment = env
		if !cfg.IsProduction() {
			t.Errorf("IsProduction() = false for %q", env)
		}
	}

	for _, env := range []string{"", "development", "dev", "staging"} {
		cfg.Server.Environment = env
		if cfg.IsProduction() && env != "staging" {
			t.Errorf("IsProduction() = true for %q", env)
		}
	}
}
