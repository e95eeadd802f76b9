// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mototwist/config.yaml",
	"/etc/mototwist/config.yml",
}

// ConfigPathEnvVar is the environment variable that overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied.
// These are layered first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Map: MapConfig{
			OSMURL:           "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			DefaultLatitude:  0.0,
			DefaultLongitude: 0.0,
			DefaultZoom:      6,
		},
		Database: DatabaseConfig{
			Path:                   "/data/mototwist.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		Routing: RoutingConfig{
			OSRMURL:        "https://router.project-osrm.org",
			Timeout:        30 * time.Second,
			MaxRetries:     5,
			RetryBaseDelay: time.Second,
			RateLimitRPS:   5,
			RateLimitBurst: 5,
		},
		Capture: CaptureConfig{
			SimplificationTolerance: "25m",
			SessionTTL:              30 * time.Minute,
		},
		Visibility: VisibilityConfig{
			StorePath: "/data/state",
		},
		Events: EventsConfig{
			Backend:        "channel",
			NATSURL:        "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
			CacheTTL:        5 * time.Minute,
			CacheBackend:    "ttl",
		},
		Security: SecurityConfig{
			AuthMode:             "jwt",
			JWTSecret:            "",
			SessionTimeout:       24 * time.Hour,
			AdminUsername:        "",
			AdminPassword:        "",
			RateLimitReqs:        100,
			RateLimitWindow:      time.Minute,
			RateLimitDisabled:    false,
			CORSOrigins:          []string{"*"},
			TrustedProxies:       []string{},
			BasicAuthDefaultRole: "rider",
			SessionStore:         "badger",
			SessionStorePath:     "/data/sessions",
			OIDC: OIDCConfig{
				IssuerURL:      "",
				ClientID:       "",
				ClientSecret:   "",
				RedirectURL:    "",
				Scopes:         []string{"openid", "profile", "email"},
				PKCEEnabled:    true,
				SessionMaxAge:  24 * time.Hour,
				CookieName:     "mototwist_session",
				CookieSecure:   true,
				RolesClaim:     "roles",
				DefaultRoles:   []string{"rider"},
				UsernameClaims: []string{"preferred_username", "name", "email"},
			},
			Casbin: CasbinConfig{
				ModelPath:      "",
				PolicyPath:     "",
				DefaultRole:    "rider",
				AutoReload:     true,
				ReloadInterval: 30 * time.Second,
				CacheEnabled:   true,
				CacheTTL:       5 * time.Minute,
			},
		},
		Backup: BackupConfig{
			Enabled:   false,
			Dir:       "/data/backups",
			Interval:  24 * time.Hour,
			Retention: 7,
		},
		Audit: AuditConfig{
			Enabled:         true,
			BufferSize:      256,
			RetentionDays:   90,
			CleanupInterval: 6 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using koanf v2 with layered sources:
//
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env strings become slices for known slice fields.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the first file found, or empty string if none exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
	"security.oidc.scopes",
	"security.oidc.default_roles",
	"security.oidc.username_claims",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML): leave it alone.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are skipped so stray environment variables never
// pollute the configuration.
//
// Examples:
//   - OSRM_URL -> routing.osrm_url
//   - MOTOTWIST_SECRET_KEY -> security.jwt_secret
//   - TWIST_SIMPLIFICATION_TOLERANCE_M -> capture.simplification_tolerance
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Map mappings
		"osm_url":               "map.osm_url",
		"map_default_latitude":  "map.default_latitude",
		"map_default_longitude": "map.default_longitude",
		"map_default_zoom":      "map.default_zoom",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Routing service mappings
		"osrm_url":              "routing.osrm_url",
		"osrm_timeout":          "routing.timeout",
		"osrm_max_retries":      "routing.max_retries",
		"osrm_retry_base_delay": "routing.retry_base_delay",
		"osrm_rate_limit_rps":   "routing.rate_limit_rps",
		"osrm_rate_limit_burst": "routing.rate_limit_burst",

		// Capture mappings
		"twist_simplification_tolerance_m": "capture.simplification_tolerance",
		"capture_session_ttl":              "capture.session_ttl",

		// Visibility store mappings
		"visibility_store_path": "visibility.store_path",

		// Events mappings
		"events_backend": "events.backend",
		"nats_url":       "events.nats_url",
		"nats_embedded":  "events.embedded_server",
		"nats_store_dir": "events.store_dir",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",
		"api_cache_ttl":         "api.cache_ttl",
		"api_cache_backend":     "api.cache_backend",

		// Security mappings
		"auth_mode":                "security.auth_mode",
		"jwt_secret":               "security.jwt_secret",
		"mototwist_secret_key":     "security.jwt_secret",
		"session_timeout":          "security.session_timeout",
		"admin_username":           "security.admin_username",
		"mototwist_admin_username": "security.admin_username",
		"admin_password":           "security.admin_password",
		"mototwist_admin_password": "security.admin_password",
		"rate_limit_requests":      "security.rate_limit_reqs",
		"rate_limit_window":        "security.rate_limit_window",
		"disable_rate_limit":       "security.rate_limit_disabled",
		"cors_origins":             "security.cors_origins",
		"trusted_proxies":          "security.trusted_proxies",
		"basic_auth_default_role":  "security.basic_auth_default_role",
		"session_store":            "security.session_store",
		"session_store_path":       "security.session_store_path",

		// OIDC mappings
		"oidc_issuer_url":      "security.oidc.issuer_url",
		"oidc_client_id":       "security.oidc.client_id",
		"oidc_client_secret":   "security.oidc.client_secret",
		"oidc_redirect_url":    "security.oidc.redirect_url",
		"oidc_scopes":          "security.oidc.scopes",
		"oidc_pkce_enabled":    "security.oidc.pkce_enabled",
		"oidc_session_max_age": "security.oidc.session_max_age",
		"oidc_cookie_name":     "security.oidc.cookie_name",
		"oidc_cookie_secure":   "security.oidc.cookie_secure",
		"oidc_roles_claim":     "security.oidc.roles_claim",
		"oidc_default_roles":   "security.oidc.default_roles",
		"oidc_username_claims": "security.oidc.username_claims",

		// Casbin mappings
		"casbin_model_path":      "security.casbin.model_path",
		"casbin_policy_path":     "security.casbin.policy_path",
		"casbin_default_role":    "security.casbin.default_role",
		"casbin_auto_reload":     "security.casbin.auto_reload",
		"casbin_reload_interval": "security.casbin.reload_interval",
		"casbin_cache_enabled":   "security.casbin.cache_enabled",
		"casbin_cache_ttl":       "security.casbin.cache_ttl",

		// Backup mappings
		"backup_enabled":   "backup.enabled",
		"backup_dir":       "backup.dir",
		"backup_interval":  "backup.interval",
		"backup_retention": "backup.retention",

		"audit_enabled":          "audit.enabled",
		"audit_buffer_size":      "audit.buffer_size",
		"audit_retention_days":   "audit.retention_days",
		"audit_cleanup_interval": "audit.cleanup_interval",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped.
	return ""
}

// WatchConfigFile sets up a file watcher for hot-reload capability.
// The caller is responsible for mutex protection when swapping
// configuration during reloads.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
