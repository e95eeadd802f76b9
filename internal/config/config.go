// MotoTwist - Self-Hosted Motorcycle Route Catalog
// Copyright 2026 MotoTwist contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mototwist/mototwist

// Package config provides layered configuration for MotoTwist.
//
// Configuration is loaded with koanf from three sources, later layers
// overriding earlier ones:
//
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or config.yaml)
//  3. Environment variables
//
// See LoadWithKoanf for the environment variable mapping.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the MotoTwist server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Map        MapConfig        `koanf:"map"`
	Database   DatabaseConfig   `koanf:"database"`
	Routing    RoutingConfig    `koanf:"routing"`
	Capture    CaptureConfig    `koanf:"capture"`
	Visibility VisibilityConfig `koanf:"visibility"`
	Events     EventsConfig     `koanf:"events"`
	API        APIConfig        `koanf:"api"`
	Security   SecurityConfig   `koanf:"security"`
	Backup     BackupConfig     `koanf:"backup"`
	Audit      AuditConfig      `koanf:"audit"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_PORT: listen port (default: 8000)
//   - HTTP_HOST: listen host (default: 0.0.0.0)
//   - HTTP_TIMEOUT: request timeout (default: 30s)
//   - ENVIRONMENT: "development", "staging" or "production" (default: development)
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// MapConfig holds settings for the map view served to clients.
//
// Environment Variables:
//   - OSM_URL: tile layer URL template (default: openstreetmap.org tiles)
//   - MAP_DEFAULT_LATITUDE / MAP_DEFAULT_LONGITUDE: initial map center
//   - MAP_DEFAULT_ZOOM: initial zoom level (default: 6)
type MapConfig struct {
	OSMURL           string  `koanf:"osm_url"`
	DefaultLatitude  float64 `koanf:"default_latitude"`
	DefaultLongitude float64 `koanf:"default_longitude"`
	DefaultZoom      int     `koanf:"default_zoom"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment Variables:
//   - DUCKDB_PATH: database file path (default: /data/mototwist.duckdb)
//   - DUCKDB_MAX_MEMORY: memory limit (default: 2GB)
//   - DUCKDB_THREADS: worker threads, 0 = NumCPU (default: 0)
type DatabaseConfig struct {
	Path                   string `koanf:"path"`
	MaxMemory              string `koanf:"max_memory"`
	Threads                int    `koanf:"threads"`
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// RoutingConfig holds settings for the external OSRM routing service.
//
// Environment Variables:
//   - OSRM_URL: routing service base URL (default: https://router.project-osrm.org)
//   - OSRM_TIMEOUT: per-request timeout (default: 30s)
//   - OSRM_MAX_RETRIES: retry attempts on 429/5xx (default: 5)
//   - OSRM_RATE_LIMIT_RPS: outbound requests per second (default: 5)
//   - OSRM_RATE_LIMIT_BURST: outbound burst size (default: 5)
type RoutingConfig struct {
	OSRMURL        string        `koanf:"osrm_url"`
	Timeout        time.Duration `koanf:"timeout"`
	MaxRetries     int           `koanf:"max_retries"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	RateLimitRPS   float64       `koanf:"rate_limit_rps"`
	RateLimitBurst int           `koanf:"rate_limit_burst"`
}

// CaptureConfig holds route capture and post-processing settings.
//
// Environment Variables:
//   - TWIST_SIMPLIFICATION_TOLERANCE_M: geometry simplification tolerance,
//     meters with optional "m" suffix, e.g. "25m" (default: 25m)
//   - CAPTURE_SESSION_TTL: idle capture session expiry (default: 30m)
type CaptureConfig struct {
	// SimplificationTolerance is the Douglas-Peucker tolerance applied to
	// route geometry before storage. Accepts "25" or "25m".
	SimplificationTolerance string `koanf:"simplification_tolerance"`
	// SessionTTL is how long an untouched capture session survives before
	// the janitor cancels it.
	SessionTTL time.Duration `koanf:"session_ttl"`
}

// ToleranceMeters parses SimplificationTolerance into meters.
// A trailing "m" is accepted; zero disables simplification.
func (c CaptureConfig) ToleranceMeters() (float64, error) {
	raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(c.SimplificationTolerance), "m"))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid simplification tolerance %q: %w", c.SimplificationTolerance, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("simplification tolerance must not be negative, got %q", c.SimplificationTolerance)
	}
	return v, nil
}

// VisibilityConfig holds settings for the persisted visible-set store.
//
// Environment Variables:
//   - VISIBILITY_STORE_PATH: BadgerDB path for per-user map state (default: /data/state)
type VisibilityConfig struct {
	StorePath string `koanf:"store_path"`
}

// EventsConfig holds domain event bus settings.
//
// The default "channel" backend is an in-process Watermill GoChannel
// pub/sub. The "nats" backend (built with the nats tag) runs JetStream,
// optionally on an embedded server, for multi-instance deployments.
//
// Environment Variables:
//   - EVENTS_BACKEND: "channel" or "nats" (default: channel)
//   - NATS_URL: NATS server URL (default: nats://127.0.0.1:4222)
//   - NATS_EMBEDDED: run an embedded NATS server (default: true)
//   - NATS_STORE_DIR: JetStream storage directory
type EventsConfig struct {
	Backend        string `koanf:"backend"`
	NATSURL        string `koanf:"nats_url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
}

// APIConfig holds API behavior settings.
//
// Environment Variables:
//   - API_DEFAULT_PAGE_SIZE: default list page size (default: 20)
//   - API_MAX_PAGE_SIZE: maximum list page size (default: 100)
//   - API_CACHE_TTL: list/read response cache TTL (default: 5m, 0 disables)
//   - API_CACHE_BACKEND: "ttl" or "lfu" response cache eviction (default: ttl)
type APIConfig struct {
	DefaultPageSize int           `koanf:"default_page_size"`
	MaxPageSize     int           `koanf:"max_page_size"`
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheBackend    string        `koanf:"cache_backend"`
}

// SecurityConfig holds authentication, authorization and rate limit settings.
//
// Environment Variables:
//   - AUTH_MODE: "jwt", "basic", "oidc" or "none" (default: jwt)
//   - MOTOTWIST_SECRET_KEY / JWT_SECRET: HMAC secret for JWT signing
//   - SESSION_TIMEOUT: JWT/session lifetime (default: 24h)
//   - MOTOTWIST_ADMIN_USERNAME / ADMIN_USERNAME: bootstrap admin user
//   - MOTOTWIST_ADMIN_PASSWORD / ADMIN_PASSWORD: bootstrap admin password
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW / DISABLE_RATE_LIMIT
//   - CORS_ORIGINS: comma-separated allowed origins
//   - TRUSTED_PROXIES: comma-separated proxy CIDRs
//   - SESSION_STORE: "memory" or "badger" (default: badger)
//   - SESSION_STORE_PATH: BadgerDB path for sessions
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	TrustedProxies    []string      `koanf:"trusted_proxies"`

	// BasicAuthDefaultRole is the role for Basic Auth users other than the
	// configured admin (default: rider).
	BasicAuthDefaultRole string `koanf:"basic_auth_default_role"`

	// SessionStore selects the session storage backend: "memory" or "badger".
	SessionStore string `koanf:"session_store"`
	// SessionStorePath is the BadgerDB path (required when session_store=badger).
	SessionStorePath string `koanf:"session_store_path"`

	OIDC   OIDCConfig   `koanf:"oidc"`
	Casbin CasbinConfig `koanf:"casbin"`
}

// OIDCConfig holds OIDC/OAuth 2.0 authentication settings.
//
// Environment Variables:
//   - OIDC_ISSUER_URL, OIDC_CLIENT_ID, OIDC_CLIENT_SECRET, OIDC_REDIRECT_URL
//   - OIDC_SCOPES: comma-separated OAuth scopes (default: openid,profile,email)
//   - OIDC_PKCE_ENABLED: enable PKCE (default: true)
//   - OIDC_COOKIE_NAME / OIDC_COOKIE_SECURE
//   - OIDC_ROLES_CLAIM: claim containing roles (default: roles)
//   - OIDC_DEFAULT_ROLES: roles for new users (default: rider)
//   - OIDC_USERNAME_CLAIMS: claims tried for username
type OIDCConfig struct {
	IssuerURL      string        `koanf:"issuer_url"`
	ClientID       string        `koanf:"client_id"`
	ClientSecret   string        `koanf:"client_secret"`
	RedirectURL    string        `koanf:"redirect_url"`
	Scopes         []string      `koanf:"scopes"`
	PKCEEnabled    bool          `koanf:"pkce_enabled"`
	SessionMaxAge  time.Duration `koanf:"session_max_age"`
	CookieName     string        `koanf:"cookie_name"`
	CookieSecure   bool          `koanf:"cookie_secure"`
	RolesClaim     string        `koanf:"roles_claim"`
	DefaultRoles   []string      `koanf:"default_roles"`
	UsernameClaims []string      `koanf:"username_claims"`
}

// CasbinConfig holds Casbin RBAC authorization settings.
//
// Environment Variables:
//   - CASBIN_MODEL_PATH / CASBIN_POLICY_PATH: external files (default: embedded)
//   - CASBIN_DEFAULT_ROLE: role for users without one (default: rider)
//   - CASBIN_AUTO_RELOAD / CASBIN_RELOAD_INTERVAL
//   - CASBIN_CACHE_ENABLED / CASBIN_CACHE_TTL
type CasbinConfig struct {
	ModelPath      string        `koanf:"model_path"`
	PolicyPath     string        `koanf:"policy_path"`
	DefaultRole    string        `koanf:"default_role"`
	AutoReload     bool          `koanf:"auto_reload"`
	ReloadInterval time.Duration `koanf:"reload_interval"`
	CacheEnabled   bool          `koanf:"cache_enabled"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
}

// BackupConfig holds database backup scheduling settings.
//
// Environment Variables:
//   - BACKUP_ENABLED: enable scheduled backups (default: false)
//   - BACKUP_DIR: backup destination directory (default: /data/backups)
//   - BACKUP_INTERVAL: snapshot interval (default: 24h)
//   - BACKUP_RETENTION: snapshots to keep (default: 7)
type BackupConfig struct {
	Enabled   bool          `koanf:"enabled"`
	Dir       string        `koanf:"dir"`
	Interval  time.Duration `koanf:"interval"`
	Retention int           `koanf:"retention"`
}

// AuditConfig holds security audit trail settings.
//
// Environment Variables:
//   - AUDIT_ENABLED: record audit events (default: true)
//   - AUDIT_BUFFER_SIZE: async write buffer capacity (default: 256)
//   - AUDIT_RETENTION_DAYS: days to keep events (default: 90)
//   - AUDIT_CLEANUP_INTERVAL: retention prune interval (default: 6h)
type AuditConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BufferSize      int           `koanf:"buffer_size"`
	RetentionDays   int           `koanf:"retention_days"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// LoggingConfig holds logging settings for zerolog.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction returns true if the application is running in production mode.
// Production mode is determined by the ENVIRONMENT environment variable.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads the layered configuration. It is the entry point main uses.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
