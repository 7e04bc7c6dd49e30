// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package config loads and validates application configuration.
//
// Configuration is layered with Koanf v2:
//  1. Defaults: built-in sensible defaults for all optional settings
//  2. Config File: optional YAML config file (config.yaml)
//  3. Environment Variables: override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import (
	"time"
)

// Config holds all application configuration.
type Config struct {
	Spotify   SpotifyConfig   `koanf:"spotify"`
	Database  DatabaseConfig  `koanf:"database"`
	Sweep     SweepConfig     `koanf:"sweep"`
	Analytics AnalyticsConfig `koanf:"analytics"`
	Server    ServerConfig    `koanf:"server"`
	API       APIConfig       `koanf:"api"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// SpotifyConfig holds credentials and tuning for the streaming provider API.
//
// Environment Variables:
//   - SPOTIFY_CLIENT_ID: OAuth application client id (required)
//   - SPOTIFY_CLIENT_SECRET: OAuth application client secret (required)
//   - SPOTIFY_API_URL / SPOTIFY_ACCOUNTS_URL: override base URLs (tests, proxies)
//   - SPOTIFY_TIMEOUT: per-request timeout (default 10s)
//   - SPOTIFY_RATE_LIMIT: request rate toward the provider, per second (default 10)
type SpotifyConfig struct {
	ClientID      string        `koanf:"client_id"`
	ClientSecret  string        `koanf:"client_secret"`
	APIURL        string        `koanf:"api_url"`
	AccountsURL   string        `koanf:"accounts_url"`
	Timeout       time.Duration `koanf:"timeout"`
	RateLimit     float64       `koanf:"rate_limit"`
	RateBurst     int           `koanf:"rate_burst"`
	RecentlyLimit int           `koanf:"recently_limit"` // Max plays fetched per poll (provider caps at 50)
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// SweepConfig holds periodic ingestion sweep settings.
//
// Environment Variables:
//   - SWEEP_INTERVAL: time between automatic sweeps (default 15m)
//   - SWEEP_WORKERS: concurrent connections processed (default 4)
//   - SWEEP_CONNECTION_TIMEOUT: per-connection budget (default 30s)
type SweepConfig struct {
	Interval          time.Duration `koanf:"interval"`
	Workers           int           `koanf:"workers"`
	ConnectionTimeout time.Duration `koanf:"connection_timeout"`
}

// AnalyticsConfig holds the engagement model's tunables. The defaults match
// the product definition; changing them changes what the derived metrics mean,
// so they are configurable mainly for tests and for non-EU deployments.
type AnalyticsConfig struct {
	Timezone       string        `koanf:"timezone"`        // IANA zone for day bucketing
	DedupTolerance time.Duration `koanf:"dedup_tolerance"` // Plays closer than this collapse
	RetentionDays  int           `koanf:"retention_days"`  // Connection active window
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds API response limits.
type APIConfig struct {
	DefaultDays int `koanf:"default_days"` // Daily series length when unspecified
	MaxDays     int `koanf:"max_days"`
}

// SecurityConfig holds authentication and rate limiting settings.
//
// CronKey is the shared secret required on job trigger endpoints via the
// X-CRON-KEY header. There is no default; triggers are rejected until it is
// set.
type SecurityConfig struct {
	CronKey           string        `koanf:"cron_key"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
