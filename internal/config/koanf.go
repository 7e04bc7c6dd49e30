// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

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

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/auscultor/config.yaml",
	"/etc/auscultor/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			ClientID:      "",
			ClientSecret:  "",
			APIURL:        "https://api.spotify.com/v1",
			AccountsURL:   "https://accounts.spotify.com",
			Timeout:       10 * time.Second,
			RateLimit:     10,
			RateBurst:     5,
			RecentlyLimit: 50,
		},
		Database: DatabaseConfig{
			Path:      "/data/auscultor.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Sweep: SweepConfig{
			Interval:          15 * time.Minute,
			Workers:           4,
			ConnectionTimeout: 30 * time.Second,
		},
		Analytics: AnalyticsConfig{
			Timezone:       "Europe/Copenhagen",
			DedupTolerance: 5 * time.Minute,
			RetentionDays:  45,
		},
		Server: ServerConfig{
			Port:    3857,
			Host:    "0.0.0.0",
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultDays: 30,
			MaxDays:     365,
		},
		Security: SecurityConfig{
			CronKey:           "",
			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any setting
func Load() (*Config, error) {
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

	// Env vars come in as strings; comma-split the known slice fields.
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
// Returns the path to the first file found, or empty string if none found.
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
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file), skip.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
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
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - SPOTIFY_CLIENT_ID -> spotify.client_id
//   - DUCKDB_PATH -> database.path
//   - SWEEP_INTERVAL -> sweep.interval
//   - HTTP_PORT -> server.port
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Spotify mappings
		"spotify_client_id":      "spotify.client_id",
		"spotify_client_secret":  "spotify.client_secret",
		"spotify_api_url":        "spotify.api_url",
		"spotify_accounts_url":   "spotify.accounts_url",
		"spotify_timeout":        "spotify.timeout",
		"spotify_rate_limit":     "spotify.rate_limit",
		"spotify_rate_burst":     "spotify.rate_burst",
		"spotify_recently_limit": "spotify.recently_limit",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Sweep mappings
		"sweep_interval":           "sweep.interval",
		"sweep_workers":            "sweep.workers",
		"sweep_connection_timeout": "sweep.connection_timeout",

		// Analytics mappings
		"analytics_timezone":        "analytics.timezone",
		"analytics_dedup_tolerance": "analytics.dedup_tolerance",
		"analytics_retention_days":  "analytics.retention_days",

		// Server mappings
		"http_port":    "server.port",
		"http_host":    "server.host",
		"http_timeout": "server.timeout",

		// API mappings
		"api_default_days": "api.default_days",
		"api_max_days":     "api.max_days",

		// Security mappings
		"cron_key":            "security.cron_key",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables never
	// pollute the config.
	return ""
}
