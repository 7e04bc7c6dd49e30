// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateSpotify(); err != nil {
		return err
	}

	if err := c.validateSweep(); err != nil {
		return err
	}

	if err := c.validateAnalytics(); err != nil {
		return err
	}

	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAPI(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateSpotify() error {
	if c.Spotify.ClientID == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_ID is required")
	}
	if c.Spotify.ClientSecret == "" {
		return fmt.Errorf("SPOTIFY_CLIENT_SECRET is required")
	}
	if err := validateHTTPURL(c.Spotify.APIURL, "SPOTIFY_API_URL"); err != nil {
		return err
	}
	if err := validateHTTPURL(c.Spotify.AccountsURL, "SPOTIFY_ACCOUNTS_URL"); err != nil {
		return err
	}
	if c.Spotify.Timeout <= 0 {
		return fmt.Errorf("SPOTIFY_TIMEOUT must be positive")
	}
	if c.Spotify.RateLimit <= 0 {
		return fmt.Errorf("SPOTIFY_RATE_LIMIT must be positive")
	}
	if c.Spotify.RecentlyLimit < 1 || c.Spotify.RecentlyLimit > 50 {
		return fmt.Errorf("SPOTIFY_RECENTLY_LIMIT must be between 1 and 50")
	}
	return nil
}

func (c *Config) validateSweep() error {
	if c.Sweep.Interval < time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL must be at least 1 minute")
	}
	if c.Sweep.Workers < 1 || c.Sweep.Workers > 64 {
		return fmt.Errorf("SWEEP_WORKERS must be between 1 and 64")
	}
	if c.Sweep.ConnectionTimeout <= 0 {
		return fmt.Errorf("SWEEP_CONNECTION_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateAnalytics() error {
	if c.Analytics.Timezone == "" {
		return fmt.Errorf("ANALYTICS_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("ANALYTICS_TIMEZONE is invalid: %w", err)
	}
	if c.Analytics.DedupTolerance <= 0 {
		return fmt.Errorf("ANALYTICS_DEDUP_TOLERANCE must be positive")
	}
	if c.Analytics.RetentionDays < 1 {
		return fmt.Errorf("ANALYTICS_RETENTION_DAYS must be at least 1")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.DefaultDays < 1 {
		return fmt.Errorf("API_DEFAULT_DAYS must be at least 1")
	}
	if c.API.MaxDays < c.API.DefaultDays {
		return fmt.Errorf("API_MAX_DAYS must be >= API_DEFAULT_DAYS")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// validateHTTPURL checks that the value parses as an absolute http(s) URL.
func validateHTTPURL(raw, name string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme", name)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", name)
	}
	return nil
}
