// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds the deploy-time application configuration: where data
// lives, how to reach Tournament Manager, and how the control API and
// logging behave. It is loaded once at startup (defaults, then an
// optional JSON file, then environment variables) and is immutable
// afterwards, so concurrent reads need no locking.
//
// Show-time settings (device endpoints, pause flags, rooms) live in the
// data directory instead; see ShowConfig.
type Config struct {
	DataDir string        `koanf:"data_dir"`
	TM      TMConfig      `koanf:"tm"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// TMConfig points Stagehand at the Tournament Manager API. ClientID,
// ClientSecret and APIKey are required; without them neither the event
// stream nor the schedule fetch can authenticate.
type TMConfig struct {
	BaseURL        string        `koanf:"base_url"`
	AuthURL        string        `koanf:"auth_url"`
	ClientID       string        `koanf:"client_id"`
	ClientSecret   string        `koanf:"client_secret"`
	APIKey         string        `koanf:"api_key"`
	FieldSetID     int           `koanf:"field_set_id"`
	FetchInterval  time.Duration `koanf:"fetch_interval"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// ServerConfig configures the control API listener.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// LoggingConfig selects log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the loaded configuration section by section and returns
// the first problem found.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if err := c.validateTM(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTM() error {
	if c.TM.ClientID == "" {
		return fmt.Errorf("tm.client_id is required (VEX_TM_CLIENT_ID)")
	}
	if c.TM.ClientSecret == "" {
		return fmt.Errorf("tm.client_secret is required (VEX_TM_CLIENT_SECRET)")
	}
	if c.TM.APIKey == "" {
		return fmt.Errorf("tm.api_key is required (VEX_TM_API_KEY)")
	}

	if c.TM.BaseURL == "" {
		return fmt.Errorf("tm.base_url is required")
	}
	u, err := url.Parse(c.TM.BaseURL)
	if err != nil {
		return fmt.Errorf("tm.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("tm.base_url must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("tm.base_url is missing a host")
	}

	if c.TM.AuthURL == "" {
		return fmt.Errorf("tm.auth_url is required")
	}
	if _, err := url.Parse(c.TM.AuthURL); err != nil {
		return fmt.Errorf("tm.auth_url is not a valid URL: %w", err)
	}

	if c.TM.FieldSetID < 1 {
		return fmt.Errorf("tm.field_set_id must be at least 1, got %d", c.TM.FieldSetID)
	}
	if c.TM.FetchInterval <= 0 {
		return fmt.Errorf("tm.fetch_interval must be positive, got %s", c.TM.FetchInterval)
	}
	if c.TM.RequestTimeout <= 0 {
		return fmt.Errorf("tm.request_timeout must be positive, got %s", c.TM.RequestTimeout)
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("logging.level %q is not one of trace, debug, info, warn, error, fatal", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format %q is not one of json, console", c.Logging.Format)
	}
	return nil
}
