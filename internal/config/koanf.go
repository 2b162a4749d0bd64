// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"stagehand.json",
	"/etc/stagehand/stagehand.json",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "STAGEHAND_CONFIG"

// defaultConfig returns a Config with every optional setting at its
// default. Credentials have no default and must come from the file or the
// environment.
func defaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		TM: TMConfig{
			BaseURL:        "http://localhost:8080",
			AuthURL:        "https://auth.vextm.dwabtech.com/oauth2/token",
			FieldSetID:     1,
			FetchInterval:  5 * time.Minute,
			RequestTimeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8090,
			Timeout:     30 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults: built-in values for everything optional
//  2. Config file: optional JSON file (if one is found)
//  3. Environment variables: override any setting
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), json.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
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

// findConfigFile returns the path of the first config file found, or an
// empty string when none exists.
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

// envTransformFunc maps environment variable names to koanf config paths.
// The VEX_TM_* names match what earlier deployments of this system used.
// Unmapped variables return an empty string and are skipped, so arbitrary
// environment variables cannot pollute the configuration.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"data_dir": "data_dir",

		// Tournament Manager mappings (legacy VEX_TM_* names)
		"vex_tm_base_url":      "tm.base_url",
		"vex_tm_client_id":     "tm.client_id",
		"vex_tm_client_secret": "tm.client_secret",
		"vex_tm_api_key":       "tm.api_key",
		"vex_tm_field_set_id":  "tm.field_set_id",

		// Tournament Manager mappings
		"tm_base_url":        "tm.base_url",
		"tm_auth_url":        "tm.auth_url",
		"tm_client_id":       "tm.client_id",
		"tm_client_secret":   "tm.client_secret",
		"tm_api_key":         "tm.api_key",
		"tm_field_set_id":    "tm.field_set_id",
		"tm_fetch_interval":  "tm.fetch_interval",
		"tm_request_timeout": "tm.request_timeout",

		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
