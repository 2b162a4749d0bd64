// Stagehand - Show Control for Live Robotics Competitions
// Copyright 2026 Marion L. (marionlk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marionlk/stagehand

package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.TM.ClientID = "client"
	cfg.TM.ClientSecret = "secret"
	cfg.TM.APIKey = "key"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.DataDir != "./data" {
		t.Errorf("DataDir = %q, want ./data", cfg.DataDir)
	}
	if cfg.TM.FetchInterval != 5*time.Minute {
		t.Errorf("TM.FetchInterval = %s, want 5m", cfg.TM.FetchInterval)
	}
	if cfg.TM.RequestTimeout != 30*time.Second {
		t.Errorf("TM.RequestTimeout = %s, want 30s", cfg.TM.RequestTimeout)
	}
	if cfg.TM.FieldSetID != 1 {
		t.Errorf("TM.FieldSetID = %d, want 1", cfg.TM.FieldSetID)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing client id", func(c *Config) { c.TM.ClientID = "" }, "tm.client_id"},
		{"missing client secret", func(c *Config) { c.TM.ClientSecret = "" }, "tm.client_secret"},
		{"missing api key", func(c *Config) { c.TM.APIKey = "" }, "tm.api_key"},
		{"missing base url", func(c *Config) { c.TM.BaseURL = "" }, "tm.base_url"},
		{"bad base url scheme", func(c *Config) { c.TM.BaseURL = "ftp://tm.local" }, "http or https"},
		{"base url without host", func(c *Config) { c.TM.BaseURL = "http://" }, "missing a host"},
		{"missing auth url", func(c *Config) { c.TM.AuthURL = "" }, "tm.auth_url"},
		{"zero field set", func(c *Config) { c.TM.FieldSetID = 0 }, "field_set_id"},
		{"negative fetch interval", func(c *Config) { c.TM.FetchInterval = -time.Second }, "fetch_interval"},
		{"zero request timeout", func(c *Config) { c.TM.RequestTimeout = 0 }, "request_timeout"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "text" }, "logging.format"},
		{"empty data dir", func(c *Config) { c.DataDir = "" }, "data_dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
