// Copyright (C) 2025 Brimu (dev@brimu.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads the telemetry service configuration.
//
// Configuration is YAML with defaults for every field, so an empty or
// missing file yields a runnable development setup. The thresholds
// section hot-reloads on file change; everything else requires a
// restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amadalihammoud/brimu-telemetry/services/telemetry/datatypes"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Store         StoreConfig         `yaml:"store"`
	Thresholds    map[string]datatypes.Threshold `yaml:"thresholds"`
	Notifications NotificationConfig  `yaml:"notifications"`
	Influx        InfluxConfig        `yaml:"influx"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Backup        BackupConfig        `yaml:"backup"`
	Security      SecurityConfig      `yaml:"security"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
}

// LoggingConfig controls the application logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// StoreConfig sizes the in-memory stores.
type StoreConfig struct {
	LogCapacity     int `yaml:"log_capacity"`
	MetricSeriesCap int `yaml:"metric_series_cap"`
	AnomalyHistory  int `yaml:"anomaly_history"`
}

// NotificationConfig wires delivery channels.
type NotificationConfig struct {
	StoreDir      string        `yaml:"store_dir"`
	SweepInterval time.Duration `yaml:"sweep_interval"`

	Email struct {
		Enabled   bool   `yaml:"enabled"`
		Host      string `yaml:"host"`
		Port      int    `yaml:"port"`
		Username  string `yaml:"username"`
		Password  string `yaml:"password"`
		From      string `yaml:"from"`
		DefaultTo string `yaml:"default_to"`
	} `yaml:"email"`

	Webhook struct {
		Enabled       bool   `yaml:"enabled"`
		URL           string `yaml:"url"`
		Secret        string `yaml:"secret"`
		RatePerMinute int    `yaml:"rate_per_minute"`
	} `yaml:"webhook"`
}

// InfluxConfig wires the optional metric sink.
type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

// TracingConfig wires OTLP trace export.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// BackupConfig locates the backup directories.
type BackupConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DataDir   string `yaml:"data_dir"`
	BackupDir string `yaml:"backup_dir"`
}

// SecurityConfig locates the threat profile store.
type SecurityConfig struct {
	ThreatFile string `yaml:"threat_file"`
}

// Default returns a runnable development configuration.
func Default() Config {
	cfg := Config{}
	cfg.Server.Addr = ":8090"
	cfg.Server.Mode = "release"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "./logs"
	cfg.Logging.JSON = true
	cfg.Store.LogCapacity = 10000
	cfg.Store.MetricSeriesCap = 1000
	cfg.Store.AnomalyHistory = 500
	cfg.Thresholds = map[string]datatypes.Threshold{
		"response_time": {Warning: 500, Critical: 2000},
		"memory_usage":  {Warning: 75, Critical: 90},
		"cpu_usage":     {Warning: 70, Critical: 90},
		"error_rate":    {Warning: 0.05, Critical: 0.15},
	}
	cfg.Notifications.StoreDir = "./data/notifications"
	cfg.Notifications.SweepInterval = time.Minute
	cfg.Notifications.Email.Port = 587
	cfg.Notifications.Webhook.RatePerMinute = 60
	cfg.Backup.Enabled = true
	cfg.Backup.DataDir = "./data"
	cfg.Backup.BackupDir = "./backups"
	cfg.Security.ThreatFile = "./data/threats.json"
	return cfg
}

// Load reads path over the defaults, then applies environment
// overrides. A missing file is not an error; the defaults are written
// there (best effort) so the operator has something to edit.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		cfg.applyEnv()
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			writeDefault(path, cfg)
			cfg.applyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// writeDefault materializes the defaults at path on first run.
func writeDefault(path string, cfg Config) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}

// applyEnv overrides select fields from the environment. Secrets are
// expected to arrive this way rather than sit in the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TELEMETRY_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TELEMETRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TELEMETRY_INFLUX_TOKEN"); v != "" {
		c.Influx.Token = v
	}
	if v := os.Getenv("TELEMETRY_SMTP_PASSWORD"); v != "" {
		c.Notifications.Email.Password = v
	}
	if v := os.Getenv("TELEMETRY_WEBHOOK_SECRET"); v != "" {
		c.Notifications.Webhook.Secret = v
	}
}

func (c *Config) validate() error {
	if c.Store.LogCapacity <= 0 {
		return fmt.Errorf("store.log_capacity must be positive")
	}
	if c.Store.MetricSeriesCap <= 0 {
		return fmt.Errorf("store.metric_series_cap must be positive")
	}
	for name, th := range c.Thresholds {
		if th.Critical < th.Warning {
			return fmt.Errorf("threshold %q: critical (%v) below warning (%v)", name, th.Critical, th.Warning)
		}
	}
	return nil
}
