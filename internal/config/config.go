// Package config is a reusable loader for the station's configuration files
// and environment variables, grounded on the teacher's pkg/config/config.go
// (Load(env string) merging a default YAML file with an environment
// overlay via viper).
package config

import (
	"fmt"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the unified configuration for a station process.
type Config struct {
	Station struct {
		ID               string `mapstructure:"id" json:"id"`
		DisplayName      string `mapstructure:"display_name" json:"display_name"`
		DataDir          string `mapstructure:"data_dir" json:"data_dir"`
		UpgraderPrincipal string `mapstructure:"upgrader_principal" json:"upgrader_principal"`
	} `mapstructure:"station" json:"station"`

	Requests struct {
		DefaultExpirationHours int `mapstructure:"default_expiration_hours" json:"default_expiration_hours"`
		SweepIntervalSeconds   int `mapstructure:"sweep_interval_seconds" json:"sweep_interval_seconds"`
	} `mapstructure:"requests" json:"requests"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`

	Upgrader struct {
		CommitteeMembers   []string `mapstructure:"committee_members" json:"committee_members"`
		Quorum             int      `mapstructure:"quorum" json:"quorum"`
		ExpiryMinutes      int      `mapstructure:"expiry_minutes" json:"expiry_minutes"`
		SweepIntervalSeconds int    `mapstructure:"sweep_interval_seconds" json:"sweep_interval_seconds"`
	} `mapstructure:"upgrader" json:"upgrader"`
}

// Defaults applied before any file/env overlay.
func defaults() Config {
	var c Config
	c.Station.DataDir = "./data"
	c.Station.DisplayName = "orbit-station"
	c.Requests.DefaultExpirationHours = 168
	c.Requests.SweepIntervalSeconds = 60
	c.Logging.Level = "info"
	c.Upgrader.Quorum = 1
	c.Upgrader.ExpiryMinutes = 30
	c.Upgrader.SweepIntervalSeconds = 60
	return c
}

// Load reads configuration from configPath (a YAML file) merged with any
// STATION_-prefixed environment variables, falling back to built-in
// defaults when no file is present. env selects an optional overlay file
// (e.g. "production") loaded from the same directory as configPath.
func Load(configPath, env string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of a .env file is not an error

	v := viper.New()
	v.SetEnvPrefix("STATION")
	v.AutomaticEnv()

	def := defaults()
	v.SetDefault("station.data_dir", def.Station.DataDir)
	v.SetDefault("station.display_name", def.Station.DisplayName)
	v.SetDefault("requests.default_expiration_hours", def.Requests.DefaultExpirationHours)
	v.SetDefault("requests.sweep_interval_seconds", def.Requests.SweepIntervalSeconds)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("upgrader.quorum", def.Upgrader.Quorum)
	v.SetDefault("upgrader.expiry_minutes", def.Upgrader.ExpiryMinutes)
	v.SetDefault("upgrader.sweep_interval_seconds", def.Upgrader.SweepIntervalSeconds)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
		if env != "" {
			v.AddConfigPath(filepath.Dir(configPath))
			v.SetConfigName(env)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("config: merge %s overlay: %w", env, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
