package config

// Package config provides a reusable loader for the resolver engine's
// configuration files and environment variables. It is versioned so
// that applications can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a resolver engine
// process. It mirrors the structure of the YAML files Load reads
// (default.yaml and an optional <env>.yaml, searched for in
// cmd/resolverd/config and config); the repository ships no such file.
type Config struct {
	Engine struct {
		FlushMaxBytes      int  `mapstructure:"flush_max_bytes" json:"flush_max_bytes"`
		FlushChunkEntries  int  `mapstructure:"flush_chunk_entries" json:"flush_chunk_entries"`
		FailFastOnSticky   bool `mapstructure:"fail_fast_on_sticky" json:"fail_fast_on_sticky"`
		MissingCacheSize   int  `mapstructure:"missing_cache_size" json:"missing_cache_size"`
	} `mapstructure:"engine" json:"engine"`

	Telemetry struct {
		WindowSeconds int `mapstructure:"window_seconds" json:"window_seconds"`
	} `mapstructure:"telemetry" json:"telemetry"`

	Admin struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
		Enabled    bool   `mapstructure:"enabled" json:"enabled"`
	} `mapstructure:"admin" json:"admin"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/resolverd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge %s config: %w", env, err)
		}
	}

	viper.AutomaticEnv() // environment variables matching config keys override file values

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RESOLVER_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	env := os.Getenv("RESOLVER_ENV")
	return Load(env)
}

// Defaults returns a Config populated with sane defaults for use when no
// configuration file is present, e.g. in tests or a quick local run.
func Defaults() Config {
	var c Config
	c.Engine.FlushMaxBytes = 1 << 20
	c.Engine.FlushChunkEntries = 1000
	c.Engine.FailFastOnSticky = false
	c.Engine.MissingCacheSize = 4096
	c.Telemetry.WindowSeconds = 60
	c.Admin.ListenAddr = ":9091"
	c.Admin.Enabled = true
	c.Logging.Level = "info"
	return c
}
