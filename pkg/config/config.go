// Package config provides configuration management for the analyzer.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"

	"github.com/hprofstream/hprofstream/internal/hprof"
)

// Config holds all configuration for the application, combining the core
// analysis options with the ambient concerns around it.
type Config struct {
	Analysis hprof.Config   `mapstructure:",squash"`
	Storage  StorageConfig  `mapstructure:"storage"`
	History  HistoryConfig  `mapstructure:"history"`
	Log      LogConfig      `mapstructure:"log"`
}

// StorageConfig describes where input_path is resolved from when it names
// an object-storage location instead of a local file.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
}

// HistoryConfig configures the optional run-history store.
type HistoryConfig struct {
	DSN          string `mapstructure:"dsn"` // postgres://, mysql://, or a sqlite path (optionally sqlite://)
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path, falling back to
// documented defaults and standard search locations when none is given.
// Grounded on config.Load, generalized from the services-oriented
// Database/Scheduler/APM sections to this analyzer's Analysis/Storage/
// History/Log sections.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hprofstream")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hprofstream")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file; defaults and flags/env still apply.
		} else if os.IsNotExist(err) {
			// Explicit path that doesn't exist; same treatment.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("HPROFSTREAM")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes, useful for tests.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("top_n", 20)
	v.SetDefault("chunk_size", 256*1024)
	v.SetDefault("channel_depth", 4)

	v.SetDefault("storage.type", "local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
