// Package config loads server configuration from an optional keydeck.yaml
// plus KEYDECK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the runtime settings of keydeck-server.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Seed    SeedConfig    `mapstructure:"seed"`
	Usage   UsageConfig   `mapstructure:"usage"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type StorageConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory
	// backend, which loses state on restart.
	Path string `mapstructure:"path"`
}

type SeedConfig struct {
	Path string `mapstructure:"path"`
}

type UsageConfig struct {
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration. file may be empty, in which case keydeck.yaml
// is looked up in the working directory; a missing config file is fine,
// defaults and environment variables apply.
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("storage.path", "keydeck.db")
	v.SetDefault("seed.path", "data/seed.json")
	v.SetDefault("usage.dir", "data/usage")
	v.SetDefault("log.level", "info")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("keydeck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("KEYDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
