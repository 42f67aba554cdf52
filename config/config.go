// Package config loads process settings from an optional file, EFD_
// environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"efd/wallet"
)

const EnvPrefix = "EFD"

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
	// File receives log output instead of stderr when set.
	File string `mapstructure:"file"`
}

type Config struct {
	BridgeURL      string        `mapstructure:"bridge_url"`
	FallbackRPCURL string        `mapstructure:"fallback_rpc_url"`
	Deployments    string        `mapstructure:"deployments"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	Log            LogConfig     `mapstructure:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		BridgeURL:      "ws://127.0.0.1:1248",
		FallbackRPCURL: "http://127.0.0.1:8545",
		DialTimeout:    10 * time.Second,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// New returns a viper instance seeded with the defaults and reading EFD_
// environment variables. Nested keys use underscores, so log.level is
// EFD_LOG_LEVEL.
func New() *viper.Viper {
	d := DefaultConfig()

	v := viper.New()
	v.SetDefault("bridge_url", d.BridgeURL)
	v.SetDefault("fallback_rpc_url", d.FallbackRPCURL)
	v.SetDefault("deployments", d.Deployments)
	v.SetDefault("dial_timeout", d.DialTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.file", d.Log.File)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the file at path into v when path is set, then decodes and
// validates the merged settings.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.FallbackRPCURL) == "" {
		return errors.New("fallback_rpc_url must be set")
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive, got %s", c.DialTimeout)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	return nil
}

// Wallet returns the connection settings for wallet.NewManager.
func (c *Config) Wallet() wallet.Config {
	return wallet.Config{
		BridgeURL:      c.BridgeURL,
		FallbackRPCURL: c.FallbackRPCURL,
		DialTimeout:    c.DialTimeout,
	}
}
