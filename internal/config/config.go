// Package config loads runtime defaults from an optional config file and the
// environment. Command line flags are layered on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"emupace/internal/governor"
	"emupace/internal/rate"
)

const (
	EnvPrefix = "EMUPACE"

	defaultScale      = 2
	defaultMeterEvery = 600
	defaultLogFormat  = "text"
	defaultLogLevel   = "info"
)

type Config struct {
	Refresh    rate.Rate `mapstructure:"refresh"`
	Poll       rate.Rate `mapstructure:"poll"`
	Headless   bool      `mapstructure:"headless"`
	Scale      int       `mapstructure:"scale"`
	SaveDir    string    `mapstructure:"save-dir"`
	MeterEvery uint64    `mapstructure:"meter-every"`
	LogFormat  string    `mapstructure:"log-format"`
	LogLevel   string    `mapstructure:"log-level"`
	ConfigPath string    `mapstructure:"-"`
}

// Governor returns the pacing part of the config
func (c Config) Governor() governor.Config {
	return governor.Config{Refresh: c.Refresh, Poll: c.Poll}
}

func (c Config) Validate() error {
	if err := c.Governor().Validate(); err != nil {
		return err
	}

	if c.Scale < 1 {
		return fmt.Errorf("scale must be positive")
	}

	return nil
}

// DefaultPath is ~/.config/emupace/config.yml, empty if home is unknown
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "emupace", "config.yml")
}

// Load reads config file at path (or DefaultPath when empty) and EMUPACE_* environment
// variables over built-in defaults. A missing default config file is not an error,
// a missing explicitly requested one is.
func Load(path string) (Config, error) {
	var cfg Config

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("refresh", float64(governor.DefaultRefresh))
	v.SetDefault("poll", float64(governor.DefaultPoll))
	v.SetDefault("headless", false)
	v.SetDefault("scale", defaultScale)
	v.SetDefault("save-dir", "")
	v.SetDefault("meter-every", defaultMeterEvery)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("log-level", defaultLogLevel)

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	used := ""
	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			var notFound viper.ConfigFileNotFoundError
			if explicit || (!errors.As(err, &notFound) && !os.IsNotExist(err)) {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else {
			used = v.ConfigFileUsed()
		}
	}

	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}

	cfg.ConfigPath = used
	return cfg, nil
}
