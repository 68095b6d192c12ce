package config

import (
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Load reads configuration from a YAML file (config.yaml in the working
// directory or /etc/image-intake/), layered under command-line flags, and
// starts watching the file for changes.  onReload, when non-nil, receives
// each successfully re-parsed Config.
func Load(onReload func(Config)) (Config, error) {
	pflag.String("tempDir", "", "Scratch directory for pending uploads")
	pflag.String("permanentDir", "", "Permanent storage root")
	pflag.String("codec", "", "Codec backend: std or vips")
	pflag.String("logLevel", "", "Log level: debug, info, warn, error")
	pflag.Parse()

	v := viper.New()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return Config{}, fmt.Errorf("failed to bind pflags: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/image-intake/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("fatal error config file: %w", err)
		}
		// No file: defaults plus flags.
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config cannot be decoded into struct: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	if onReload != nil {
		v.OnConfigChange(func(fsnotify.Event) {
			next := Default()
			if err := v.Unmarshal(&next); err != nil {
				return
			}
			if err := Validate(next); err != nil {
				return
			}
			onReload(next)
		})
		v.WatchConfig()
	}

	return cfg, nil
}
