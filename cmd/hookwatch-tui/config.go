package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/hookwatch/internal/model"
)

// viewerConfig holds only viewer-relevant configuration.
type viewerConfig struct {
	EventsURL      string        `mapstructure:"events-url"`
	PollInterval   time.Duration `mapstructure:"poll-interval"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	LogPath        string        `mapstructure:"log-path"`
}

// loadViewerConfig reads the config file and environment. A non-empty
// urlOverride replaces events-url before validation.
func loadViewerConfig(configPath, urlOverride string) (viewerConfig, error) {
	var cfg viewerConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("HOOKWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("events-url", model.DefaultEventsURL)
	v.SetDefault("poll-interval", model.DefaultPollInterval)
	v.SetDefault("request-timeout", model.DefaultRequestTimeout)
	v.SetDefault("log-path", filepath.Join(home, ".local", "state", "hookwatch", "hookwatch-tui.log"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "hookwatch", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if urlOverride != "" {
		v.Set("events-url", urlOverride)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	u, err := url.Parse(cfg.EventsURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, fmt.Errorf("invalid events-url: %q", cfg.EventsURL)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("invalid poll-interval: %s", cfg.PollInterval)
	}
	if cfg.RequestTimeout <= 0 || cfg.RequestTimeout > cfg.PollInterval {
		cfg.RequestTimeout = cfg.PollInterval
	}
	if strings.HasPrefix(cfg.LogPath, "~/") {
		cfg.LogPath = filepath.Join(home, cfg.LogPath[2:])
	}

	return cfg, nil
}
