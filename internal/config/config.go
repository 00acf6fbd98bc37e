// Package config holds the typed application configuration, populated from
// viper (defaults, optional config file, environment variables).
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultServerAddress  = ":8080"
	DefaultSourceTimeout  = 10 * time.Second
	DefaultSearchLimit    = 20
	DefaultMaxSearchLimit = 100
	DefaultRegion         = "np"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config is the root application configuration.
type Config struct {
	App        AppConfig
	Server     ServerConfig
	Logger     LoggerConfig
	Aggregator AggregatorConfig
	Daraz      DarazConfig
	Jeevee     JeeveeConfig
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSEnabled  bool
	CORSOrigins  []string
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// AggregatorConfig holds fan-out settings.
type AggregatorConfig struct {
	// SourceTimeout bounds each adapter call; a source exceeding it is
	// marked failed for that call only.
	SourceTimeout time.Duration
	DefaultLimit  int
	MaxLimit      int
	DefaultRegion string
}

// DarazConfig holds the Daraz adapter settings.
type DarazConfig struct {
	// BaseURLs maps region codes to storefront base URLs. Filled with
	// the standard storefronts when empty.
	BaseURLs  map[string]string
	UserAgent string
	Timeout   time.Duration
}

// JeeveeConfig holds the Jeevee adapter settings.
type JeeveeConfig struct {
	APIURL     string
	WebsiteURL string
	UserAgent  string
	Timeout    time.Duration
}

// Load builds a Config from viper's current state and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:        viper.GetString("app.name"),
			Version:     viper.GetString("app.version"),
			Environment: viper.GetString("app.environment"),
			Debug:       viper.GetBool("app.debug"),
		},
		Server: ServerConfig{
			Address:      viper.GetString("server.address"),
			ReadTimeout:  viper.GetDuration("server.read_timeout"),
			WriteTimeout: viper.GetDuration("server.write_timeout"),
			IdleTimeout:  viper.GetDuration("server.idle_timeout"),
			CORSEnabled:  viper.GetBool("server.cors.enabled"),
			CORSOrigins:  viper.GetStringSlice("server.cors.origins"),
		},
		Logger: LoggerConfig{
			Level:    viper.GetString("logger.level"),
			Encoding: viper.GetString("logger.encoding"),
		},
		Aggregator: AggregatorConfig{
			SourceTimeout: viper.GetDuration("aggregator.source_timeout"),
			DefaultLimit:  viper.GetInt("aggregator.default_limit"),
			MaxLimit:      viper.GetInt("aggregator.max_limit"),
			DefaultRegion: viper.GetString("aggregator.default_region"),
		},
		Daraz: DarazConfig{
			BaseURLs:  viper.GetStringMapString("sources.daraz.base_urls"),
			UserAgent: viper.GetString("sources.daraz.user_agent"),
			Timeout:   viper.GetDuration("sources.daraz.timeout"),
		},
		Jeevee: JeeveeConfig{
			APIURL:     viper.GetString("sources.jeevee.api_url"),
			WebsiteURL: viper.GetString("sources.jeevee.website_url"),
			UserAgent:  viper.GetString("sources.jeevee.user_agent"),
			Timeout:    viper.GetDuration("sources.jeevee.timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "bazarkhoj"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "1.0.0"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "production"
	}
	if cfg.Server.Address == "" {
		cfg.Server.Address = DefaultServerAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Encoding == "" {
		cfg.Logger.Encoding = "json"
	}
	if cfg.Aggregator.SourceTimeout == 0 {
		cfg.Aggregator.SourceTimeout = DefaultSourceTimeout
	}
	if cfg.Aggregator.DefaultLimit == 0 {
		cfg.Aggregator.DefaultLimit = DefaultSearchLimit
	}
	if cfg.Aggregator.MaxLimit == 0 {
		cfg.Aggregator.MaxLimit = DefaultMaxSearchLimit
	}
	if cfg.Aggregator.DefaultRegion == "" {
		cfg.Aggregator.DefaultRegion = DefaultRegion
	}
	if len(cfg.Daraz.BaseURLs) == 0 {
		cfg.Daraz.BaseURLs = map[string]string{
			"np": "https://www.daraz.com.np",
			"pk": "https://www.daraz.pk",
			"bd": "https://www.daraz.com.bd",
			"lk": "https://www.daraz.lk",
		}
	}
	if cfg.Daraz.UserAgent == "" {
		cfg.Daraz.UserAgent = DefaultUserAgent
	}
	if cfg.Daraz.Timeout == 0 {
		cfg.Daraz.Timeout = 30 * time.Second
	}
	if cfg.Jeevee.APIURL == "" {
		cfg.Jeevee.APIURL = "https://api.jeevee.com"
	}
	if cfg.Jeevee.WebsiteURL == "" {
		cfg.Jeevee.WebsiteURL = "https://jeevee.com"
	}
	if cfg.Jeevee.UserAgent == "" {
		cfg.Jeevee.UserAgent = DefaultUserAgent
	}
	if cfg.Jeevee.Timeout == 0 {
		cfg.Jeevee.Timeout = 30 * time.Second
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("logger.level: invalid level %q", c.Logger.Level)
	}
	if c.Logger.Encoding != "json" && c.Logger.Encoding != "console" {
		return fmt.Errorf("logger.encoding: must be json or console, got %q", c.Logger.Encoding)
	}
	if c.Aggregator.SourceTimeout <= 0 {
		return fmt.Errorf("aggregator.source_timeout: must be positive")
	}
	if c.Aggregator.DefaultLimit < 1 {
		return fmt.Errorf("aggregator.default_limit: must be greater than 0")
	}
	if c.Aggregator.MaxLimit < c.Aggregator.DefaultLimit {
		return fmt.Errorf("aggregator.max_limit: must be at least default_limit (%d)",
			c.Aggregator.DefaultLimit)
	}
	if _, ok := c.Daraz.BaseURLs[c.Aggregator.DefaultRegion]; !ok {
		return fmt.Errorf("aggregator.default_region: no daraz base URL for region %q",
			c.Aggregator.DefaultRegion)
	}
	return nil
}
