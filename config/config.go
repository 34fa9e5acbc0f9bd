package config

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Audio output configuration
	Audio AudioConfig `mapstructure:"audio"`

	// Resolver service configuration
	Resolver ResolverConfig `mapstructure:"resolver"`

	// Authorization service configuration
	Auth AuthConfig `mapstructure:"auth"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// AudioConfig holds audio output configuration
type AudioConfig struct {
	SampleRate      int           `mapstructure:"sample_rate"`
	BufferDuration  time.Duration `mapstructure:"buffer"`
	ResampleQuality int           `mapstructure:"resample_quality"`
}

// ResolverConfig holds source-resolver service configuration
type ResolverConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AuthConfig holds authorization service configuration
type AuthConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	// Set defaults
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.buffer", "100ms")
	viper.SetDefault("audio.resample_quality", 4)
	viper.SetDefault("resolver.timeout", "15s")
	viper.SetDefault("auth.timeout", "15s")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Read config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.music-pitch-app")
	viper.AddConfigPath("/etc/music-pitch-app")

	// Allow environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("MPA")

	// Read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Audio.SampleRate <= 0 {
		return &ConfigError{Field: "audio.sample_rate", Message: "sample rate must be positive"}
	}
	if c.Audio.BufferDuration <= 0 {
		return &ConfigError{Field: "audio.buffer", Message: "buffer duration must be positive"}
	}
	if c.Audio.ResampleQuality < 1 || c.Audio.ResampleQuality > 64 {
		return &ConfigError{Field: "audio.resample_quality", Message: "resample quality must be between 1 and 64"}
	}
	if c.Resolver.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Resolver.BaseURL); err != nil {
			return &ConfigError{Field: "resolver.base_url", Message: "invalid URL"}
		}
	}
	if c.Auth.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.Auth.BaseURL); err != nil {
			return &ConfigError{Field: "auth.base_url", Message: "invalid URL"}
		}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
