// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Control  ControlConfig           `yaml:"control"`
	Playback PlaybackConfig          `yaml:"playback"`
	Catalog  CatalogConfig           `yaml:"catalog"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
	Engine   EngineConfig            `yaml:"engine"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string      `yaml:"addr" default:":8080"`
	Hooks HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// ControlConfig represents access control for drivers.
type ControlConfig struct {
	Token string `yaml:"token" validate:"required"`
}

// PlaybackConfig represents playback session configuration.
type PlaybackConfig struct {
	PollIntervalMs     int   `yaml:"poll_interval_ms" default:"500" validate:"gte=50,lte=10000"`
	FallbackDurationMs int   `yaml:"fallback_duration_ms" default:"30000" validate:"gte=1000"`
	RewindMs           int   `yaml:"rewind_ms" default:"10000" validate:"gte=1000"`
	RecentLimit        int   `yaml:"recent_limit" default:"5" validate:"gte=1"`
	EventBuffer        int   `yaml:"event_buffer" default:"64" validate:"gte=1"`
	AutoPlay           *bool `yaml:"auto_play" default:"true"`
	PositionThrottleMs int   `yaml:"position_throttle_ms" default:"1000" validate:"gte=0"`
}

// CatalogConfig represents catalog search configuration.
type CatalogConfig struct {
	DefaultQuery string           `yaml:"default_query" default:"all"`
	ResultLimit  int              `yaml:"result_limit" default:"25" validate:"gte=1,lte=100"`
	Providers    []ProviderConfig `yaml:"providers" validate:"required,min=1,dive"`
}

// ProviderConfig represents a single catalog provider configuration.
type ProviderConfig struct {
	Type        string         `yaml:"type" validate:"required,oneof=deezer spotify"`
	DisplayName string         `yaml:"display_name" validate:"required"`
	Settings    map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// SpotifyConfig represents Spotify API configuration.
// Credentials are only required when a spotify provider is configured.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// EngineConfig represents the audio engine configuration.
type EngineConfig struct {
	SampleRate      int `yaml:"sample_rate" default:"44100" validate:"oneof=22050 44100 48000"`
	BufferMs        int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=1000"`
	FetchTimeoutSec int `yaml:"fetch_timeout_sec" default:"15" validate:"gte=1"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, applies environment overrides
// and defaults, and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("DEEZER_RAPIDAPI_KEY"); v != "" {
		for i := range c.Catalog.Providers {
			if c.Catalog.Providers[i].Type == "deezer" {
				if c.Catalog.Providers[i].Settings == nil {
					c.Catalog.Providers[i].Settings = make(map[string]any)
				}
				c.Catalog.Providers[i].Settings["api_key"] = v
			}
		}
	}
	if v := os.Getenv("CONTROL_TOKEN"); v != "" {
		c.Control.Token = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.UsesProvider("spotify") && (c.Spotify.ClientID == "" || c.Spotify.ClientSecret == "") {
		return errors.New("spotify provider requires spotify.client_id and spotify.client_secret")
	}

	return nil
}

// UsesProvider reports whether a provider of the given type is configured.
func (c *Config) UsesProvider(providerType string) bool {
	for _, p := range c.Catalog.Providers {
		if p.Type == providerType {
			return true
		}
	}
	return false
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// AutoPlayEnabled reports whether a replaced queue starts playing immediately.
func (p PlaybackConfig) AutoPlayEnabled() bool {
	return p.AutoPlay == nil || *p.AutoPlay
}

// PollInterval returns the position poll period.
func (p PlaybackConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMs) * time.Millisecond
}

// FallbackDuration returns the duration assumed for tracks of unknown length.
func (p PlaybackConfig) FallbackDuration() time.Duration {
	return time.Duration(p.FallbackDurationMs) * time.Millisecond
}

// RewindStep returns the rewind step.
func (p PlaybackConfig) RewindStep() time.Duration {
	return time.Duration(p.RewindMs) * time.Millisecond
}

// PositionThrottle returns the minimum interval between forwarded position updates.
func (p PlaybackConfig) PositionThrottle() time.Duration {
	return time.Duration(p.PositionThrottleMs) * time.Millisecond
}

// Buffer returns the speaker buffer length.
func (e EngineConfig) Buffer() time.Duration {
	return time.Duration(e.BufferMs) * time.Millisecond
}

// FetchTimeout returns the source download timeout.
func (e EngineConfig) FetchTimeout() time.Duration {
	return time.Duration(e.FetchTimeoutSec) * time.Second
}
