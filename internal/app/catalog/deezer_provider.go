package catalog

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/osa030/musy/internal/domain/track"
	"github.com/osa030/musy/internal/infra/deezer"
)

type DeezerProviderConfig struct {
	APIKey     string `yaml:"api_key" mapstructure:"api_key" validate:"required"`
	Host       string `yaml:"host" mapstructure:"host"`
	TimeoutSec int    `yaml:"timeout_sec" mapstructure:"timeout_sec" default:"10" validate:"gte=1"`
}

// DeezerProvider searches the Deezer catalog. Results carry 30 second preview clips.
type DeezerProvider struct {
	client DeezerClient
}

// NewDeezerProvider creates a new DeezerProvider from provider settings.
func NewDeezerProvider(settings map[string]any) (*DeezerProvider, error) {
	var config DeezerProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	client, err := deezer.New(deezer.Config{
		APIKey:  config.APIKey,
		Host:    config.Host,
		Timeout: time.Duration(config.TimeoutSec) * time.Second,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create deezer client")
	}
	return &DeezerProvider{client: client}, nil
}

// Search searches Deezer for tracks.
func (p *DeezerProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	return p.client.Search(ctx, query, limit)
}

// Name returns the provider name.
func (p *DeezerProvider) Name() string {
	return deezer.SourceName
}
