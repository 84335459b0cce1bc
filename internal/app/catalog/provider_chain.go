package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musy/internal/domain/track"
)

// ErrNoResults is returned when no provider returned any track.
var ErrNoResults = errors.New("no provider returned results")

// ProviderWithMetadata wraps a provider with its metadata.
type ProviderWithMetadata struct {
	Provider    Provider
	DisplayName string
}

// Result is a search result with its source provider info.
type Result struct {
	Tracks      []track.Track
	DisplayName string
}

// ProviderChain tries providers in order until one returns tracks.
type ProviderChain struct {
	providers []ProviderWithMetadata
}

// NewProviderChain creates a new provider chain.
func NewProviderChain(providers []ProviderWithMetadata) *ProviderChain {
	return &ProviderChain{
		providers: providers,
	}
}

// Search returns the tracks of the first provider that succeeds with a non-empty result.
// A failing or empty provider falls through to the next one.
func (c *ProviderChain) Search(ctx context.Context, query string, limit int) (Result, error) {
	var lastErr error
	for i, pm := range c.providers {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.Wrap(err, "search cancelled")
		}

		zlog.Debug().Msgf("trying provider: index=%d total=%d name=%s provider_type=%s",
			i+1, len(c.providers), pm.DisplayName, pm.Provider.Name())

		tracks, err := pm.Provider.Search(ctx, query, limit)
		if err != nil {
			zlog.Warn().Msgf("provider failed, trying next: provider=%s error=%v", pm.DisplayName, err)
			lastErr = err
			continue
		}

		if len(tracks) == 0 {
			zlog.Debug().Msgf("provider returned no tracks: provider=%s", pm.DisplayName)
			continue
		}

		zlog.Info().Msgf("provider returned tracks: provider=%s query=%q count=%d",
			pm.DisplayName, query, len(tracks))
		return Result{Tracks: tracks, DisplayName: pm.DisplayName}, nil
	}

	if lastErr != nil {
		return Result{}, errors.Wrap(errors.Mark(lastErr, ErrNoResults), "all providers failed")
	}
	return Result{}, ErrNoResults
}

// Len returns the number of providers.
func (c *ProviderChain) Len() int {
	return len(c.providers)
}

// Name returns the chain name.
func (c *ProviderChain) Name() string {
	return "provider_chain"
}
