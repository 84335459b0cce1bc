// Package catalog provides track search over the configured catalog providers.
package catalog

import (
	"context"

	"github.com/osa030/musy/internal/domain/track"
)

// Provider is the interface for catalog providers.
// Different implementations search different catalogs (e.g. Deezer, Spotify).
type Provider interface {
	// Search returns at most limit tracks matching query, in catalog order.
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)

	// Name returns the provider name (used in config).
	Name() string
}

// SpotifyClient defines the interface for Spotify operations needed by the spotify provider.
type SpotifyClient interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
	GetTrack(ctx context.Context, trackRef string) (track.Track, error)
	GetPlaylistTracks(ctx context.Context, playlistRef string) ([]track.Track, error)
}

// DeezerClient defines the interface for Deezer operations needed by the deezer provider.
type DeezerClient interface {
	Search(ctx context.Context, query string, limit int) ([]track.Track, error)
}
