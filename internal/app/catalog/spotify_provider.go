package catalog

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musy/internal/domain/track"
	"github.com/osa030/musy/internal/infra/spotify"
)

type SpotifyProviderConfig struct {
	// PlaylistImport loads the whole playlist when the query is a playlist URL or URI.
	PlaylistImport *bool `yaml:"playlist_import" mapstructure:"playlist_import" default:"true"`
	// PlaylistLimit caps an imported playlist; 0 uses the search limit.
	PlaylistLimit int `yaml:"playlist_limit" mapstructure:"playlist_limit" default:"0" validate:"gte=0"`
}

// SpotifyProvider searches the Spotify catalog and imports playlists and single tracks by reference.
type SpotifyProvider struct {
	spotify SpotifyClient
	config  *SpotifyProviderConfig
}

// NewSpotifyProvider creates a new SpotifyProvider.
func NewSpotifyProvider(client SpotifyClient, settings map[string]any) (*SpotifyProvider, error) {
	if client == nil {
		return nil, errors.New("spotify client is required")
	}

	var config SpotifyProviderConfig
	if err := mapstructure.Decode(settings, &config); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&config); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	zlog.Debug().Msgf("spotify provider config: playlist_import=%t playlist_limit=%d",
		*config.PlaylistImport, config.PlaylistLimit)
	if err := validator.New().Struct(config); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	return &SpotifyProvider{spotify: client, config: &config}, nil
}

// Search resolves query as a playlist reference, a track reference, or free text.
func (p *SpotifyProvider) Search(ctx context.Context, query string, limit int) ([]track.Track, error) {
	query = strings.TrimSpace(query)

	if *p.config.PlaylistImport && spotify.IsPlaylistRef(query) {
		tracks, err := p.spotify.GetPlaylistTracks(ctx, query)
		if err != nil {
			return nil, errors.Wrap(err, "failed to import playlist")
		}
		n := p.config.PlaylistLimit
		if n == 0 {
			n = limit
		}
		if n > 0 && len(tracks) > n {
			tracks = tracks[:n]
		}
		return tracks, nil
	}

	if spotify.IsTrackRef(query) {
		t, err := p.spotify.GetTrack(ctx, query)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get track")
		}
		return []track.Track{t}, nil
	}

	return p.spotify.Search(ctx, query, limit)
}

// Name returns the provider name.
func (p *SpotifyProvider) Name() string {
	return spotify.SourceName
}
