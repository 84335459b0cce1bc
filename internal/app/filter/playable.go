package filter

import (
	"context"

	"github.com/osa030/musy/internal/domain/track"
)

// PlayableFilter rejects tracks that carry no audio source.
// It is always the first filter of a chain built from configuration.
type PlayableFilter struct{}

// NewPlayableFilter creates a new playable filter.
func NewPlayableFilter() *PlayableFilter {
	return &PlayableFilter{}
}

func (f *PlayableFilter) Name() string {
	return "playable_filter"
}

func (f *PlayableFilter) Description() string {
	return "Rejects tracks without a playable source URL"
}

func (f *PlayableFilter) ReturnCodes() []string {
	return []string{"not_playable"}
}

func (f *PlayableFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PlayableFilter) Check(ctx context.Context, t track.Track, accepted []track.Track) Result {
	if !t.IsPlayable() {
		return Reject("not_playable")
	}
	return Accept()
}
