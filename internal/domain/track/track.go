// Package track provides the Track domain entity.
package track

import "time"

// Track represents a playable catalog item.
// Tracks are created by a catalog provider and never mutated afterwards.
type Track struct {
	ID          string        // Catalog-unique ID
	Title       string        // Track title
	ArtistName  string        // Primary artist name
	AlbumArtRef string        // Album art locator (opaque)
	SourceURL   string        // Playable audio locator
	Duration    time.Duration // Track duration (zero if unknown)
	Source      string        // Catalog the track came from (e.g. "deezer")
}

// HasDuration reports whether the catalog supplied a duration.
func (t Track) HasDuration() bool {
	return t.Duration > 0
}

// DurationMs returns the duration in milliseconds, or 0 if unknown.
func (t Track) DurationMs() int64 {
	return t.Duration.Milliseconds()
}

// IsPlayable reports whether the track has a source that an engine can load.
func (t Track) IsPlayable() bool {
	return t.SourceURL != ""
}

// IDs returns the IDs of the given tracks in order.
func IDs(tracks []Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
