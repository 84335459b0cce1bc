package playback

import "github.com/osa030/musy/internal/domain/track"

// EventType represents a playback event type.
type EventType int

const (
	EventStateChanged    EventType = iota // Playback state changed
	EventPositionUpdated                  // Periodic or optimistic position observation
	EventDurationKnown                    // Duration of the loaded track became known
	EventTrackChanged                     // A load was issued for a track
	EventPlaybackError                    // The engine reported an error
	EventQueueReplaced                    // The queue sequence was replaced
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventPositionUpdated:
		return "position_updated"
	case EventDurationKnown:
		return "duration_known"
	case EventTrackChanged:
		return "track_changed"
	case EventPlaybackError:
		return "playback_error"
	case EventQueueReplaced:
		return "queue_replaced"
	default:
		return "unknown"
	}
}

// ParseEventType converts a string produced by EventType.String back to an EventType.
func ParseEventType(s string) (EventType, bool) {
	for et := EventStateChanged; et <= EventQueueReplaced; et++ {
		if et.String() == s {
			return et, true
		}
	}
	return EventStateChanged, false
}

// Event represents a playback event.
// Only the fields relevant to Type are set.
type Event struct {
	Type       EventType
	State      State         // State at emission time
	Track      *track.Track  // TrackChanged
	Index      int           // TrackChanged
	PositionMs int64         // PositionUpdated
	Seeked     bool          // PositionUpdated caused by Seek or Rewind
	DurationMs int64         // DurationKnown
	Code       int           // PlaybackError
	Tracks     []track.Track // QueueReplaced
}

// droppable reports whether the event may be dropped for a slow subscriber.
// Only poll observations qualify.
func (e Event) droppable() bool {
	return e.Type == EventPositionUpdated && !e.Seeked
}
