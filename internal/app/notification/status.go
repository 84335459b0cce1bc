package notification

import (
	"sync"

	"github.com/osa030/musy/internal/app/playback"
	"github.com/osa030/musy/internal/infra/engine"
)

// Action is a control offered on the status surface.
type Action struct {
	Name    string               // Stable identifier: prev, rewind, play_pause, next
	Label   string               // Display label
	Command playback.CommandKind // Command issued when the action is invoked
}

// compactActions are the indices of the actions shown in the compact view.
var compactActions = []int{0, 2, 3}

// Status is the persistent playback status surface.
type Status struct {
	SessionID      string
	State          playback.State
	Index          int
	Title          string
	Artist         string
	AlbumArtRef    string
	PositionMs     int64
	DurationMs     int64
	Ongoing        bool // Surface cannot be dismissed while playing
	ErrorCode      int
	ErrorName      string
	QueueLength    int
	Actions        []Action
	CompactActions []int
}

func buildActions(state playback.State) []Action {
	playPause := Action{Name: "play_pause", Label: "Play", Command: playback.CommandTogglePlayPause}
	if state == playback.StatePlaying {
		playPause.Label = "Pause"
	}
	return []Action{
		{Name: "prev", Label: "Prev", Command: playback.CommandPrev},
		{Name: "rewind", Label: "Rewind", Command: playback.CommandRewind},
		playPause,
		{Name: "next", Label: "Next", Command: playback.CommandNext},
	}
}

// Surface folds playback events into a Status.
type Surface struct {
	mu     sync.Mutex
	status Status
}

// NewSurface creates an idle surface for the given session.
func NewSurface(sessionID string) *Surface {
	return &Surface{
		status: Status{
			SessionID: sessionID,
			State:     playback.StateIdle,
			Index:     -1,
		},
	}
}

// Apply updates the surface with ev and returns the new status.
// rebuilt is true when the visible surface changed (track, state, actions or error),
// and false for position and duration refreshes.
func (s *Surface) Apply(ev playback.Event) (status Status, rebuilt bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.status
	if st.State != ev.State {
		st.State = ev.State
		rebuilt = true
	}

	switch ev.Type {
	case playback.EventTrackChanged:
		st.Index = ev.Index
		st.PositionMs = 0
		st.DurationMs = 0
		st.ErrorCode = 0
		st.ErrorName = ""
		if ev.Track != nil {
			st.Title = ev.Track.Title
			st.Artist = ev.Track.ArtistName
			st.AlbumArtRef = ev.Track.AlbumArtRef
			st.DurationMs = ev.Track.DurationMs()
		}
		rebuilt = true

	case playback.EventDurationKnown:
		st.DurationMs = ev.DurationMs

	case playback.EventPositionUpdated:
		st.PositionMs = ev.PositionMs

	case playback.EventPlaybackError:
		st.ErrorCode = ev.Code
		st.ErrorName = engine.CodeName(ev.Code)
		rebuilt = true

	case playback.EventQueueReplaced:
		st.QueueLength = len(ev.Tracks)
		st.Index = -1
		st.Title = ""
		st.Artist = ""
		st.AlbumArtRef = ""
		st.PositionMs = 0
		st.DurationMs = 0
		rebuilt = true

	case playback.EventStateChanged:
		if ev.State == playback.StateIdle {
			st.PositionMs = 0
		}
	}

	st.Ongoing = st.State == playback.StatePlaying
	return s.snapshotLocked(), rebuilt
}

// Status returns the current status.
func (s *Surface) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Surface) snapshotLocked() Status {
	out := s.status
	out.Actions = buildActions(out.State)
	out.CompactActions = append([]int(nil), compactActions...)
	return out
}
