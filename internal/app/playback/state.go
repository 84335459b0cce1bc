// Package playback provides the engine adapter and the serialized playback session.
package playback

// State represents the playback state.
type State int

const (
	StateIdle    State = iota // Nothing loaded (initial, stopped or torn down)
	StateLoading              // A load is in flight
	StatePlaying              // Track is playing
	StatePaused               // Track is paused
	StateError                // Last load or playback failed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseState converts a string produced by State.String back to a State.
func ParseState(s string) (State, bool) {
	for st := StateIdle; st <= StateError; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return StateIdle, false
}
