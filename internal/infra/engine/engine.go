// Package engine defines the media engine contract and its audio backends.
package engine

import "fmt"

// Error codes reported through Listener.OnError.
// Values follow the platform media player conventions the catalog previews target.
const (
	CodeUnknown     = 1
	CodeServerDied  = 100
	CodeIO          = -1004
	CodeMalformed   = -1007
	CodeUnsupported = -1010
	CodeTimedOut    = -110
)

// CodeName returns a short name for an engine error code.
func CodeName(code int) string {
	switch code {
	case CodeUnknown:
		return "unknown"
	case CodeServerDied:
		return "server_died"
	case CodeIO:
		return "io"
	case CodeMalformed:
		return "malformed"
	case CodeUnsupported:
		return "unsupported"
	case CodeTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("code_%d", code)
	}
}

// Listener receives the asynchronous signals of one engine instance.
// Callbacks may run on any goroutine.
type Listener struct {
	OnPrepared   func()         // preparation finished; the instance is ready to Start
	OnError      func(code int) // preparation or playback failed
	OnCompletion func()         // playback reached the end of the track
}

// Engine is a single stateful playback instance.
//
// PrepareAsync must return without invoking any Listener callback. The
// synchronous methods are only meaningful after OnPrepared fired. Release
// may be called at any time, including while preparing; after Release no
// callback is delivered.
type Engine interface {
	PrepareAsync(source string, l Listener)
	Start()
	Pause()
	SeekTo(ms int64)
	CurrentPosition() int64
	Duration() int64
	Release() error
}

// Factory allocates a fresh engine instance.
type Factory func() Engine
