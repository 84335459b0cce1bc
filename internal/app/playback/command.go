package playback

import (
	"fmt"

	"github.com/osa030/musy/internal/domain/track"
)

// CommandKind identifies a driver command.
type CommandKind int

const (
	CommandPlayAt CommandKind = iota
	CommandNext
	CommandPrev
	CommandShuffle
	CommandTogglePlayPause
	CommandPause
	CommandResume
	CommandSeek
	CommandRewind
	CommandStop
	CommandReplaceQueue
)

var commandNames = map[CommandKind]string{
	CommandPlayAt:          "play_at",
	CommandNext:            "next",
	CommandPrev:            "prev",
	CommandShuffle:         "shuffle",
	CommandTogglePlayPause: "toggle",
	CommandPause:           "pause",
	CommandResume:          "resume",
	CommandSeek:            "seek",
	CommandRewind:          "rewind",
	CommandStop:            "stop",
	CommandReplaceQueue:    "replace_queue",
}

// String returns the string representation of the command kind.
func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseCommandKind converts a command name to a CommandKind.
func ParseCommandKind(s string) (CommandKind, bool) {
	for k, name := range commandNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Command is a driver request applied on the session's serialized path.
type Command struct {
	Kind       CommandKind
	Index      int           // PlayAt
	PositionMs int64         // Seek
	Tracks     []track.Track // ReplaceQueue
}

func (c Command) String() string {
	switch c.Kind {
	case CommandPlayAt:
		return fmt.Sprintf("%s(%d)", c.Kind, c.Index)
	case CommandSeek:
		return fmt.Sprintf("%s(%dms)", c.Kind, c.PositionMs)
	case CommandReplaceQueue:
		return fmt.Sprintf("%s(%d tracks)", c.Kind, len(c.Tracks))
	default:
		return c.Kind.String()
	}
}
