// Package connect provides the Connect RPC transport for driving the playback session.
//
// Messages are protobuf well-known types: commands take google.protobuf.Empty
// or a wrapper value, structured replies and notifications are google.protobuf.Struct.
package connect

import (
	"github.com/osa030/musy/internal/app/playback"
)

const (
	// PlaybackServiceName is the fully-qualified name of the PlaybackService service.
	PlaybackServiceName = "musy.v1.PlaybackService"
)

// Procedure paths of PlaybackService.
const (
	PlaybackServicePlayAtProcedure          = "/musy.v1.PlaybackService/PlayAt"
	PlaybackServiceNextProcedure            = "/musy.v1.PlaybackService/Next"
	PlaybackServicePrevProcedure            = "/musy.v1.PlaybackService/Prev"
	PlaybackServiceShuffleProcedure         = "/musy.v1.PlaybackService/Shuffle"
	PlaybackServiceTogglePlayPauseProcedure = "/musy.v1.PlaybackService/TogglePlayPause"
	PlaybackServicePauseProcedure           = "/musy.v1.PlaybackService/Pause"
	PlaybackServiceResumeProcedure          = "/musy.v1.PlaybackService/Resume"
	PlaybackServiceSeekProcedure            = "/musy.v1.PlaybackService/Seek"
	PlaybackServiceRewindProcedure          = "/musy.v1.PlaybackService/Rewind"
	PlaybackServiceStopProcedure            = "/musy.v1.PlaybackService/Stop"
	PlaybackServiceSearchProcedure          = "/musy.v1.PlaybackService/Search"
	PlaybackServiceInvokeProcedure          = "/musy.v1.PlaybackService/Invoke"
	PlaybackServiceGetStatusProcedure       = "/musy.v1.PlaybackService/GetStatus"
	PlaybackServiceSubscribeProcedure       = "/musy.v1.PlaybackService/Subscribe"
)

// simpleCommands are the commands that carry no argument, by procedure.
var simpleCommands = map[string]playback.CommandKind{
	PlaybackServiceNextProcedure:            playback.CommandNext,
	PlaybackServicePrevProcedure:            playback.CommandPrev,
	PlaybackServiceShuffleProcedure:         playback.CommandShuffle,
	PlaybackServiceTogglePlayPauseProcedure: playback.CommandTogglePlayPause,
	PlaybackServicePauseProcedure:           playback.CommandPause,
	PlaybackServiceResumeProcedure:          playback.CommandResume,
	PlaybackServiceRewindProcedure:          playback.CommandRewind,
	PlaybackServiceStopProcedure:            playback.CommandStop,
}
