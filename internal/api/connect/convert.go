package connect

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/osa030/musy/internal/app/host"
	"github.com/osa030/musy/internal/app/notification"
	"github.com/osa030/musy/internal/app/playback"
	"github.com/osa030/musy/internal/domain/track"
	"github.com/osa030/musy/internal/infra/engine"
)

func trackFields(t track.Track) map[string]any {
	return map[string]any{
		"id":            t.ID,
		"title":         t.Title,
		"artist":        t.ArtistName,
		"album_art_ref": t.AlbumArtRef,
		"source_url":    t.SourceURL,
		"duration_ms":   t.DurationMs(),
		"source":        t.Source,
	}
}

func trackList(tracks []track.Track) []any {
	list := make([]any, len(tracks))
	for i, t := range tracks {
		list[i] = trackFields(t)
	}
	return list
}

func statusFields(st notification.Status) map[string]any {
	actions := make([]any, len(st.Actions))
	for i, a := range st.Actions {
		actions[i] = map[string]any{
			"name":    a.Name,
			"label":   a.Label,
			"command": a.Command.String(),
		}
	}
	compact := make([]any, len(st.CompactActions))
	for i, idx := range st.CompactActions {
		compact[i] = idx
	}

	return map[string]any{
		"session_id":      st.SessionID,
		"state":           st.State.String(),
		"index":           st.Index,
		"title":           st.Title,
		"artist":          st.Artist,
		"album_art_ref":   st.AlbumArtRef,
		"position_ms":     st.PositionMs,
		"duration_ms":     st.DurationMs,
		"ongoing":         st.Ongoing,
		"error_code":      st.ErrorCode,
		"error_name":      st.ErrorName,
		"queue_length":    st.QueueLength,
		"actions":         actions,
		"compact_actions": compact,
	}
}

func eventFields(ev playback.Event) map[string]any {
	fields := map[string]any{
		"type":  ev.Type.String(),
		"state": ev.State.String(),
	}
	switch ev.Type {
	case playback.EventTrackChanged:
		fields["index"] = ev.Index
		if ev.Track != nil {
			fields["track"] = trackFields(*ev.Track)
		}
	case playback.EventPositionUpdated:
		fields["position_ms"] = ev.PositionMs
		fields["seeked"] = ev.Seeked
	case playback.EventDurationKnown:
		fields["duration_ms"] = ev.DurationMs
	case playback.EventPlaybackError:
		fields["code"] = ev.Code
		fields["code_name"] = engine.CodeName(ev.Code)
	case playback.EventQueueReplaced:
		fields["tracks"] = trackList(ev.Tracks)
	}
	return fields
}

func toStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode message")
	}
	return s, nil
}

// notificationStruct encodes a broadcast notification.
func notificationStruct(n *notification.Notification) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"kind":        "event",
		"sequence_no": int64(n.SequenceNo),
		"rebuilt":     n.Rebuilt,
		"event":       eventFields(n.Event),
		"status":      statusFields(n.Status),
	})
}

// initialStateStruct encodes the status sent first on a new subscription.
func initialStateStruct(st notification.Status) (*structpb.Struct, error) {
	return toStruct(map[string]any{
		"kind":   "initial_state",
		"status": statusFields(st),
	})
}

// snapshotStruct encodes a session snapshot together with the status surface.
func snapshotStruct(snap playback.Snapshot, st notification.Status) (*structpb.Struct, error) {
	recent := make([]any, len(snap.Recent))
	for i, idx := range snap.Recent {
		recent[i] = idx
	}
	fields := map[string]any{
		"session_id":  snap.ID,
		"state":       snap.State.String(),
		"index":       snap.Index,
		"position_ms": snap.PositionMs,
		"duration_ms": snap.DurationMs,
		"polling":     snap.Polling,
		"queue":       trackList(snap.Queue),
		"recent":      recent,
		"status":      statusFields(st),
	}
	if snap.Track != nil {
		fields["track"] = trackFields(*snap.Track)
	}
	return toStruct(fields)
}

func searchStruct(r *host.SearchResult) (*structpb.Struct, error) {
	rejected := make(map[string]any, len(r.Rejected))
	for code, n := range r.Rejected {
		rejected[code] = n
	}
	return toStruct(map[string]any{
		"query":    r.Query,
		"provider": r.Provider,
		"tracks":   trackList(r.Tracks),
		"rejected": rejected,
	})
}
