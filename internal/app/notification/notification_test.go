package notification

import (
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musy/internal/app/playback"
	"github.com/osa030/musy/internal/domain/track"
	"github.com/osa030/musy/internal/infra/engine"
)

type recordingStream struct {
	mu    sync.Mutex
	got   []*Notification
	err   error
	block chan struct{}
}

func (r *recordingStream) Send(n *Notification) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return r.err
}

func (r *recordingStream) sequenceNos() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	seqs := make([]uint64, len(r.got))
	for i, n := range r.got {
		seqs[i] = n.SequenceNo
	}
	return seqs
}

func actionNames(actions []Action) []string {
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = a.Name
	}
	return names
}

func TestSurface_Apply(t *testing.T) {
	s := NewSurface("session-1")
	initial := s.Status()
	assert.Equal(t, playback.StateIdle, initial.State)
	assert.Equal(t, -1, initial.Index)
	assert.False(t, initial.Ongoing)

	trk := &track.Track{ID: "a", Title: "Harder, Better", ArtistName: "Daft Punk", AlbumArtRef: "https://cdn.example.com/a.jpg"}

	st, rebuilt := s.Apply(playback.Event{Type: playback.EventTrackChanged, State: playback.StateLoading, Track: trk, Index: 2})
	assert.True(t, rebuilt)
	assert.Equal(t, "Harder, Better", st.Title)
	assert.Equal(t, "Daft Punk", st.Artist)
	assert.Equal(t, "https://cdn.example.com/a.jpg", st.AlbumArtRef)
	assert.Equal(t, 2, st.Index)
	assert.False(t, st.Ongoing)

	st, rebuilt = s.Apply(playback.Event{Type: playback.EventDurationKnown, State: playback.StateLoading, DurationMs: 30000})
	assert.False(t, rebuilt)
	assert.Equal(t, int64(30000), st.DurationMs)

	st, rebuilt = s.Apply(playback.Event{Type: playback.EventStateChanged, State: playback.StatePlaying})
	assert.True(t, rebuilt)
	assert.True(t, st.Ongoing)
	assert.Equal(t, "Pause", st.Actions[2].Label)

	st, rebuilt = s.Apply(playback.Event{Type: playback.EventPositionUpdated, State: playback.StatePlaying, PositionMs: 1500})
	assert.False(t, rebuilt)
	assert.Equal(t, int64(1500), st.PositionMs)

	st, rebuilt = s.Apply(playback.Event{Type: playback.EventStateChanged, State: playback.StatePaused})
	assert.True(t, rebuilt)
	assert.False(t, st.Ongoing)
	assert.Equal(t, "Play", st.Actions[2].Label)
	assert.Equal(t, int64(1500), st.PositionMs)
}

func TestSurface_Actions(t *testing.T) {
	st := NewSurface("session-1").Status()

	assert.Equal(t, []string{"prev", "rewind", "play_pause", "next"}, actionNames(st.Actions))
	assert.Equal(t, []playback.CommandKind{
		playback.CommandPrev, playback.CommandRewind, playback.CommandTogglePlayPause, playback.CommandNext,
	}, []playback.CommandKind{st.Actions[0].Command, st.Actions[1].Command, st.Actions[2].Command, st.Actions[3].Command})

	compact := make([]string, 0, len(st.CompactActions))
	for _, i := range st.CompactActions {
		compact = append(compact, st.Actions[i].Name)
	}
	assert.Equal(t, []string{"prev", "play_pause", "next"}, compact)
}

func TestSurface_ErrorAndQueueReplaced(t *testing.T) {
	s := NewSurface("session-1")
	s.Apply(playback.Event{Type: playback.EventTrackChanged, State: playback.StateLoading, Track: &track.Track{ID: "a", Title: "A"}, Index: 0})

	st, rebuilt := s.Apply(playback.Event{Type: playback.EventPlaybackError, State: playback.StateError, Code: engine.CodeIO})
	assert.True(t, rebuilt)
	assert.Equal(t, playback.StateError, st.State)
	assert.Equal(t, engine.CodeIO, st.ErrorCode)
	assert.Equal(t, engine.CodeName(engine.CodeIO), st.ErrorName)

	// Loading another track clears the error.
	st, _ = s.Apply(playback.Event{Type: playback.EventTrackChanged, State: playback.StateLoading, Track: &track.Track{ID: "b", Title: "B"}, Index: 1})
	assert.Zero(t, st.ErrorCode)

	st, rebuilt = s.Apply(playback.Event{Type: playback.EventQueueReplaced, State: playback.StateIdle, Tracks: make([]track.Track, 3)})
	assert.True(t, rebuilt)
	assert.Equal(t, 3, st.QueueLength)
	assert.Empty(t, st.Title)
	assert.Equal(t, -1, st.Index)
}

func TestManager_Broadcast(t *testing.T) {
	m := NewManager()
	a := &recordingStream{}
	b := &recordingStream{err: errors.New("stream closed")}

	idA := m.Subscribe(a)
	m.Subscribe(b)
	assert.Equal(t, 2, m.SubscriberCount())

	m.Broadcast(&Notification{Event: playback.Event{Type: playback.EventStateChanged}})
	m.Broadcast(&Notification{Event: playback.Event{Type: playback.EventStateChanged}})

	assert.Equal(t, []uint64{1, 2}, a.sequenceNos())
	assert.Equal(t, []uint64{1, 2}, b.sequenceNos())

	m.Unsubscribe(idA)
	m.Broadcast(&Notification{})
	assert.Equal(t, []uint64{1, 2}, a.sequenceNos())
	assert.Equal(t, []uint64{1, 2, 3}, b.sequenceNos())

	require.NoError(t, m.Send("missing", &Notification{}))

	m.Close()
	assert.Equal(t, 0, m.SubscriberCount())
}

func TestManager_BroadcastSlowSubscriber(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond

	slow := &recordingStream{block: make(chan struct{})}
	defer close(slow.block)
	fast := &recordingStream{}
	m.Subscribe(slow)
	m.Subscribe(fast)

	done := make(chan struct{})
	go func() {
		m.Broadcast(&Notification{})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	assert.Equal(t, []uint64{1}, fast.sequenceNos())
}
