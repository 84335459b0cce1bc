package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musy/internal/app/catalog"
	"github.com/osa030/musy/internal/app/filter"
	"github.com/osa030/musy/internal/app/notification"
	"github.com/osa030/musy/internal/app/playback"
	"github.com/osa030/musy/internal/domain/track"
	"github.com/osa030/musy/internal/infra/engine"
)

// instantEngine prepares immediately and never completes on its own.
type instantEngine struct {
	mu       sync.Mutex
	position int64
}

func (e *instantEngine) PrepareAsync(source string, l engine.Listener) {
	go l.OnPrepared()
}
func (e *instantEngine) Start() {}
func (e *instantEngine) Pause() {}
func (e *instantEngine) SeekTo(ms int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = ms
}
func (e *instantEngine) CurrentPosition() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}
func (e *instantEngine) Duration() int64 { return 30000 }
func (e *instantEngine) Release() error  { return nil }

type fakeCatalog struct {
	mu      sync.Mutex
	results map[string][]track.Track
	err     error
	queries []string
}

func (c *fakeCatalog) Search(ctx context.Context, query string, limit int) (catalog.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, query)
	if c.err != nil {
		return catalog.Result{}, c.err
	}
	return catalog.Result{Tracks: c.results[query], DisplayName: "Fake"}, nil
}

type recordingStream struct {
	mu  sync.Mutex
	got []*notification.Notification
}

func (r *recordingStream) Send(n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingStream) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var titles []string
	for _, n := range r.got {
		if n.Event.Type == playback.EventTrackChanged {
			titles = append(titles, n.Status.Title)
		}
	}
	return titles
}

func (r *recordingStream) positionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.got {
		if n.Event.Type == playback.EventPositionUpdated {
			count++
		}
	}
	return count
}

func tracks(ids ...string) []track.Track {
	out := make([]track.Track, len(ids))
	for i, id := range ids {
		out[i] = track.Track{ID: id, Title: "Title " + id, ArtistName: "Artist", SourceURL: "https://cdn.example.com/" + id + ".mp3"}
	}
	return out
}

func newTestHost(t *testing.T, cat Catalog, cfg Config) *Host {
	t.Helper()
	session := playback.NewSession(func() engine.Engine { return &instantEngine{} }, playback.Config{
		PollInterval: 10 * time.Millisecond,
		AutoPlay:     true,
	})
	chain := filter.NewChain()
	chain.Add(filter.NewPlayableFilter())

	h, err := New(session, cat, chain, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func waitState(t *testing.T, h *Host, want playback.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.Status().State == want
	}, time.Second, 5*time.Millisecond, "state %s not reached", want)
}

func TestHost_StartRunsInitialSearch(t *testing.T) {
	unplayable := track.Track{ID: "x", Title: "No preview"}
	cat := &fakeCatalog{results: map[string][]track.Track{
		"all": append([]track.Track{unplayable}, tracks("a", "b")...),
	}}
	h := newTestHost(t, cat, Config{DefaultQuery: "all", ResultLimit: 25})

	stream := &recordingStream{}
	h.Notifications().Subscribe(stream)

	require.NoError(t, h.Start(context.Background()))
	waitState(t, h, playback.StatePlaying)

	snap, err := h.Session().Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, track.IDs(snap.Queue))
	assert.Equal(t, 0, snap.Index)

	last := h.LastSearch()
	require.NotNil(t, last)
	assert.Equal(t, "Fake", last.Provider)
	assert.Equal(t, map[string]int{"not_playable": 1}, last.Rejected)

	status := h.Status()
	assert.Equal(t, "Title a", status.Title)
	assert.True(t, status.Ongoing)
	assert.Equal(t, int64(30000), status.DurationMs)

	require.Eventually(t, func() bool {
		return len(stream.titles()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Title a"}, stream.titles())
}

func TestHost_StartWithoutDefaultQuery(t *testing.T) {
	cat := &fakeCatalog{}
	h := newTestHost(t, cat, Config{})

	require.NoError(t, h.Start(context.Background()))
	assert.Empty(t, cat.queries)
	assert.Equal(t, playback.StateIdle, h.Status().State)
}

func TestHost_InitialSearchFailureIsNotFatal(t *testing.T) {
	cat := &fakeCatalog{err: errors.New("quota exceeded")}
	h := newTestHost(t, cat, Config{DefaultQuery: "all"})

	assert.NoError(t, h.Start(context.Background()))
	assert.Equal(t, playback.StateIdle, h.Status().State)
}

func TestHost_SearchFailureKeepsQueue(t *testing.T) {
	cat := &fakeCatalog{results: map[string][]track.Track{"jazz": tracks("a", "b")}}
	h := newTestHost(t, cat, Config{})

	_, err := h.Search(context.Background(), "jazz")
	require.NoError(t, err)
	waitState(t, h, playback.StatePlaying)

	cat.mu.Lock()
	cat.err = errors.New("503 Service Unavailable")
	cat.mu.Unlock()

	_, err = h.Search(context.Background(), "rock")
	require.Error(t, err)

	snap, err := h.Session().Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, track.IDs(snap.Queue))
	assert.Equal(t, playback.StatePlaying, snap.State)
}

func TestHost_Invoke(t *testing.T) {
	cat := &fakeCatalog{results: map[string][]track.Track{"jazz": tracks("a", "b", "c")}}
	h := newTestHost(t, cat, Config{})

	_, err := h.Search(context.Background(), "jazz")
	require.NoError(t, err)
	waitState(t, h, playback.StatePlaying)

	require.NoError(t, h.Invoke(context.Background(), "next"))
	require.Eventually(t, func() bool {
		st := h.Status()
		return st.Index == 1 && st.State == playback.StatePlaying
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Invoke(context.Background(), "play_pause"))
	waitState(t, h, playback.StatePaused)
	assert.Equal(t, "Play", h.Status().Actions[2].Label)

	err = h.Invoke(context.Background(), "eject")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestHost_PositionThrottle(t *testing.T) {
	cat := &fakeCatalog{results: map[string][]track.Track{"jazz": tracks("a")}}
	h := newTestHost(t, cat, Config{PositionThrottle: time.Hour})

	stream := &recordingStream{}
	h.Notifications().Subscribe(stream)

	_, err := h.Search(context.Background(), "jazz")
	require.NoError(t, err)
	waitState(t, h, playback.StatePlaying)

	// Several polls happen; at most one refresh gets through per throttle window.
	time.Sleep(100 * time.Millisecond)
	assert.LessOrEqual(t, stream.positionCount(), 1)
}

func TestHost_SeekBypassesPositionThrottle(t *testing.T) {
	cat := &fakeCatalog{results: map[string][]track.Track{"jazz": tracks("a")}}
	h := newTestHost(t, cat, Config{PositionThrottle: time.Hour})

	stream := &recordingStream{}
	h.Notifications().Subscribe(stream)

	_, err := h.Search(context.Background(), "jazz")
	require.NoError(t, err)
	waitState(t, h, playback.StatePlaying)

	// The first poll tick opens the throttle window.
	require.Eventually(t, func() bool {
		return stream.positionCount() >= 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, h.Session().Seek(context.Background(), 12000))
	require.Eventually(t, func() bool {
		return h.Status().PositionMs == 12000
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		for _, n := range stream.got {
			if n.Event.Type == playback.EventPositionUpdated && n.Event.Seeked {
				return n.Status.PositionMs == 12000
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "seek position was throttled")
}

func TestHost_Close(t *testing.T) {
	cat := &fakeCatalog{results: map[string][]track.Track{"jazz": tracks("a")}}
	h := newTestHost(t, cat, Config{})
	h.Notifications().Subscribe(&recordingStream{})

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	assert.Equal(t, 0, h.Notifications().SubscriberCount())

	_, err := h.Search(context.Background(), "jazz")
	assert.ErrorIs(t, err, ErrHostClosed)
	assert.ErrorIs(t, h.Start(context.Background()), ErrHostClosed)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &fakeCatalog{}, nil, Config{})
	assert.Error(t, err)

	session := playback.NewSession(func() engine.Engine { return &instantEngine{} }, playback.Config{})
	defer session.Close()
	_, err = New(session, nil, nil, Config{})
	assert.Error(t, err)
}
