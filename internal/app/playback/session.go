package playback

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musy/internal/domain/queue"
	"github.com/osa030/musy/internal/domain/track"
	"github.com/osa030/musy/internal/infra/engine"
)

// Errors
var (
	ErrSessionClosed = errors.New("playback session closed")
)

// Config holds session configuration.
type Config struct {
	PollInterval     time.Duration // Position poll period while playing
	FallbackDuration time.Duration // Duration assumed when neither engine nor catalog knows it
	RewindStep       time.Duration // Step used by Rewind
	RecentLimit      int           // Shuffle recency window
	EventBuffer      int           // Per-subscriber event buffer
	AutoPlay         bool          // Play index 0 after ReplaceQueue
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval:     500 * time.Millisecond,
		FallbackDuration: 30 * time.Second,
		RewindStep:       10 * time.Second,
		RecentLimit:      queue.DefaultRecentLimit,
		EventBuffer:      64,
		AutoPlay:         true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.FallbackDuration <= 0 {
		c.FallbackDuration = d.FallbackDuration
	}
	if c.RewindStep <= 0 {
		c.RewindStep = d.RewindStep
	}
	if c.RecentLimit <= 0 {
		c.RecentLimit = d.RecentLimit
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
	return c
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	ID         string
	State      State
	Index      int // -1 when the queue is empty
	Track      *track.Track
	PositionMs int64
	DurationMs int64
	Polling    bool
	Queue      []track.Track
	Recent     []int
}

// Inbox messages.
type (
	commandMsg    struct{ cmd Command }
	loadDoneMsg   struct{ result LoadResult }
	completionMsg struct{ gen uint64 }
	failureMsg    struct {
		gen  uint64
		code int
	}
	snapshotMsg struct{ reply chan Snapshot }
	syncMsg     struct{ reply chan struct{} }
)

type poller struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Session is the playback state machine. Commands and engine signals are
// applied one at a time by a single goroutine; the poll goroutine only
// writes the position.
type Session struct {
	id      string
	cfg     Config
	adapter *Adapter

	inbox   chan any
	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}

	closeOnce sync.Once
	closeErr  error

	// Owned by the run goroutine.
	queue      *queue.Queue
	state      State
	loadGen    uint64
	loading    int
	durationMs int64
	poll       *poller

	positionMs atomic.Int64

	subsMu sync.RWMutex
	subs   map[string]*Subscription
	closed bool
}

// NewSession creates a session driving instances from factory and starts
// its command loop.
func NewSession(factory engine.Factory, cfg Config) *Session {
	return newSession(factory, cfg, queue.New(cfg.withDefaults().RecentLimit))
}

func newSession(factory engine.Factory, cfg Config, q *queue.Queue) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:      uuid.New().String(),
		cfg:     cfg.withDefaults(),
		inbox:   make(chan any, 64),
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
		queue:   q,
		state:   StateIdle,
		loading: -1,
		subs:    make(map[string]*Subscription),
	}
	s.adapter = NewAdapter(factory, AdapterHandlers{
		OnCompletion: func(gen uint64) { s.post(completionMsg{gen: gen}) },
		OnFailure:    func(gen uint64, code int) { s.post(failureMsg{gen: gen, code: code}) },
	})

	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

// Dispatch enqueues cmd. It returns once the command is accepted, not applied.
func (s *Session) Dispatch(ctx context.Context, cmd Command) error {
	if s.ctx.Err() != nil {
		return ErrSessionClosed
	}
	select {
	case s.inbox <- commandMsg{cmd: cmd}:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PlayAt loads and plays the track at index.
func (s *Session) PlayAt(ctx context.Context, index int) error {
	return s.Dispatch(ctx, Command{Kind: CommandPlayAt, Index: index})
}

// Next plays the following track, wrapping at the end.
func (s *Session) Next(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandNext})
}

// Prev plays the preceding track, wrapping at the start.
func (s *Session) Prev(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandPrev})
}

// Shuffle plays a random track not among the recent picks.
func (s *Session) Shuffle(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandShuffle})
}

// TogglePlayPause pauses when playing and resumes when paused.
func (s *Session) TogglePlayPause(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandTogglePlayPause})
}

// Pause pauses playback.
func (s *Session) Pause(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandPause})
}

// Resume resumes paused playback.
func (s *Session) Resume(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandResume})
}

// Seek moves playback to ms, clamped to the track duration.
func (s *Session) Seek(ctx context.Context, ms int64) error {
	return s.Dispatch(ctx, Command{Kind: CommandSeek, PositionMs: ms})
}

// Rewind moves playback back by the configured step.
func (s *Session) Rewind(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandRewind})
}

// Stop releases the engine and returns to Idle.
func (s *Session) Stop(ctx context.Context) error {
	return s.Dispatch(ctx, Command{Kind: CommandStop})
}

// ReplaceQueue stops playback and swaps the queue contents.
func (s *Session) ReplaceQueue(ctx context.Context, tracks []track.Track) error {
	return s.Dispatch(ctx, Command{Kind: CommandReplaceQueue, Tracks: tracks})
}

// Snapshot returns the session view after all previously dispatched commands.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := s.request(ctx, snapshotMsg{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-s.stopped:
		return Snapshot{}, ErrSessionClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Sync waits until all previously dispatched commands have been applied.
func (s *Session) Sync(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := s.request(ctx, syncMsg{reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-s.stopped:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) request(ctx context.Context, m any) error {
	select {
	case s.inbox <- m:
		return nil
	case <-s.ctx.Done():
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers an internal message unless the session is closing.
func (s *Session) post(m any) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

// Close tears the session down: the poll loop stops, the engine is released,
// StateChanged(Idle) is emitted best-effort and all subscriptions are closed.
// The returned error is the engine release failure, if any. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.stopped
		s.closeSubscriptions()
	})
	return s.closeErr
}

func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return
		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) handle(m any) {
	switch msg := m.(type) {
	case commandMsg:
		s.apply(msg.cmd)
	case loadDoneMsg:
		s.onLoadDone(msg.result)
	case completionMsg:
		s.onCompletion(msg.gen)
	case failureMsg:
		s.onFailure(msg.gen, msg.code)
	case snapshotMsg:
		msg.reply <- s.snapshot()
	case syncMsg:
		msg.reply <- struct{}{}
	}
}

func (s *Session) apply(cmd Command) {
	zlog.Debug().Msgf("session: command %s in state %s", cmd, s.state)

	switch cmd.Kind {
	case CommandPlayAt:
		s.playAt(cmd.Index)
	case CommandNext:
		s.advance(s.queue.Next)
	case CommandPrev:
		s.advance(s.queue.Prev)
	case CommandShuffle:
		s.advance(s.queue.RandomNext)
	case CommandTogglePlayPause:
		s.toggle()
	case CommandPause:
		s.pause()
	case CommandResume:
		s.resume()
	case CommandSeek:
		s.seek(cmd.PositionMs)
	case CommandRewind:
		s.rewind()
	case CommandStop:
		s.stop()
	case CommandReplaceQueue:
		s.replaceQueue(cmd.Tracks)
	default:
		zlog.Warn().Msgf("session: unknown command kind %d", cmd.Kind)
	}
}

func (s *Session) playAt(index int) {
	if s.queue.IsEmpty() {
		zlog.Debug().Err(queue.ErrEmptyQueue).Msgf("session: ignoring play_at(%d)", index)
		return
	}
	if s.state == StateLoading && index == s.loading {
		zlog.Debug().Msgf("session: ignoring duplicate play_at(%d) while loading", index)
		return
	}
	if err := s.queue.SetCurrent(index); err != nil {
		zlog.Debug().Err(err).Msgf("session: ignoring play_at(%d)", index)
		return
	}

	trk, _ := s.queue.Current()
	s.stopPoll()
	s.loading = index
	s.durationMs = 0
	s.positionMs.Store(0)

	ld := s.adapter.Begin(trk.SourceURL)
	s.loadGen = ld.Generation()
	go s.await(ld)

	s.setState(StateLoading)
	s.emit(Event{Type: EventTrackChanged, State: s.state, Track: &trk, Index: index})
}

// await forwards the resolution of ld to the command loop.
func (s *Session) await(ld *Load) {
	result, err := ld.Wait(s.ctx)
	if err != nil {
		return
	}
	s.post(loadDoneMsg{result: result})
}

func (s *Session) advance(move func() int) {
	if s.queue.IsEmpty() {
		zlog.Debug().Err(queue.ErrEmptyQueue).Msg("session: ignoring navigation")
		return
	}
	s.playAt(move())
}

func (s *Session) onLoadDone(r LoadResult) {
	if r.Generation != s.loadGen || s.state != StateLoading {
		zlog.Debug().Msgf("session: discarding stale load result: gen=%d current=%d outcome=%s",
			r.Generation, s.loadGen, r.Outcome)
		return
	}

	switch r.Outcome {
	case LoadSucceeded:
		s.loading = -1
		s.durationMs = s.resolveDuration(r.DurationMs)
		s.positionMs.Store(0)
		s.emit(Event{Type: EventDurationKnown, State: s.state, DurationMs: s.durationMs})
		s.setState(StatePlaying)
		s.startPoll()

	case LoadFailed:
		s.loading = -1
		code := engine.CodeUnknown
		var engineErr *EngineError
		if errors.As(r.Err, &engineErr) {
			code = engineErr.Code
		}
		zlog.Error().Err(r.Err).Msgf("session: load failed: index=%d", s.queue.CurrentIndex())
		s.setState(StateError)
		s.emit(Event{Type: EventPlaybackError, State: s.state, Code: code})

	case LoadCancelled:
		zlog.Debug().Msgf("session: load cancelled: gen=%d", r.Generation)
	}
}

// resolveDuration prefers the engine value, then catalog metadata, then the fallback.
func (s *Session) resolveDuration(engineMs int64) int64 {
	if engineMs > 0 {
		return engineMs
	}
	if trk, ok := s.queue.Current(); ok && trk.HasDuration() {
		return trk.DurationMs()
	}
	return s.cfg.FallbackDuration.Milliseconds()
}

func (s *Session) onCompletion(gen uint64) {
	if gen != s.loadGen || s.state != StatePlaying {
		zlog.Debug().Msgf("session: discarding completion: gen=%d current=%d state=%s", gen, s.loadGen, s.state)
		return
	}
	zlog.Debug().Msgf("session: track completed, advancing: index=%d", s.queue.CurrentIndex())
	s.advance(s.queue.Next)
}

func (s *Session) onFailure(gen uint64, code int) {
	if gen != s.loadGen || (s.state != StatePlaying && s.state != StatePaused) {
		zlog.Debug().Msgf("session: discarding engine failure: gen=%d current=%d code=%d", gen, s.loadGen, code)
		return
	}
	zlog.Error().Msgf("session: playback failed: code=%d (%s)", code, engine.CodeName(code))
	s.stopPoll()
	s.releaseEngine()
	s.setState(StateError)
	s.emit(Event{Type: EventPlaybackError, State: s.state, Code: code})
}

func (s *Session) toggle() {
	switch s.state {
	case StatePlaying:
		s.pause()
	case StatePaused:
		s.resume()
	case StateIdle, StateError:
		if s.queue.IsEmpty() {
			zlog.Debug().Err(queue.ErrEmptyQueue).Msg("session: ignoring toggle")
			return
		}
		s.playAt(s.queue.CurrentIndex())
	case StateLoading:
		zlog.Debug().Msg("session: ignoring toggle while loading")
	}
}

func (s *Session) pause() {
	if s.state != StatePlaying {
		return
	}
	s.adapter.Pause()
	s.stopPoll()
	s.positionMs.Store(s.adapter.CurrentPositionMs())
	s.setState(StatePaused)
}

func (s *Session) resume() {
	if s.state != StatePaused {
		return
	}
	s.adapter.Resume()
	s.setState(StatePlaying)
	s.startPoll()
}

func (s *Session) seek(ms int64) {
	if s.state != StatePlaying && s.state != StatePaused {
		return
	}
	target := max(0, min(ms, s.durationMs))
	s.adapter.Seek(target)
	s.positionMs.Store(target)
	s.emit(Event{Type: EventPositionUpdated, State: s.state, PositionMs: target, Seeked: true})
}

func (s *Session) rewind() {
	if s.state != StatePlaying && s.state != StatePaused {
		return
	}
	target := s.adapter.Rewind(s.cfg.RewindStep.Milliseconds())
	s.positionMs.Store(target)
	s.emit(Event{Type: EventPositionUpdated, State: s.state, PositionMs: target, Seeked: true})
}

func (s *Session) stop() {
	s.stopPoll()
	s.releaseEngine()
	s.loading = -1
	s.durationMs = 0
	s.positionMs.Store(0)
	s.setState(StateIdle)
}

func (s *Session) replaceQueue(tracks []track.Track) {
	s.stop()
	s.queue.Replace(tracks)
	s.emit(Event{Type: EventQueueReplaced, State: s.state, Tracks: s.queue.Tracks()})

	if s.cfg.AutoPlay && !s.queue.IsEmpty() {
		s.playAt(0)
	}
}

func (s *Session) releaseEngine() {
	if err := s.adapter.Release(); err != nil {
		zlog.Warn().Err(err).Msg("session: engine release failed")
	}
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	zlog.Debug().Msgf("session: state %s -> %s", s.state, st)
	s.state = st
	s.emit(Event{Type: EventStateChanged, State: st})
}

func (s *Session) startPoll() {
	s.stopPoll()

	ctx, cancel := context.WithCancel(s.ctx)
	p := &poller{cancel: cancel, done: make(chan struct{})}
	s.poll = p

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(s.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				pos := s.adapter.CurrentPositionMs()
				s.positionMs.Store(pos)
				s.emit(Event{Type: EventPositionUpdated, State: StatePlaying, PositionMs: pos})
			}
		}
	}()
}

func (s *Session) stopPoll() {
	if s.poll == nil {
		return
	}
	s.poll.cancel()
	<-s.poll.done
	s.poll = nil
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		Index:      s.queue.CurrentIndex(),
		PositionMs: s.positionMs.Load(),
		DurationMs: s.durationMs,
		Polling:    s.poll != nil,
		Queue:      s.queue.Tracks(),
		Recent:     s.queue.Recent(),
	}
	if trk, ok := s.queue.Current(); ok {
		snap.Track = &trk
	}
	return snap
}

func (s *Session) teardown() {
	s.stopPoll()
	if err := s.adapter.Release(); err != nil {
		zlog.Warn().Err(err).Msg("session: engine release failed during teardown")
		s.closeErr = err
	}
	s.loading = -1
	if s.state != StateIdle {
		s.state = StateIdle
		s.emit(Event{Type: EventStateChanged, State: StateIdle})
	}
	zlog.Debug().Msgf("session: torn down: id=%s", s.id)
}
