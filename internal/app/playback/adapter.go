package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musy/internal/infra/engine"
)

// EngineError is a preparation or playback failure reported by the engine.
type EngineError struct {
	Code int
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine error %d (%s)", e.Code, engine.CodeName(e.Code))
}

// LoadOutcome is the resolution of a load attempt.
type LoadOutcome int

const (
	LoadSucceeded LoadOutcome = iota // Prepared and started
	LoadFailed                       // Engine reported an error
	LoadCancelled                    // Released before resolving
)

// String returns the string representation of the outcome.
func (o LoadOutcome) String() string {
	switch o {
	case LoadSucceeded:
		return "succeeded"
	case LoadFailed:
		return "failed"
	case LoadCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// LoadResult is delivered exactly once per load attempt.
type LoadResult struct {
	Outcome    LoadOutcome
	Generation uint64
	DurationMs int64 // engine-reported duration on success, 0 if unknown
	Err        error // *EngineError when Outcome is LoadFailed
}

// Load is a pending load attempt.
type Load struct {
	gen    uint64
	done   chan struct{}
	once   sync.Once
	result LoadResult
}

func newLoad(gen uint64) *Load {
	return &Load{gen: gen, done: make(chan struct{})}
}

// Generation returns the generation token of this attempt.
func (l *Load) Generation() uint64 {
	return l.gen
}

// Done is closed once the attempt resolves.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Result returns the resolution. Only valid after Done is closed.
func (l *Load) Result() LoadResult {
	<-l.done
	return l.result
}

// Wait blocks until the attempt resolves or ctx ends.
func (l *Load) Wait(ctx context.Context) (LoadResult, error) {
	select {
	case <-l.done:
		return l.result, nil
	case <-ctx.Done():
		return LoadResult{}, ctx.Err()
	}
}

func (l *Load) resolve(r LoadResult) bool {
	resolved := false
	l.once.Do(func() {
		r.Generation = l.gen
		l.result = r
		close(l.done)
		resolved = true
	})
	return resolved
}

// AdapterHandlers receive engine signals that arrive after a load resolved.
type AdapterHandlers struct {
	OnCompletion func(gen uint64)           // end of track
	OnFailure    func(gen uint64, code int) // playback-time error
}

// Adapter owns at most one engine instance and turns its callbacks into
// generation-tagged load results. Callbacks from an instance that has been
// superseded or released are discarded.
type Adapter struct {
	mu       sync.Mutex
	factory  engine.Factory
	handlers AdapterHandlers

	instance engine.Engine
	gen      uint64
	pending  *Load
	prepared bool
}

// NewAdapter creates an adapter allocating instances from factory.
func NewAdapter(factory engine.Factory, handlers AdapterHandlers) *Adapter {
	return &Adapter{
		factory:  factory,
		handlers: handlers,
	}
}

// Begin releases any held instance, allocates a new one and requests
// asynchronous preparation of source. The returned Load resolves when
// preparation succeeds (playback already started), fails, or is cancelled
// by Release or a later Begin.
func (a *Adapter) Begin(source string) *Load {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.releaseLocked(); err != nil {
		zlog.Warn().Err(err).Msg("adapter: release before load failed")
	}

	a.gen++
	gen := a.gen
	ld := newLoad(gen)
	a.instance = a.factory()
	a.pending = ld
	a.prepared = false

	a.instance.PrepareAsync(source, engine.Listener{
		OnPrepared:   func() { a.handlePrepared(gen) },
		OnError:      func(code int) { a.handleError(gen, code) },
		OnCompletion: func() { a.handleCompletion(gen) },
	})

	zlog.Debug().Msgf("adapter: load issued: gen=%d source=%s", gen, source)
	return ld
}

// Load issues a load and waits for its resolution.
func (a *Adapter) Load(ctx context.Context, source string) (LoadResult, error) {
	ld := a.Begin(source)
	return ld.Wait(ctx)
}

// Generation returns the current generation token.
func (a *Adapter) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

func (a *Adapter) handlePrepared(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.pending == nil {
		current := a.gen
		a.mu.Unlock()
		zlog.Debug().Msgf("adapter: discarding stale prepared signal: gen=%d current=%d", gen, current)
		return
	}

	a.instance.Start()
	a.prepared = true
	duration := a.instance.Duration()
	ld := a.pending
	a.pending = nil
	a.mu.Unlock()

	ld.resolve(LoadResult{Outcome: LoadSucceeded, DurationMs: duration})
}

func (a *Adapter) handleError(gen uint64, code int) {
	a.mu.Lock()
	if gen != a.gen || a.instance == nil {
		current := a.gen
		a.mu.Unlock()
		zlog.Debug().Msgf("adapter: discarding stale error signal: gen=%d current=%d code=%d", gen, current, code)
		return
	}

	if a.pending != nil {
		ld := a.pending
		a.pending = nil
		if err := a.releaseInstanceLocked(); err != nil {
			zlog.Warn().Err(err).Msg("adapter: release after failed load failed")
		}
		a.mu.Unlock()

		ld.resolve(LoadResult{Outcome: LoadFailed, Err: &EngineError{Code: code}})
		return
	}
	a.mu.Unlock()

	if a.handlers.OnFailure != nil {
		a.handlers.OnFailure(gen, code)
	}
}

func (a *Adapter) handleCompletion(gen uint64) {
	a.mu.Lock()
	current := gen == a.gen && a.instance != nil && a.prepared
	a.mu.Unlock()

	if !current {
		zlog.Debug().Msgf("adapter: discarding stale completion signal: gen=%d", gen)
		return
	}
	if a.handlers.OnCompletion != nil {
		a.handlers.OnCompletion(gen)
	}
}

// Release cancels any pending load and releases the held instance.
// It is a no-op when nothing is held.
func (a *Adapter) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releaseLocked()
}

func (a *Adapter) releaseLocked() error {
	if a.pending != nil {
		a.pending.resolve(LoadResult{Outcome: LoadCancelled})
		a.pending = nil
	}
	if a.instance == nil {
		return nil
	}
	a.gen++
	return a.releaseInstanceLocked()
}

func (a *Adapter) releaseInstanceLocked() error {
	inst := a.instance
	a.instance = nil
	a.prepared = false
	if err := inst.Release(); err != nil {
		return errors.Wrap(err, "failed to release engine")
	}
	return nil
}

// active returns the instance if a load has succeeded. Callers hold a.mu.
func (a *Adapter) active() engine.Engine {
	if a.instance == nil || !a.prepared {
		return nil
	}
	return a.instance
}

// Pause pauses playback. No-op without a started instance.
func (a *Adapter) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if inst := a.active(); inst != nil {
		inst.Pause()
	}
}

// Resume resumes playback. No-op without a started instance.
func (a *Adapter) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if inst := a.active(); inst != nil {
		inst.Start()
	}
}

// Seek moves playback to ms. No-op without a started instance.
func (a *Adapter) Seek(ms int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if inst := a.active(); inst != nil {
		inst.SeekTo(ms)
	}
}

// Rewind seeks stepMs back from the current position, not before 0, and
// returns the target. Returns 0 without a started instance.
func (a *Adapter) Rewind(stepMs int64) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	inst := a.active()
	if inst == nil {
		return 0
	}
	target := max(0, inst.CurrentPosition()-stepMs)
	inst.SeekTo(target)
	return target
}

// CurrentPositionMs returns the playback position, or 0 without a started instance.
func (a *Adapter) CurrentPositionMs() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if inst := a.active(); inst != nil {
		return inst.CurrentPosition()
	}
	return 0
}

// DurationMs returns the engine-reported duration, or 0 without a started instance.
func (a *Adapter) DurationMs() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if inst := a.active(); inst != nil {
		return inst.Duration()
	}
	return 0
}
