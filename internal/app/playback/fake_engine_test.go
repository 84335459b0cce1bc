package playback

import (
	"errors"
	"sync"

	"github.com/osa030/musy/internal/infra/engine"
)

// fakeEngine is a scripted engine. Tests resolve preparation explicitly
// unless the factory installs an automatic behavior. Unlike a real engine
// it keeps delivering callbacks after Release, so stale signals can be
// exercised.
type fakeEngine struct {
	mu         sync.Mutex
	source     string
	listener   engine.Listener
	started    bool
	paused     bool
	position   int64
	duration   int64
	seeks      []int64
	releases   int
	releaseErr error
}

func (f *fakeEngine) PrepareAsync(source string, l engine.Listener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = source
	f.listener = l
}

func (f *fakeEngine) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = true
	f.paused = false
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
}

func (f *fakeEngine) SeekTo(ms int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, ms)
	f.position = ms
}

func (f *fakeEngine) CurrentPosition() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeEngine) Duration() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.duration
}

func (f *fakeEngine) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return f.releaseErr
}

func (f *fakeEngine) prepared() {
	f.mu.Lock()
	cb := f.listener.OnPrepared
	f.mu.Unlock()
	cb()
}

func (f *fakeEngine) fail(code int) {
	f.mu.Lock()
	cb := f.listener.OnError
	f.mu.Unlock()
	cb(code)
}

func (f *fakeEngine) complete() {
	f.mu.Lock()
	cb := f.listener.OnCompletion
	f.mu.Unlock()
	cb()
}

func (f *fakeEngine) setPosition(ms int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.position = ms
}

func (f *fakeEngine) state() (started, paused bool, releases int, seeks []int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.paused, f.releases, append([]int64(nil), f.seeks...)
}

func (f *fakeEngine) sourceURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

// fakeFactory records every allocated engine.
type fakeFactory struct {
	mu       sync.Mutex
	engines  []*fakeEngine
	duration int64
	// auto, when set, runs on its own goroutine right after PrepareAsync.
	auto func(f *fakeEngine)
}

func (ff *fakeFactory) factory() engine.Factory {
	return func() engine.Engine {
		ff.mu.Lock()
		defer ff.mu.Unlock()
		f := &fakeEngine{duration: ff.duration}
		ff.engines = append(ff.engines, f)
		if ff.auto != nil {
			return &autoEngine{fakeEngine: f, auto: ff.auto}
		}
		return f
	}
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.engines)
}

func (ff *fakeFactory) engine(i int) *fakeEngine {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.engines[i]
}

func (ff *fakeFactory) last() *fakeEngine {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.engines[len(ff.engines)-1]
}

type autoEngine struct {
	*fakeEngine
	auto func(f *fakeEngine)
}

func (a *autoEngine) PrepareAsync(source string, l engine.Listener) {
	a.fakeEngine.PrepareAsync(source, l)
	go a.auto(a.fakeEngine)
}

var errReleaseFailed = errors.New("device busy")
