//go:build !((linux && cgo) || windows || darwin)

package engine

import "sync"

// New allocates an engine instance. Without audio output every preparation
// fails with CodeUnsupported.
func (b *Beep) New() Engine {
	return &unsupportedPlayer{}
}

type unsupportedPlayer struct {
	mu       sync.Mutex
	released bool
}

func (p *unsupportedPlayer) PrepareAsync(_ string, l Listener) {
	go func() {
		p.mu.Lock()
		released := p.released
		p.mu.Unlock()
		if !released && l.OnError != nil {
			l.OnError(CodeUnsupported)
		}
	}()
}

func (p *unsupportedPlayer) Start()                 {}
func (p *unsupportedPlayer) Pause()                 {}
func (p *unsupportedPlayer) SeekTo(int64)           {}
func (p *unsupportedPlayer) CurrentPosition() int64 { return 0 }
func (p *unsupportedPlayer) Duration() int64        { return 0 }

func (p *unsupportedPlayer) Release() error {
	p.mu.Lock()
	p.released = true
	p.mu.Unlock()
	return nil
}
