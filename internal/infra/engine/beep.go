//go:build (linux && cgo) || windows || darwin

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	zlog "github.com/rs/zerolog/log"
)

// New allocates an engine instance.
func (b *Beep) New() Engine {
	return &beepPlayer{owner: b}
}

func (b *Beep) initSpeaker() error {
	b.initOnce.Do(func() {
		if err := speaker.Init(b.sampleRate, b.sampleRate.N(b.cfg.Buffer)); err != nil {
			b.initErr = errors.Wrap(err, "failed to initialize speaker")
		}
	})
	return b.initErr
}

type beepPlayer struct {
	owner *Beep

	mu       sync.Mutex
	cancel   context.CancelFunc
	listener Listener
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	started  bool
	released bool
}

func (p *beepPlayer) PrepareAsync(source string, l Listener) {
	ctx, cancel := context.WithTimeout(context.Background(), p.owner.cfg.FetchTimeout)

	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		cancel()
		return
	}
	p.cancel = cancel
	p.listener = l
	p.mu.Unlock()

	go p.prepare(ctx, cancel, source)
}

func (p *beepPlayer) prepare(ctx context.Context, cancel context.CancelFunc, source string) {
	data, err := p.owner.fetch(ctx, source)
	cancel()
	if err != nil {
		zlog.Debug().Err(err).Msgf("beep: fetch failed: %s", source)
		p.fail(codeOf(err))
		return
	}

	streamer, format, err := decode(data)
	if err != nil {
		zlog.Debug().Err(err).Msgf("beep: decode failed: %s", source)
		p.fail(CodeMalformed)
		return
	}

	if err := p.owner.initSpeaker(); err != nil {
		zlog.Error().Err(err).Msg("beep: speaker unavailable")
		streamer.Close()
		p.fail(CodeUnsupported)
		return
	}

	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		streamer.Close()
		return
	}
	p.streamer = streamer
	p.format = format
	p.ctrl = &beep.Ctrl{
		Streamer: beep.Resample(4, format.SampleRate, p.owner.sampleRate, streamer),
		Paused:   true,
	}
	onPrepared := p.listener.OnPrepared
	p.mu.Unlock()

	if onPrepared != nil {
		onPrepared()
	}
}

func (p *beepPlayer) fail(code int) {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	onError := p.listener.OnError
	p.mu.Unlock()

	if onError != nil {
		onError(code)
	}
}

// finished runs on the speaker goroutine with the speaker lock held.
func (p *beepPlayer) finished() {
	go func() {
		p.mu.Lock()
		if p.released {
			p.mu.Unlock()
			return
		}
		onCompletion := p.listener.OnCompletion
		p.mu.Unlock()

		if onCompletion != nil {
			onCompletion()
		}
	}()
}

func (p *beepPlayer) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil || p.released {
		return
	}

	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()

	if !p.started {
		p.started = true
		speaker.Play(beep.Seq(p.ctrl, beep.Callback(p.finished)))
	}
}

func (p *beepPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil || p.released {
		return
	}

	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
}

func (p *beepPlayer) SeekTo(ms int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// An unmeasured stream cannot seek
	if p.streamer == nil || p.released || p.streamer.Len() <= 0 {
		return
	}

	speaker.Lock()
	defer speaker.Unlock()
	pos := p.format.SampleRate.N(time.Duration(ms) * time.Millisecond)
	pos = max(0, min(pos, p.streamer.Len()))
	if err := p.streamer.Seek(pos); err != nil {
		zlog.Warn().Err(err).Msgf("beep: seek to %dms failed", ms)
	}
}

func (p *beepPlayer) CurrentPosition() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer == nil || p.released {
		return 0
	}

	speaker.Lock()
	pos := p.streamer.Position()
	speaker.Unlock()
	return p.format.SampleRate.D(pos).Milliseconds()
}

func (p *beepPlayer) Duration() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.streamer == nil || p.released {
		return 0
	}
	return p.format.SampleRate.D(p.streamer.Len()).Milliseconds()
}

func (p *beepPlayer) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.released = true

	if p.cancel != nil {
		p.cancel()
	}
	if p.ctrl == nil {
		return nil
	}

	// Detach from the mixer before closing the decoder.
	speaker.Lock()
	p.ctrl.Streamer = nil
	speaker.Unlock()

	if err := p.streamer.Close(); err != nil {
		return errors.Wrap(err, "failed to close stream")
	}
	return nil
}
