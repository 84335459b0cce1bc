package engine

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
)

// maxSourceBytes bounds the size of a downloaded source.
const maxSourceBytes = 32 << 20

// BeepConfig configures the beep backend.
type BeepConfig struct {
	SampleRate   int           // Speaker sample rate in Hz
	Buffer       time.Duration // Speaker buffer length
	FetchTimeout time.Duration // Timeout for downloading a source
	HTTPClient   *http.Client  // Client used to download sources (optional)
}

// Beep allocates engine instances that decode MP3 sources and play them on
// the process-wide speaker.
type Beep struct {
	cfg        BeepConfig
	sampleRate beep.SampleRate
	client     *http.Client

	initOnce sync.Once
	initErr  error
}

// NewBeep creates a beep backend.
func NewBeep(cfg BeepConfig) *Beep {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 44100
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 100 * time.Millisecond
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Beep{
		cfg:        cfg,
		sampleRate: beep.SampleRate(cfg.SampleRate),
		client:     client,
	}
}

// Factory returns a Factory producing instances of this backend.
func (b *Beep) Factory() Factory {
	return b.New
}

// fetchError carries the engine code for a failed download.
type fetchError struct {
	code int
	err  error
}

func (e *fetchError) Error() string { return e.err.Error() }
func (e *fetchError) Unwrap() error { return e.err }

// fetch downloads source into memory.
func (b *Beep) fetch(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &fetchError{code: CodeMalformed, err: errors.Wrap(err, "failed to create request")}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &fetchError{code: fetchCode(ctx), err: errors.Wrap(err, "failed to fetch source")}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &fetchError{code: CodeIO, err: errors.Newf("source returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, &fetchError{code: fetchCode(ctx), err: errors.Wrap(err, "failed to read source")}
	}
	return data, nil
}

func fetchCode(ctx context.Context) int {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return CodeTimedOut
	}
	return CodeIO
}

// codeOf extracts the engine code from a fetch error.
func codeOf(err error) int {
	var fe *fetchError
	if errors.As(err, &fe) {
		return fe.code
	}
	return CodeUnknown
}

// readSeekNopCloser keeps the reader seekable so the decoder can measure the
// stream length.
type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// decode decodes an in-memory MP3 source.
func decode(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	streamer, format, err := mp3.Decode(readSeekNopCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "failed to decode source")
	}
	return streamer, format, nil
}
