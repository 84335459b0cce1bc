package engine

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeName(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{CodeUnknown, "unknown"},
		{CodeIO, "io"},
		{CodeMalformed, "malformed"},
		{CodeUnsupported, "unsupported"},
		{CodeTimedOut, "timed_out"},
		{42, "code_42"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeName(tt.code))
		})
	}
}

func TestNewBeep_Defaults(t *testing.T) {
	b := NewBeep(BeepConfig{})
	assert.Equal(t, 44100, b.cfg.SampleRate)
	assert.Equal(t, 100*time.Millisecond, b.cfg.Buffer)
	assert.Equal(t, 15*time.Second, b.cfg.FetchTimeout)
	assert.NotNil(t, b.client)
	assert.NotNil(t, b.Factory())
}

func TestBeep_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.mp3":
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("ID3-test-bytes"))
		case "/slow.mp3":
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte("late"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	b := NewBeep(BeepConfig{})

	t.Run("success", func(t *testing.T) {
		data, err := b.fetch(context.Background(), server.URL+"/ok.mp3")
		require.NoError(t, err)
		assert.Equal(t, "ID3-test-bytes", string(data))
	})

	t.Run("not found maps to io", func(t *testing.T) {
		_, err := b.fetch(context.Background(), server.URL+"/missing.mp3")
		require.Error(t, err)
		assert.Equal(t, CodeIO, codeOf(err))
	})

	t.Run("deadline maps to timed out", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := b.fetch(ctx, server.URL+"/slow.mp3")
		require.Error(t, err)
		assert.Equal(t, CodeTimedOut, codeOf(err))
	})

	t.Run("invalid url maps to malformed", func(t *testing.T) {
		_, err := b.fetch(context.Background(), "://bad")
		require.Error(t, err)
		assert.Equal(t, CodeMalformed, codeOf(err))
	})
}

// silentMP3 builds a stream of silent MPEG-1 Layer III frames
// (128 kbps, 44.1 kHz, joint stereo, 1152 samples each).
func silentMP3(frames int) []byte {
	const frameSize = 417
	var buf bytes.Buffer
	for i := 0; i < frames; i++ {
		frame := make([]byte, frameSize)
		copy(frame, []byte{0xFF, 0xFB, 0x90, 0x44})
		buf.Write(frame)
	}
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	streamer, format, err := decode(silentMP3(40))
	require.NoError(t, err)
	defer streamer.Close()

	assert.Equal(t, beep.SampleRate(44100), format.SampleRate)
	require.Greater(t, streamer.Len(), 0)
	assert.Greater(t, format.SampleRate.D(streamer.Len()).Milliseconds(), int64(0))

	target := streamer.Len() / 2
	require.NoError(t, streamer.Seek(target))
	assert.Equal(t, target, streamer.Position())

	samples := make([][2]float64, 512)
	n, ok := streamer.Stream(samples)
	assert.True(t, ok)
	assert.Greater(t, n, 0)
}

func TestDecode_Malformed(t *testing.T) {
	_, _, err := decode([]byte("not an mp3"))
	assert.Error(t, err)
}
