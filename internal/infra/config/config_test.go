package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
control:
  token: "test-control-token"
catalog:
  providers:
    - type: deezer
      display_name: Deezer
      settings:
        api_key: "test-api-key"
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 500, cfg.Playback.PollIntervalMs)
	assert.Equal(t, 30000, cfg.Playback.FallbackDurationMs)
	assert.Equal(t, 10000, cfg.Playback.RewindMs)
	assert.Equal(t, 5, cfg.Playback.RecentLimit)
	assert.Equal(t, 64, cfg.Playback.EventBuffer)
	assert.True(t, cfg.Playback.AutoPlayEnabled())
	assert.Equal(t, "all", cfg.Catalog.DefaultQuery)
	assert.Equal(t, 25, cfg.Catalog.ResultLimit)
	assert.Equal(t, "US", cfg.Spotify.Market)
	assert.Equal(t, 44100, cfg.Engine.SampleRate)

	assert.Equal(t, 500*time.Millisecond, cfg.Playback.PollInterval())
	assert.Equal(t, 30*time.Second, cfg.Playback.FallbackDuration())
	assert.Equal(t, 10*time.Second, cfg.Playback.RewindStep())
	assert.Equal(t, time.Second, cfg.Playback.PositionThrottle())
	assert.Equal(t, 100*time.Millisecond, cfg.Engine.Buffer())
	assert.Equal(t, 15*time.Second, cfg.Engine.FetchTimeout())
}

func TestParse_AutoPlayDisabled(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + `
playback:
  auto_play: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Playback.AutoPlayEnabled())
}

func TestConfig_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			yaml:    minimalYAML,
			wantErr: false,
		},
		{
			name: "missing control token",
			yaml: `
catalog:
  providers:
    - type: deezer
      display_name: Deezer
`,
			wantErr: true,
			errMsg:  "Token",
		},
		{
			name: "no providers",
			yaml: `
control:
  token: "t"
`,
			wantErr: true,
			errMsg:  "Providers",
		},
		{
			name: "unknown provider type",
			yaml: `
control:
  token: "t"
catalog:
  providers:
    - type: lastfm
      display_name: Last.fm
`,
			wantErr: true,
			errMsg:  "Type",
		},
		{
			name: "spotify provider without credentials",
			yaml: `
control:
  token: "t"
catalog:
  providers:
    - type: spotify
      display_name: Spotify
`,
			wantErr: true,
			errMsg:  "spotify provider requires",
		},
		{
			name: "invalid market",
			yaml: minimalYAML + `
spotify:
  market: "USA"
`,
			wantErr: true,
			errMsg:  "Market",
		},
		{
			name: "poll interval too small",
			yaml: minimalYAML + `
playback:
  poll_interval_ms: 10
`,
			wantErr: true,
			errMsg:  "PollIntervalMs",
		},
		{
			name: "unsupported sample rate",
			yaml: minimalYAML + `
engine:
  sample_rate: 12345
`,
			wantErr: true,
			errMsg:  "SampleRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONTROL_TOKEN", "env-token")
	t.Setenv("DEEZER_RAPIDAPI_KEY", "env-key")
	t.Setenv("SPOTIFY_CLIENT_ID", "env-client-id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "env-client-secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
catalog:
  providers:
    - type: deezer
      display_name: Deezer
    - type: spotify
      display_name: Spotify
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Control.Token)
	assert.Equal(t, "env-key", cfg.Catalog.Providers[0].Settings["api_key"])
	assert.Nil(t, cfg.Catalog.Providers[1].Settings)
	assert.Equal(t, "env-client-id", cfg.Spotify.ClientID)
	assert.Equal(t, "env-client-secret", cfg.Spotify.ClientSecret)
	assert.True(t, cfg.UsesProvider("spotify"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_IsFilterEnabled(t *testing.T) {
	cfg := &Config{
		Filters: map[string]FilterConfig{
			"duplicate_track_filter": {Enabled: true},
			"duration_limit_filter":  {Enabled: false},
		},
	}

	assert.True(t, cfg.IsFilterEnabled("duplicate_track_filter"))
	assert.False(t, cfg.IsFilterEnabled("duration_limit_filter"))
	assert.False(t, cfg.IsFilterEnabled("unknown_filter"))
}
