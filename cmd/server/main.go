// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/musy/internal/api/connect"
	"github.com/osa030/musy/internal/app/catalog"
	"github.com/osa030/musy/internal/app/filter"
	"github.com/osa030/musy/internal/app/host"
	"github.com/osa030/musy/internal/app/playback"
	"github.com/osa030/musy/internal/infra/config"
	"github.com/osa030/musy/internal/infra/engine"
	"github.com/osa030/musy/internal/infra/logger"
	"github.com/osa030/musy/internal/infra/spotify"
)

var (
	app        = kingpin.New("musy-server", "musy playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main server logic so that deferred cleanup runs on every
// exit path.
func run(cfg *config.Config) error {
	ctx := context.Background()

	// A typed nil would pass the provider's nil check.
	var spotifyClient catalog.SpotifyClient
	if cfg.UsesProvider("spotify") {
		c, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		spotifyClient = c
	}

	providers, err := catalog.NewProviderChainFromConfig(cfg, spotifyClient)
	if err != nil {
		return errors.Wrap(err, "failed to create catalog")
	}

	filters, err := filter.NewChainFromConfig(cfg)
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	backend := engine.NewBeep(engine.BeepConfig{
		SampleRate:   cfg.Engine.SampleRate,
		Buffer:       cfg.Engine.Buffer(),
		FetchTimeout: cfg.Engine.FetchTimeout(),
	})

	session := playback.NewSession(backend.Factory(), playback.Config{
		PollInterval:     cfg.Playback.PollInterval(),
		FallbackDuration: cfg.Playback.FallbackDuration(),
		RewindStep:       cfg.Playback.RewindStep(),
		RecentLimit:      cfg.Playback.RecentLimit,
		EventBuffer:      cfg.Playback.EventBuffer,
		AutoPlay:         cfg.Playback.AutoPlayEnabled(),
	})

	h, err := host.New(session, providers, filters, host.Config{
		DefaultQuery:     cfg.Catalog.DefaultQuery,
		ResultLimit:      cfg.Catalog.ResultLimit,
		PositionThrottle: cfg.Playback.PositionThrottle(),
	})
	if err != nil {
		_ = session.Close()
		return errors.Wrap(err, "failed to create host")
	}
	zlog.Info().Msgf("Session created: id=%s providers=%d filters=%d",
		session.ID(), providers.Len(), len(filters.Filters()))

	mux := http.NewServeMux()
	path, handler := apiconnect.NewPlaybackServiceHandler(
		apiconnect.NewPlaybackService(h),
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg.Control.Token)),
	)
	mux.Handle(path, handler)

	// h2c serves HTTP/2 without TLS so streaming works for plain clients
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	// Initial search
	go func() {
		if err := h.Start(ctx); err != nil {
			zlog.Error().Msgf("Failed to start host: %v", err)
		}
	}()

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-h.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the host first so subscribe streams end before the server drains
	if err := h.Close(); err != nil {
		zlog.Error().Msgf("Failed to release session: %v", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// printFilters prints available filters.
func printFilters() {
	registry := filter.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	playable := filter.NewPlayableFilter()
	fmt.Printf("  %-30s - %s [codes: %s] (always on)\n",
		playable.Name(), playable.Description(), strings.Join(playable.ReturnCodes(), ", "))
	for _, name := range names {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
