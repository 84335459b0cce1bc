// Package host wires the playback session to the catalog, the result filters
// and the notification surface.
package host

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musy/internal/app/catalog"
	"github.com/osa030/musy/internal/app/filter"
	"github.com/osa030/musy/internal/app/notification"
	"github.com/osa030/musy/internal/app/playback"
	"github.com/osa030/musy/internal/domain/track"
)

var (
	ErrHostClosed    = errors.New("host is closed")
	ErrUnknownAction = errors.New("unknown action")
)

// Catalog searches for tracks.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) (catalog.Result, error)
}

// Config holds host configuration.
type Config struct {
	DefaultQuery     string        // Initial search; empty skips it
	ResultLimit      int           // Maximum tracks requested per search
	PositionThrottle time.Duration // Minimum interval between forwarded position refreshes
	SearchTimeout    time.Duration // Timeout for one catalog search
}

// SearchResult describes a search that replaced the queue.
type SearchResult struct {
	Query    string
	Provider string
	Tracks   []track.Track
	Rejected map[string]int
}

// Host owns the playback session for the lifetime of the process.
type Host struct {
	cfg          Config
	session      *playback.Session
	catalog      Catalog
	filters      *filter.Chain
	surface      *notification.Surface
	notification *notification.Manager

	mu         sync.Mutex
	lastSearch *SearchResult
	lastPos    time.Time

	sub       *playback.Subscription
	ctx       context.Context
	cancel    context.CancelFunc
	pumpDone  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New creates a host around session. filters may be nil.
func New(session *playback.Session, cat Catalog, filters *filter.Chain, cfg Config) (*Host, error) {
	if session == nil {
		return nil, errors.New("session is required")
	}
	if cat == nil {
		return nil, errors.New("catalog is required")
	}
	if filters == nil {
		filters = filter.NewChain()
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = 20 * time.Second
	}

	sub, err := session.Subscribe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to session")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		cfg:          cfg,
		session:      session,
		catalog:      cat,
		filters:      filters,
		surface:      notification.NewSurface(session.ID()),
		notification: notification.NewManager(),
		sub:          sub,
		ctx:          ctx,
		cancel:       cancel,
		pumpDone:     make(chan struct{}),
	}

	go h.pump()
	return h, nil
}

// Start runs the initial search. A failed initial search leaves the queue
// empty and is not fatal.
func (h *Host) Start(ctx context.Context) error {
	if h.ctx.Err() != nil {
		return ErrHostClosed
	}
	if h.cfg.DefaultQuery == "" {
		zlog.Info().Msg("no default query configured, waiting for a search")
		return nil
	}

	if _, err := h.Search(ctx, h.cfg.DefaultQuery); err != nil {
		if errors.Is(err, ErrHostClosed) || errors.Is(err, playback.ErrSessionClosed) {
			return err
		}
		zlog.Warn().Msgf("initial search failed: query=%q error=%v", h.cfg.DefaultQuery, err)
	}
	return nil
}

// Search queries the catalog, filters the result and replaces the queue with it.
// On a catalog failure the queue is left untouched.
func (h *Host) Search(ctx context.Context, query string) (*SearchResult, error) {
	if h.ctx.Err() != nil {
		return nil, ErrHostClosed
	}

	searchCtx, cancel := context.WithTimeout(ctx, h.cfg.SearchTimeout)
	defer cancel()

	found, err := h.catalog.Search(searchCtx, query, h.cfg.ResultLimit)
	if err != nil {
		return nil, errors.Wrapf(err, "search %q failed", query)
	}

	tracks, rejected := h.filters.Apply(ctx, found.Tracks)
	if err := h.session.ReplaceQueue(ctx, tracks); err != nil {
		return nil, errors.Wrap(err, "failed to replace queue")
	}

	result := &SearchResult{
		Query:    query,
		Provider: found.DisplayName,
		Tracks:   tracks,
		Rejected: rejected,
	}
	h.mu.Lock()
	h.lastSearch = result
	h.mu.Unlock()

	zlog.Info().Msgf("queue replaced: query=%q provider=%s tracks=%d rejected=%v",
		query, found.DisplayName, len(tracks), rejected)
	return result, nil
}

// LastSearch returns the search that last replaced the queue, or nil.
func (h *Host) LastSearch() *SearchResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSearch
}

// Invoke runs the status surface action with the given name.
func (h *Host) Invoke(ctx context.Context, action string) error {
	for _, a := range h.surface.Status().Actions {
		if a.Name == action {
			return h.session.Dispatch(ctx, playback.Command{Kind: a.Command})
		}
	}
	return errors.Wrapf(ErrUnknownAction, "%q", action)
}

// Done is closed when the host starts closing.
func (h *Host) Done() <-chan struct{} {
	return h.ctx.Done()
}

// Session returns the playback session.
func (h *Host) Session() *playback.Session {
	return h.session
}

// Status returns the current status surface.
func (h *Host) Status() notification.Status {
	return h.surface.Status()
}

// Notifications returns the notification manager.
func (h *Host) Notifications() *notification.Manager {
	return h.notification
}

// pump folds session events into the surface and broadcasts them.
func (h *Host) pump() {
	defer close(h.pumpDone)
	for ev := range h.sub.Events() {
		status, rebuilt := h.surface.Apply(ev)
		if !rebuilt && ev.Type == playback.EventPositionUpdated && !ev.Seeked && h.throttled() {
			continue
		}
		if rebuilt {
			zlog.Debug().Msgf("status rebuilt: event=%s state=%s title=%q", ev.Type, status.State, status.Title)
		}
		h.notification.Broadcast(&notification.Notification{
			Event:   ev,
			Status:  status,
			Rebuilt: rebuilt,
		})
	}
}

func (h *Host) throttled() bool {
	if h.cfg.PositionThrottle <= 0 {
		return false
	}
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()
	if now.Sub(h.lastPos) < h.cfg.PositionThrottle {
		return true
	}
	h.lastPos = now
	return false
}

// Close closes the session, drains the event pump and drops all subscribers.
// It returns the session teardown error. Close is idempotent.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		h.closeErr = h.session.Close()
		<-h.pumpDone
		h.notification.Close()
		zlog.Info().Msgf("host closed: session_id=%s", h.session.ID())
	})
	return h.closeErr
}
