package connect

import (
	"context"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/musy/internal/app/catalog"
	"github.com/osa030/musy/internal/app/host"
	"github.com/osa030/musy/internal/app/notification"
	"github.com/osa030/musy/internal/app/playback"
)

// PlaybackService implements the PlaybackService RPC.
type PlaybackService struct {
	host *host.Host
}

// NewPlaybackService creates a new PlaybackService.
func NewPlaybackService(h *host.Host) *PlaybackService {
	return &PlaybackService{host: h}
}

// NewPlaybackServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewPlaybackServiceHandler(svc *PlaybackService, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(PlaybackServicePlayAtProcedure, connect.NewUnaryHandler(PlaybackServicePlayAtProcedure, svc.PlayAt, opts...))
	mux.Handle(PlaybackServiceSeekProcedure, connect.NewUnaryHandler(PlaybackServiceSeekProcedure, svc.Seek, opts...))
	for procedure, kind := range simpleCommands {
		mux.Handle(procedure, connect.NewUnaryHandler(procedure, svc.command(kind), opts...))
	}
	mux.Handle(PlaybackServiceSearchProcedure, connect.NewUnaryHandler(PlaybackServiceSearchProcedure, svc.Search, opts...))
	mux.Handle(PlaybackServiceInvokeProcedure, connect.NewUnaryHandler(PlaybackServiceInvokeProcedure, svc.Invoke, opts...))
	mux.Handle(PlaybackServiceGetStatusProcedure, connect.NewUnaryHandler(PlaybackServiceGetStatusProcedure, svc.GetStatus, opts...))
	mux.Handle(PlaybackServiceSubscribeProcedure, connect.NewServerStreamHandler(PlaybackServiceSubscribeProcedure, svc.Subscribe, opts...))
	return "/" + PlaybackServiceName + "/", mux
}

// PlayAt plays the track at the requested queue index.
func (s *PlaybackService) PlayAt(
	ctx context.Context,
	req *connect.Request[wrapperspb.Int32Value],
) (*connect.Response[emptypb.Empty], error) {
	return s.dispatch(ctx, playback.Command{Kind: playback.CommandPlayAt, Index: int(req.Msg.GetValue())})
}

// Seek moves the playback position to the requested millisecond offset.
func (s *PlaybackService) Seek(
	ctx context.Context,
	req *connect.Request[wrapperspb.Int64Value],
) (*connect.Response[emptypb.Empty], error) {
	return s.dispatch(ctx, playback.Command{Kind: playback.CommandSeek, PositionMs: req.Msg.GetValue()})
}

func (s *PlaybackService) command(kind playback.CommandKind) func(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[emptypb.Empty], error) {
	return func(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[emptypb.Empty], error) {
		return s.dispatch(ctx, playback.Command{Kind: kind})
	}
}

func (s *PlaybackService) dispatch(ctx context.Context, cmd playback.Command) (*connect.Response[emptypb.Empty], error) {
	if err := s.host.Session().Dispatch(ctx, cmd); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// Search replaces the queue with the filtered catalog result for the query.
func (s *PlaybackService) Search(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	query := req.Msg.GetValue()
	if query == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}

	result, err := s.host.Search(ctx, query)
	if err != nil {
		return nil, toConnectError(err)
	}
	msg, err := searchStruct(result)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Invoke runs a status surface action (prev, rewind, play_pause, next).
func (s *PlaybackService) Invoke(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[emptypb.Empty], error) {
	if err := s.host.Invoke(ctx, req.Msg.GetValue()); err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// GetStatus returns the session snapshot and status surface.
func (s *PlaybackService) GetStatus(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[structpb.Struct], error) {
	snap, err := s.host.Session().Snapshot(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	msg, err := snapshotStruct(snap, s.host.Status())
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// Subscribe streams the current status followed by every notification.
func (s *PlaybackService) Subscribe(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
	stream *connect.ServerStream[structpb.Struct],
) error {
	adapter := &notificationStreamAdapter{stream: stream}

	initial, err := initialStateStruct(s.host.Status())
	if err != nil {
		return connect.NewError(connect.CodeInternal, err)
	}
	if err := adapter.send(initial); err != nil {
		return err
	}

	notifManager := s.host.Notifications()
	subscriptionID := notifManager.Subscribe(adapter)
	zlog.Debug().Msgf("subscriber connected: subscription=%s", subscriptionID)

	// Wait for context cancellation or host shutdown
	select {
	case <-ctx.Done():
	case <-s.host.Done():
	}

	notifManager.Unsubscribe(subscriptionID)
	// Waits out a timed-out broadcast still writing before the handler returns
	adapter.close()
	zlog.Debug().Msgf("subscriber disconnected: subscription=%s", subscriptionID)
	return nil
}

var errStreamClosed = errors.New("notification stream closed")

// structSender is satisfied by connect.ServerStream.
type structSender interface {
	Send(*structpb.Struct) error
}

// notificationStreamAdapter adapts connect.ServerStream to notification.Stream.
// Sends are serialized because a timed-out broadcast may still be writing.
// No send reaches the stream once close has returned.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream structSender
	closed bool
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	msg, err := notificationStruct(n)
	if err != nil {
		return err
	}
	return a.send(msg)
}

func (a *notificationStreamAdapter) send(msg *structpb.Struct) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errStreamClosed
	}
	return a.stream.Send(msg)
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
}

// toConnectError maps application errors to connect codes.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, playback.ErrSessionClosed), errors.Is(err, host.ErrHostClosed):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, host.ErrUnknownAction):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, catalog.ErrNoResults):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
