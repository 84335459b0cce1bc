package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/musy/internal/app/playback"
)

// Client is a PlaybackService client.
type Client struct {
	playAt    *connect.Client[wrapperspb.Int32Value, emptypb.Empty]
	seek      *connect.Client[wrapperspb.Int64Value, emptypb.Empty]
	commands  map[playback.CommandKind]*connect.Client[emptypb.Empty, emptypb.Empty]
	search    *connect.Client[wrapperspb.StringValue, structpb.Struct]
	invoke    *connect.Client[wrapperspb.StringValue, emptypb.Empty]
	getStatus *connect.Client[emptypb.Empty, structpb.Struct]
	subscribe *connect.Client[emptypb.Empty, structpb.Struct]
}

// NewClient creates a client for the service at baseURL (e.g. http://localhost:8080)
// that authenticates every call with token.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithInterceptors(&clientTokenInterceptor{token: token})}, opts...)

	c := &Client{
		playAt:    connect.NewClient[wrapperspb.Int32Value, emptypb.Empty](httpClient, baseURL+PlaybackServicePlayAtProcedure, opts...),
		seek:      connect.NewClient[wrapperspb.Int64Value, emptypb.Empty](httpClient, baseURL+PlaybackServiceSeekProcedure, opts...),
		commands:  make(map[playback.CommandKind]*connect.Client[emptypb.Empty, emptypb.Empty], len(simpleCommands)),
		search:    connect.NewClient[wrapperspb.StringValue, structpb.Struct](httpClient, baseURL+PlaybackServiceSearchProcedure, opts...),
		invoke:    connect.NewClient[wrapperspb.StringValue, emptypb.Empty](httpClient, baseURL+PlaybackServiceInvokeProcedure, opts...),
		getStatus: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+PlaybackServiceGetStatusProcedure, opts...),
		subscribe: connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+PlaybackServiceSubscribeProcedure, opts...),
	}
	for procedure, kind := range simpleCommands {
		c.commands[kind] = connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+procedure, opts...)
	}
	return c
}

// PlayAt plays the track at index.
func (c *Client) PlayAt(ctx context.Context, index int) error {
	_, err := c.playAt.CallUnary(ctx, connect.NewRequest(wrapperspb.Int32(int32(index))))
	return err
}

// Seek moves playback to positionMs.
func (c *Client) Seek(ctx context.Context, positionMs int64) error {
	_, err := c.seek.CallUnary(ctx, connect.NewRequest(wrapperspb.Int64(positionMs)))
	return err
}

// Command issues a command that takes no argument.
func (c *Client) Command(ctx context.Context, kind playback.CommandKind) error {
	client, ok := c.commands[kind]
	if !ok {
		return errors.Newf("command %s takes an argument or is not available remotely", kind)
	}
	_, err := client.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	return err
}

// Search replaces the queue with the result of query.
func (c *Client) Search(ctx context.Context, query string) (*structpb.Struct, error) {
	resp, err := c.search.CallUnary(ctx, connect.NewRequest(wrapperspb.String(query)))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Invoke runs a status surface action.
func (c *Client) Invoke(ctx context.Context, action string) error {
	_, err := c.invoke.CallUnary(ctx, connect.NewRequest(wrapperspb.String(action)))
	return err
}

// Status returns the session snapshot and status surface.
func (c *Client) Status(ctx context.Context) (*structpb.Struct, error) {
	resp, err := c.getStatus.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// Subscribe calls fn for every message of the notification stream until ctx
// ends, the server closes the stream, or fn returns an error.
func (c *Client) Subscribe(ctx context.Context, fn func(*structpb.Struct) error) error {
	stream, err := c.subscribe.CallServerStream(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return err
	}
	defer stream.Close()

	for stream.Receive() {
		if err := fn(stream.Msg()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
