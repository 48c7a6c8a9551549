package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/ecef-velocity/internal/logging"
	"github.com/signalsfoundry/ecef-velocity/model"
)

// Client calls the velocity service. A request_id on the caller's context is
// forwarded as x-request-id.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// QueryVelocity asks for the speed of track at timestamp. An empty unit
// leaves the choice to the server.
func (c *Client) QueryVelocity(ctx context.Context, track string, timestamp float64, unit string, opts ...grpc.CallOption) (QueryResult, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTrack:     structpb.NewStringValue(track),
		fieldTimestamp: structpb.NewNumberValue(timestamp),
	}}
	if unit != "" {
		in.Fields[fieldUnits] = structpb.NewStringValue(unit)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), QueryVelocityMethod, in, out, opts...); err != nil {
		return QueryResult{}, err
	}
	return QueryResultFromStruct(out)
}

// ListTracks returns the server's loaded tracks.
func (c *Client) ListTracks(ctx context.Context, opts ...grpc.CallOption) ([]model.TrackInfo, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), ListTracksMethod, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return TrackInfosFromStruct(out)
}

// GetProfile returns per-bracket velocities for track.
func (c *Client) GetProfile(ctx context.Context, track string, opts ...grpc.CallOption) (ProfileResult, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldTrack: structpb.NewStringValue(track),
	}}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(outgoing(ctx), GetProfileMethod, in, out, opts...); err != nil {
		return ProfileResult{}, err
	}
	return ProfileResultFromStruct(out)
}

func outgoing(ctx context.Context) context.Context {
	if id := logging.RequestIDFromContext(ctx); id != "" {
		return metadata.AppendToOutgoingContext(ctx, RequestIDMetadataKey, id)
	}
	return ctx
}
