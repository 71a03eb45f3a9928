package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/cruise-docsync/internal/convert"
	"github.com/and161185/cruise-docsync/internal/model"
)

// Client calls DocSync over an existing connection.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

// NewClient wraps cc. token, when set, is sent as a bearer token on every call.
func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

// SyncTrip triggers a sync and decodes the result.
func (c *Client) SyncTrip(ctx context.Context, tripID int64, opts ...grpc.CallOption) (model.SyncResult, error) {
	if c.token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SyncTripMethod, convert.ToProtoTripID(tripID), out, opts...); err != nil {
		return model.SyncResult{}, err
	}
	return convert.FromProtoSyncResult(out)
}
