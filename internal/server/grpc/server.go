// Package grpcserver exposes the DocSync trigger RPC.
package grpcserver

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/and161185/cruise-docsync/internal/convert"
	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/service"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "docsync.v1.DocSync"
	// SyncTripMethod is the full method name of SyncTrip.
	SyncTripMethod = "/" + ServiceName + "/SyncTrip"
)

// DocSyncServer is the server API for the DocSync service.
type DocSyncServer interface {
	SyncTrip(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
}

// ServiceDesc describes DocSync using well-known request and response types,
// so no generated code is needed on either side.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocSyncServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SyncTrip", Handler: syncTripHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docsync/v1/docsync.proto",
}

// Register attaches srv to a gRPC server.
func Register(r grpc.ServiceRegistrar, srv DocSyncServer) {
	r.RegisterService(&ServiceDesc, srv)
}

func syncTripHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DocSyncServer).SyncTrip(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SyncTripMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(DocSyncServer).SyncTrip(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

// Server wires the sync service into gRPC handlers.
type Server struct {
	sync service.SyncService
	log  *zap.Logger
}

var _ DocSyncServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(sync service.SyncService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{sync: sync, log: log}
}

// SyncTrip runs one spreadsheet sync for the requested trip.
func (s *Server) SyncTrip(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	op, ok := OperatorFromCtx(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "no auth")
	}
	tripID, err := convert.FromProtoTripID(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.log.Info("sync requested", zap.String("operator", op), zap.Int64("trip_id", tripID))
	res, err := s.sync.SyncTrip(ctx, tripID)
	if err != nil {
		return nil, statusFor(err)
	}
	return convert.ToProtoSyncResult(res), nil
}

// statusFor maps the error taxonomy onto gRPC codes. Messages carry the
// error text, which never includes key material.
func statusFor(err error) error {
	var (
		authErr *errs.AuthenticationError
		fmtErr  *errs.CredentialFormatError
	)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.As(err, &authErr), errors.As(err, &fmtErr), errors.Is(err, errs.ErrMissingConfig):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, errs.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Errorf(codes.Internal, "sync: %v", err)
	}
}
