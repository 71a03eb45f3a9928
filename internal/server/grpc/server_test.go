package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/model"
	"github.com/and161185/cruise-docsync/internal/service"
)

type fakeSync struct {
	err  error
	last int64
}

func (f *fakeSync) SyncTrip(_ context.Context, tripID int64) (model.SyncResult, error) {
	f.last = tripID
	if f.err != nil {
		return model.SyncResult{}, f.err
	}
	return model.SyncResult{TripID: tripID, SpreadsheetID: "s1", URL: "https://docs.google.com/spreadsheets/d/s1/edit", Rows: 3, Created: true}, nil
}

const bufSize = 1 << 20

func startBufGRPC(t *testing.T, sync service.SyncService, tokens service.TokenService) *grpc.ClientConn {
	t.Helper()
	log := zaptest.NewLogger(t)
	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log), AuthUnary(tokens)))
	Register(gs, New(sync, log))
	go func() { _ = gs.Serve(lis) }()

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = cc.Close(); gs.Stop(); _ = lis.Close() })
	return cc
}

func TestSyncTrip_EndToEnd(t *testing.T) {
	t.Parallel()

	tokens := service.NewTokenService([]byte("secret"), time.Hour)
	tok, _ := tokens.Issue("ops")
	fs := &fakeSync{}
	cc := startBufGRPC(t, fs, tokens)

	res, err := NewClient(cc, tok.AccessToken).SyncTrip(context.Background(), 42)
	if err != nil {
		t.Fatalf("SyncTrip: %v", err)
	}
	if fs.last != 42 || res.TripID != 42 || res.SpreadsheetID != "s1" || res.Rows != 3 || !res.Created {
		t.Fatalf("bad result %+v (last=%d)", res, fs.last)
	}
}

func TestSyncTrip_Unauthenticated(t *testing.T) {
	t.Parallel()

	tokens := service.NewTokenService([]byte("secret"), time.Hour)
	cc := startBufGRPC(t, &fakeSync{}, tokens)

	_, err := NewClient(cc, "").SyncTrip(context.Background(), 1)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", err)
	}

	foreign, _ := service.NewTokenService([]byte("other"), time.Hour).Issue("x")
	_, err = NewClient(cc, foreign.AccessToken).SyncTrip(context.Background(), 1)
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated for foreign token, got %v", err)
	}
}

func TestSyncTrip_InvalidArgument(t *testing.T) {
	t.Parallel()

	tokens := service.NewTokenService([]byte("secret"), time.Hour)
	tok, _ := tokens.Issue("ops")
	cc := startBufGRPC(t, &fakeSync{}, tokens)

	_, err := NewClient(cc, tok.AccessToken).SyncTrip(context.Background(), 0)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestSyncTrip_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("trip 1: %w", errs.ErrNotFound), codes.NotFound},
		{&errs.NotFoundError{Kind: "spreadsheet", ID: "s"}, codes.NotFound},
		{&errs.AuthenticationError{Stage: "token", Err: errors.New("invalid_grant")}, codes.FailedPrecondition},
		{&errs.CredentialFormatError{Source: "GOOGLE_PRIVATE_KEY", Missing: "END"}, codes.FailedPrecondition},
		{&errs.ConfigurationError{Key: "GOOGLE_CLIENT_EMAIL"}, codes.FailedPrecondition},
		{&errs.UploadError{Op: "write values", Err: errors.New("500")}, codes.Internal},
		{errs.ErrUnauthorized, codes.Unauthenticated},
	}

	tokens := service.NewTokenService([]byte("secret"), time.Hour)
	tok, _ := tokens.Issue("ops")
	fs := &fakeSync{}
	cc := startBufGRPC(t, fs, tokens)
	client := NewClient(cc, tok.AccessToken)

	for _, tt := range tests {
		fs.err = tt.err
		_, err := client.SyncTrip(context.Background(), 1)
		if got := status.Code(err); got != tt.want {
			t.Fatalf("%T: got %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestSyncTrip_DirectCallWithoutOperator(t *testing.T) {
	t.Parallel()

	s := New(&fakeSync{}, nil)
	if _, err := s.SyncTrip(context.Background(), nil); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", err)
	}
}
