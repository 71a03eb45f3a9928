// Command docsyncd serves the DocSync trigger RPC.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/cruise-docsync/internal/config"
	"github.com/and161185/cruise-docsync/internal/credential"
	"github.com/and161185/cruise-docsync/internal/docstore"
	"github.com/and161185/cruise-docsync/internal/migrate"
	"github.com/and161185/cruise-docsync/internal/remote"
	"github.com/and161185/cruise-docsync/internal/repository/postgres"
	grpcserver "github.com/and161185/cruise-docsync/internal/server/grpc"
	"github.com/and161185/cruise-docsync/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, verifies the service account, runs migrations and
// starts a TLS-enabled gRPC server.
func main() {
	cfg := config.Load(viper.New(), nil)

	// Flags override the environment.
	addr := flag.String("addr", cfg.ListenAddr, "listen address")
	dsn := flag.String("dsn", cfg.DatabaseDSN, "PostgreSQL DSN")
	jwtKey := flag.String("jwt-key", cfg.JWTKey, "HS256 signing key for operator tokens")
	certFile := flag.String("tls-cert", cfg.TLSCert, "TLS certificate (PEM)")
	keyFile := flag.String("tls-key", cfg.TLSKey, "TLS private key (PEM)")
	cacheTTL := flag.Duration("folder-cache-ttl", cfg.FolderCacheTTL, "folder id cache TTL (0 disables)")
	dev := flag.Bool("dev", false, "enable server reflection (dev only)")
	flag.Parse()

	cfg.ListenAddr, cfg.DatabaseDSN, cfg.JWTKey = *addr, *dsn, *jwtKey
	cfg.TLSCert, cfg.TLSKey, cfg.FolderCacheTTL = *certFile, *keyFile, *cacheTTL

	logger, _ := zap.NewProduction()
	if *dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ListenAddr),
	)

	if err := cfg.Validate(config.NeedDatabase | config.NeedRemote | config.NeedServer); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		logger.Fatal("failed to load TLS cert/key", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cred, err := credential.Resolve(cfg.Credentials)
	if err != nil {
		logger.Fatal("resolve credentials", zap.Error(err))
	}
	client, err := remote.NewFactory(cfg.Scopes, cfg.SharedDriveID, logger).New(ctx, cred)
	if err != nil {
		logger.Fatal("build remote client", zap.Error(err))
	}
	if err := client.Verify(ctx); err != nil {
		logger.Fatal("verify service account", zap.Error(err))
	}

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	folders := docstore.NewProvisioner(client.Drive, cfg.SharedDriveID, cfg.FolderCacheTTL, logger)
	syncSvc := service.NewSyncService(postgres.NewTripRepo(db), folders, client.Drive, client.Sheets, cfg.SheetsRoot(), logger)
	tokens := service.NewTokenService([]byte(cfg.JWTKey), 0)

	s := grpc.NewServer(
		grpc.Creds(creds),
		grpc.ChainUnaryInterceptor(
			grpcserver.RecoverUnary(logger),
			grpcserver.LoggingUnary(logger),
			grpcserver.AuthUnary(tokens),
		),
	)
	grpcserver.Register(s, grpcserver.New(syncSvc, logger))

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if *dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening (TLS)", zap.String("addr", cfg.ListenAddr))
		errCh <- s.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
