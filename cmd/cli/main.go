// Command docsync is the operator CLI: local syncs, RPC triggers, bulk file
// migration and credential checks.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"

	"github.com/and161185/cruise-docsync/internal/config"
	"github.com/and161185/cruise-docsync/internal/credential"
	"github.com/and161185/cruise-docsync/internal/remote"
	grpcserver "github.com/and161185/cruise-docsync/internal/server/grpc"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	Operator    string    `json:"operator,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "docsync")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "docsync")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (run issue-token first)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct{ token string }

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return true }

func loadTLS(caPath string, insecure bool) (credentials.TransportCredentials, error) {
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(addr, caPath string, insecure bool, bearer string) (*grpc.ClientConn, *grpcserver.Client, error) {
	creds, err := loadTLS(caPath, insecure)
	if err != nil {
		return nil, nil, err
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer}))
	}
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, grpcserver.NewClient(cc, ""), nil
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func parseTripID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad trip id %q", s)
	}
	return id, nil
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// ---- app ----

// app holds global flags and what PersistentPreRunE builds from them.
type app struct {
	cfgFile  string
	debug    bool
	addr     string
	caPath   string
	insecure bool

	cfg *config.Config
	log *zap.Logger
}

func (a *app) init() error {
	v := viper.New()
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	a.cfg = config.Load(v, nil)

	var err error
	if a.debug {
		a.log, err = zap.NewDevelopment()
	} else {
		a.log, err = zap.NewProduction()
	}
	return err
}

// remoteClient resolves the credential and checks it against the backend.
func (a *app) remoteClient(ctx context.Context) (*remote.Client, error) {
	cred, err := credential.Resolve(a.cfg.Credentials)
	if err != nil {
		return nil, err
	}
	c, err := remote.NewFactory(a.cfg.Scopes, a.cfg.SharedDriveID, a.log).New(ctx, cred)
	if err != nil {
		return nil, err
	}
	if err := c.Verify(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

var (
	version   = "dev"
	buildDate = "unknown"
)

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "docsync",
		Short: "Cruise document store sync",
		Long: `docsync syncs trip traveler lists into Google Sheets and migrates local
uploads into Google Drive.

Configuration comes from the environment (or --config):
  GOOGLE_PRIVATE_KEY / GOOGLE_CLIENT_EMAIL   service account (or GOOGLE_SERVICE_ACCOUNT_JSON)
  DATABASE_DSN                               PostgreSQL DSN
  DRIVE_SHARED_DRIVE_ID                      shared drive, when used
  DRIVE_FOLDER_SHEETS                        parent folder of per-trip folders
  DRIVE_FOLDER_<CATEGORY>                    target folder per upload category
  DOCSYNC_JWT_KEY                            operator token signing key`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (yaml, json, toml)")
	pf.BoolVar(&a.debug, "debug", false, "development logging")
	pf.StringVar(&a.addr, "addr", "localhost:8443", "docsyncd address")
	pf.StringVar(&a.caPath, "cacert", "", "CA cert (PEM)")
	pf.BoolVar(&a.insecure, "insecure", false, "skip cert verify (dev)")

	root.AddCommand(
		versionCmd(),
		syncCmd(a),
		triggerCmd(a),
		migrateFilesCmd(a),
		migrateDBCmd(a),
		schemaCmd(a),
		checkCredentialsCmd(a),
		issueTokenCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		fail(err)
	}
}
