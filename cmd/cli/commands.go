package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/cruise-docsync/internal/bulkupload"
	"github.com/and161185/cruise-docsync/internal/config"
	"github.com/and161185/cruise-docsync/internal/credential"
	"github.com/and161185/cruise-docsync/internal/docstore"
	"github.com/and161185/cruise-docsync/internal/migrate"
	"github.com/and161185/cruise-docsync/internal/model"
	"github.com/and161185/cruise-docsync/internal/remote"
	"github.com/and161185/cruise-docsync/internal/repository/postgres"
	"github.com/and161185/cruise-docsync/internal/service"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "docsync %s (%s)\n", version, buildDate)
		},
	}
}

func syncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <trip-id>",
		Short: "Sync one trip's traveler spreadsheet in-process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tripID, err := parseTripID(args[0])
			if err != nil {
				return err
			}
			if err := a.cfg.Validate(config.NeedDatabase | config.NeedRemote); err != nil {
				return err
			}
			ctx := cmd.Context()

			client, err := a.remoteClient(ctx)
			if err != nil {
				return err
			}
			db, err := postgres.New(ctx, a.cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			folders := docstore.NewProvisioner(client.Drive, a.cfg.SharedDriveID, a.cfg.FolderCacheTTL, a.log)
			svc := service.NewSyncService(postgres.NewTripRepo(db), folders, client.Drive, client.Sheets, a.cfg.SheetsRoot(), a.log)

			res, err := svc.SyncTrip(ctx, tripID)
			if err != nil {
				return err
			}
			printJSON(res)
			return nil
		},
	}
}

func triggerCmd(a *app) *cobra.Command {
	var (
		token   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "trigger <trip-id>",
		Short: "Ask docsyncd to sync one trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tripID, err := parseTripID(args[0])
			if err != nil {
				return err
			}
			if token == "" {
				if token, err = loadToken(); err != nil {
					return err
				}
			}

			cc, cli, err := dial(a.addr, a.caPath, a.insecure, token)
			if err != nil {
				return err
			}
			defer cc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := cli.SyncTrip(ctx, tripID)
			if err != nil {
				return err
			}
			printJSON(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "operator token (default: saved token)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "RPC timeout")
	return cmd
}

type migrateFlags struct {
	opts       bulkupload.Options
	uploadsDir string
}

func (f *migrateFlags) bind(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.opts.DryRun, "dry-run", false, "record what would be uploaded, change nothing")
	cmd.Flags().BoolVar(&f.opts.DeleteLocal, "delete-local", false, "delete each local file after its upload")
	cmd.Flags().StringVar(&f.opts.ReportDir, "report-dir", "", "report directory (default DOCSYNC_REPORT_DIR)")
	cmd.Flags().StringVar(&f.uploadsDir, "uploads-dir", "", "local uploads root (default DOCSYNC_UPLOADS_DIR)")
}

func (f *migrateFlags) resolve(cfg *config.Config) {
	if f.opts.ReportDir == "" {
		f.opts.ReportDir = cfg.ReportDir
	}
	if f.uploadsDir == "" {
		f.uploadsDir = cfg.UploadsDir
	}
}

// summarize prints totals and turns failed items into a non-zero exit.
func summarize(a *app, rep *model.MigrationReport, path string, err error) error {
	if err != nil {
		a.log.Error("write report", zap.Error(err))
	}
	printJSON(map[string]any{"run_id": rep.RunID, "report": path, "totals": rep.Totals})
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if rep.Totals.Errors > 0 {
		return fmt.Errorf("%d item(s) failed, see %s", rep.Totals.Errors, path)
	}
	return nil
}

func migrateFilesCmd(a *app) *cobra.Command {
	var (
		f          migrateFlags
		visibility string
	)
	cmd := &cobra.Command{
		Use:   "migrate-files",
		Short: "Upload local upload folders into their Drive folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.resolve(a.cfg)
			vis, err := docstore.ParseVisibility(visibility)
			if err != nil {
				return err
			}
			if err := a.cfg.Validate(config.NeedRemote); err != nil {
				return err
			}
			client, err := a.remoteClient(cmd.Context())
			if err != nil {
				return err
			}

			entries := bulkupload.DefaultEntries(f.uploadsDir)
			for i := range entries {
				entries[i].Visibility = vis
			}

			r := bulkupload.NewRunner(docstore.NewUploader(client.Drive, a.log), a.cfg.Folders, f.opts, a.log)
			rep, path, err := r.Run(cmd.Context(), entries)
			return summarize(a, rep, path, err)
		},
	}
	f.bind(cmd)
	cmd.Flags().StringVar(&visibility, "visibility", docstore.LinkShared.String(), "private, link-shared or public")
	return cmd
}

func migrateDBCmd(a *app) *cobra.Command {
	var f migrateFlags
	cmd := &cobra.Command{
		Use:   "migrate-db",
		Short: "Upload files referenced by database columns and repoint the rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.resolve(a.cfg)
			if err := a.cfg.Validate(config.NeedDatabase | config.NeedRemote); err != nil {
				return err
			}
			ctx := cmd.Context()

			client, err := a.remoteClient(ctx)
			if err != nil {
				return err
			}
			db, err := postgres.New(ctx, a.cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			r := bulkupload.NewDBRunner(postgres.NewFileRefRepo(db), docstore.NewUploader(client.Drive, a.log),
				a.cfg.Folders, f.uploadsDir, f.opts, a.log)
			rep, path, err := r.Run(ctx, bulkupload.DefaultFields)
			return summarize(a, rep, path, err)
		},
	}
	f.bind(cmd)
	return cmd
}

func schemaCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Database schema migrations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.cfg.Validate(config.NeedDatabase); err != nil {
					return err
				}
				return migrate.Up(cmd.Context(), a.cfg.DatabaseDSN)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := a.cfg.Validate(config.NeedDatabase); err != nil {
					return err
				}
				v, err := migrate.Status(cmd.Context(), a.cfg.DatabaseDSN)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			},
		},
	)
	return cmd
}

func checkCredentialsCmd(a *app) *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "check-credentials",
		Short: "Resolve the service account and fetch a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred, err := credential.Resolve(a.cfg.Credentials)
			if err != nil {
				return err
			}
			out := map[string]any{
				"principal":        cred.PrincipalID,
				"principal_source": cred.PrincipalSource,
				"key_source":       cred.KeySource,
				"verified":         false,
			}
			client, err := remote.NewFactory(a.cfg.Scopes, a.cfg.SharedDriveID, a.log).New(cmd.Context(), cred)
			if err != nil {
				return err
			}
			if !offline {
				if err := client.Verify(cmd.Context()); err != nil {
					return err
				}
				out["verified"] = true
			}
			printJSON(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "parse the key but skip the token request")
	return cmd
}

func issueTokenCmd(a *app) *cobra.Command {
	var (
		operator string
		ttl      time.Duration
		show     bool
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Sign an operator token with DOCSYNC_JWT_KEY and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(config.NeedServer); err != nil {
				return err
			}
			tok, err := service.NewTokenService([]byte(a.cfg.JWTKey), ttl).Issue(operator)
			if err != nil {
				return err
			}
			if err := saveToken(tokenFile{AccessToken: tok.AccessToken, Operator: tok.Operator, ExpiresAt: tok.ExpiresAt}); err != nil {
				return err
			}
			if show {
				fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved to %s, expires %s\n", tokenPath(), tok.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&operator, "operator", "", "operator name (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&show, "print", false, "print the token instead of its location")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
