// Command timefusion-server runs the TimeFusion wire server: the
// PostgreSQL-protocol-compatible SQL endpoint in front of the
// transactional columnar OpenTelemetry store.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/apitoolkit/timefusion/internal/catalog"
	"github.com/apitoolkit/timefusion/internal/envconfig"
	"github.com/apitoolkit/timefusion/internal/pgwire"
	"github.com/apitoolkit/timefusion/internal/sqlsession"
	"github.com/apitoolkit/timefusion/internal/txtable"
	"github.com/apitoolkit/timefusion/internal/userdb"
	"github.com/apitoolkit/timefusion/internal/writecoord"
)

var (
	flagAccessKey string
	flagSecretKey string
	flagEndpoint  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("timefusion-server: fatal", "err", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "timefusion-server",
		Short: "Multi-tenant OpenTelemetry logs/spans store, exposed over the Postgres wire protocol",
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newRegisterProjectCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the wire server, registering the default project from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := envconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	base, err := txtable.ParseLocation(cfg.DefaultStorageURI())
	if err != nil {
		return fmt.Errorf("parse storage uri: %w", err)
	}

	cat := catalog.New(base)
	if err := cat.RegisterProject(ctx, catalog.DefaultProject, cfg.DefaultStorageURI(), optional(cfg.AccessKeyID), optional(cfg.SecretAccessKey), nil); err != nil {
		return fmt.Errorf("register default project: %w", err)
	}

	coord := writecoord.New(cat)
	session, err := sqlsession.New(cat, coord)
	if err != nil {
		return fmt.Errorf("build sql session: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.PGWirePort)
	server := pgwire.New(addr, session, newUserVerifier(), os.Getenv("TIMEFUSION_FALLBACK_PASSWORD"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("timefusion-server: starting", "addr", addr, "bucket", cfg.S3Bucket)
	return server.Start(ctx)
}

func newRegisterProjectCmd() *cobra.Command {
	var uri, projectID string
	cmd := &cobra.Command{
		Use:   "register-project",
		Short: "Register (or re-register) a project's table with the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegisterProject(cmd.Context(), projectID, uri)
		},
	}
	cmd.Flags().StringVar(&projectID, "project-id", "", "project id to register")
	cmd.Flags().StringVar(&uri, "uri", "", "storage uri, s3://<bucket>/<prefix>/?endpoint=<endpoint> (defaults to the configured bucket, nested under the project id)")
	cmd.Flags().StringVar(&flagAccessKey, "access-key", "", "access key (optional; without it the S3 client is built with no credentials)")
	cmd.Flags().StringVar(&flagSecretKey, "secret-key", "", "secret key (optional)")
	cmd.Flags().StringVar(&flagEndpoint, "endpoint", "", "endpoint override (optional, parsed from --uri by default)")
	_ = cmd.MarkFlagRequired("project-id")
	return cmd
}

// runRegisterProject registers projectID against uri, or, when uri is
// empty, against the process's configured bucket nested under the
// project id (Catalog.RegisterProject's empty-uri convenience path).
func runRegisterProject(ctx context.Context, projectID, uri string) error {
	cfg, err := envconfig.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	base, err := txtable.ParseLocation(cfg.DefaultStorageURI())
	if err != nil {
		return fmt.Errorf("parse storage uri: %w", err)
	}

	cat := catalog.New(base)
	if err := cat.RegisterProject(ctx, projectID, uri, optional(flagAccessKey), optional(flagSecretKey), optional(flagEndpoint)); err != nil {
		return fmt.Errorf("register project %q: %w", projectID, err)
	}

	slog.Info("timefusion-server: registered project", "project_id", projectID, "uri", uri)
	return nil
}

// newUserVerifier builds a userdb.Store from TIMEFUSION_USER/
// TIMEFUSION_PASSWORD if both are set, or returns a nil interface so the
// server falls back to TIMEFUSION_FALLBACK_PASSWORD alone (and accepts
// any credentials when that is unset too).
func newUserVerifier() pgwire.UserVerifier {
	user := os.Getenv("TIMEFUSION_USER")
	password := os.Getenv("TIMEFUSION_PASSWORD")
	if user == "" || password == "" {
		return nil
	}

	store := userdb.New()
	if err := store.SetPassword(user, password); err != nil {
		slog.Warn("timefusion-server: failed to set up user database, falling back to shared password", "err", err)
		return nil
	}
	return store
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
