// Package main is the elibrary entry point.
//
// The binary carries a few subcommands; running it bare is the same as
// `elibrary serve`:
//
//	elibrary serve          run the HTTP API
//	elibrary migrate        bring the schema up to date and exit
//	elibrary create-admin   add an administrator account
//	elibrary maintenance    purge expired revocations, mark overdue loans
//
// main stays thin: load config, build a logger, hand off to a package.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sakif/elibrary/internal/config"
	"github.com/sakif/elibrary/internal/logger"
	"github.com/sakif/elibrary/internal/repository/sqldb"
	"github.com/sakif/elibrary/internal/server"
	"github.com/sakif/elibrary/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "elibrary",
		Short:         "Library management REST backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				fmt.Fprintln(os.Stderr, "elibrary:", err)
				return err
			}
			return nil
		},
		RunE: a.run(func(*cobra.Command) error { return a.serve() }),
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "dotenv file to read (default .env when present)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE:  a.run(func(*cobra.Command) error { return a.serve() }),
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE:  a.run(func(*cobra.Command) error { return a.migrate() }),
		},
		&cobra.Command{
			Use:   "maintenance",
			Short: "Purge expired token revocations and mark overdue loans",
			RunE:  a.run(func(cmd *cobra.Command) error { return a.maintenance(cmd.Context()) }),
		},
		newCreateAdminCommand(a),
	)
	return root
}

// run adapts fn to a cobra RunE and logs its error once through the
// structured logger. SilenceErrors keeps cobra from printing it again.
func (a *app) run(fn func(cmd *cobra.Command) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		err := fn(cmd)
		if err != nil {
			a.logger.Error("command failed", slog.String("command", cmd.Name()), slog.Any("error", err))
		}
		return err
	}
}

// load reads configuration and builds the logger.
func (a *app) load() error {
	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = log
	return nil
}

func (a *app) serve() error {
	db, err := sqldb.Open(context.Background(), a.cfg.DBDriver, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}

	srv, err := server.New(a.cfg, db, a.logger)
	if err != nil {
		db.Close()
		return err
	}
	return srv.Start()
}

func (a *app) migrate() error {
	version, err := sqldb.Migrate(a.cfg.DBDriver, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.logger.Info("database migrated",
		slog.String("driver", a.cfg.DBDriver),
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

func (a *app) maintenance(ctx context.Context) error {
	db, err := sqldb.Open(ctx, a.cfg.DBDriver, a.cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = service.NewMaintenanceService(db, db, a.logger).Run(ctx)
	return err
}
