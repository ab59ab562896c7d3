package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conorfennell/courseboard/internal/config"
	"github.com/conorfennell/courseboard/internal/storage"
)

// app carries what every subcommand needs once flags have been parsed.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  *storage.DB
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "courseboard",
		Short:         "A small course catalog backed by SQLite",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsSetup(cmd) {
				return nil
			}
			return a.setup(cmd)
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newServeCmd(a),
		newImportCmd(a),
		newCoursesCmd(a),
	)
	return root, a
}

// skipsSetup reports whether cmd is cobra's help or shell completion
// machinery, which must not touch the database.
func skipsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
			return true
		}
	}
	return false
}

// setup loads the configuration and opens the store. Failing to open the
// store is fatal for every command.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.Log.NewLogger()
	slog.SetDefault(a.log)

	db, err := storage.Open(cmd.Context(), cfg.Storage.DSN, a.log)
	if err != nil {
		a.log.Error("Failed to open database", "dsn", cfg.Storage.DSN, "error", err)
		return err
	}
	a.db = db
	a.log.Debug("Database opened successfully", "dsn", cfg.Storage.DSN)
	return nil
}

// close releases the store. It is safe to call when setup never ran.
func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
		return err
	}
	return nil
}
