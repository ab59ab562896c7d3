package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/conorfennell/courseboard/internal/catalog"
	"github.com/conorfennell/courseboard/internal/importer"
	"github.com/conorfennell/courseboard/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the course form, list and JSON API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	policy := catalog.ClearDraftOnFailure
	if a.cfg.Form.KeepDraftOnFailure {
		policy = catalog.KeepDraftOnFailure
	}
	ctrl := catalog.NewController(a.db, policy, a.log)
	ctrl.Load(ctx)

	imp := importer.New(a.db, a.cfg.Import.ReposDir, a.log)
	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: web.NewServer(a.db, ctrl, imp, a.cfg.Import.Sources, a.log),
	}

	errc := make(chan error, 1)
	go func() {
		a.log.Info("Starting server", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Server failed", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Graceful shutdown failed", "error", err)
		return err
	}
	return nil
}
