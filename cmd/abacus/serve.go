package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/abacus/asset-engine/api"
)

const shutdownTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the asset register over HTTP.

On SIGINT/SIGTERM the server stops accepting connections, waits up to 30s
for active requests, stops the schedule auditor and closes the database.`,
		RunE: runServe,
	}

	cmd.Flags().String("address", "", "listen address (default 127.0.0.1)")
	cmd.Flags().Int("port", 0, "listen port (default 8080)")
	_ = v.BindPFlag("server.address", cmd.Flags().Lookup("address"))
	_ = v.BindPFlag("server.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewHandler(a.registry, a.log)
	auditor := api.NewScheduleAuditor(a.registry, a.cfg.Audit.Interval, a.log)
	auditor.Repair = a.cfg.Audit.Repair
	if a.cfg.Audit.Interval > 0 {
		handler.Auditor = auditor
	}

	server := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           api.NewRouter(handler, a.cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	auditor.Start()
	defer auditor.Stop()

	select {
	case err := <-errCh:
		return err
	case <-cmd.Context().Done():
	}

	a.log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	a.log.Info("server stopped")
	return nil
}
