package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aretw0/wayfarer/internal/cli"
	httpAdapter "github.com/aretw0/wayfarer/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Exposes turns, routing, sessions and metrics as a JSON API over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, cfg, logger, err := newRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.Engine.Close()

		addr := cfg.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}

		handler := httpAdapter.NewHandler(rt.Engine,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetricsHandler(rt.Metrics.Handler()),
		)
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("starting server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		select {
		case err := <-serverErrors:
			return err
		case <-ctx.Done():
			logger.Info("shutting down", "signal", ctx.Signal())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				return srv.Close()
			}
			if err := <-serverErrors; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			logger.Info("server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on (overrides http.addr)")
	serveCmd.Flags().Bool("offline", false, "Answer from fallback tables without a model backend")
}
