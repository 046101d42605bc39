package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/cli"
	httpAdapter "github.com/aretw0/canopy/pkg/adapters/http"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Exposes the workspace over a JSON API: tasks, plans, runs and run history,
plus Prometheus metrics on /metrics and the OpenAPI document on /openapi.yaml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		logger, err := cli.CreateLogger(cfg)
		if err != nil {
			return err
		}

		registry := prometheus.NewRegistry()
		metrics := observability.NewMetrics(registry)
		hooks := domain.ChainHooks(observability.LoggingHooks(logger), metrics.Hooks())

		engine, backend, err := cli.CreateEngine(cfg, logger, canopy.WithLifecycleHooks(hooks))
		if err != nil {
			return err
		}
		defer backend.Close()

		handler := httpAdapter.NewHandler(engine,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(registry),
		)

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: handler,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Fprintf(cmd.OutOrStdout(), "Starting Canopy Server on %s\n", srv.Addr)
			fmt.Fprintf(cmd.OutOrStdout(), "Serving workspace '%s' from: %s\n", engine.Name, cfg.Dir)
			serverErrors <- srv.ListenAndServe()
		}()

		sigCtx := cli.NewSignalContext(context.Background())
		defer sigCtx.Cancel()

		// Blocking main and waiting for shutdown.
		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "\nStart shutdown... Signal: %v\n", sigCtx.Signal())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			// Asking listener to shut down and shed load.
			if err := srv.Shutdown(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Canopy Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
