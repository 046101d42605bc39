package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/cli"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/adapters/mcp"
	"github.com/aretw0/canopy/pkg/observability"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts Canopy as an MCP Server.
This allows AI agents to list, plan and run workspace tasks as tools.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		// Logs always go to Stderr so they never corrupt JSON-RPC on Stdout.
		logger := logging.New(level)
		slog.SetDefault(logger)

		engine, backend, err := cli.CreateEngine(cfg, logger,
			canopy.WithLifecycleHooks(observability.LoggingHooks(logger)))
		if err != nil {
			return err
		}
		defer backend.Close()

		srv := mcp.NewServer(engine)

		switch transport {
		case "stdio":
			log.SetOutput(os.Stderr)
			slog.Info("Starting Canopy MCP Server (Stdio)...")
			return srv.ServeStdio()
		case "sse":
			slog.Info("Starting Canopy MCP Server (SSE)", "port", port)

			// Create a context that cancels on interrupt signal
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := srv.ServeSSE(ctx, port); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			slog.Info("MCP Server stopped gracefully")
			return nil
		default:
			return errors.New("unknown transport " + transport + ", supported: stdio, sse")
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8080, "Port to listen on (only for SSE)")
}
