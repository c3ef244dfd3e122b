package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/execbridge/internal/bridge"
)

var (
	portFlag int
	hostFlag string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the execution bridge",
	Long: `Start the bridge HTTP and WebSocket server.

POST a fragment to / to run it; connect to /websocket/ to stream fragments
and receive pushed messages. The server stops on SIGINT or SIGTERM and
removes its scratch directories.

Examples:
  execbridge serve
  execbridge serve --port 2001`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&hostFlag, "host", "", "Host to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if portFlag > 0 {
		cfg.Server.Port = portFlag
	}
	if hostFlag != "" {
		cfg.Server.Host = hostFlag
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return bridge.Run(ctx, cfg, logger)
}
