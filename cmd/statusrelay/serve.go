package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bissquit/statusrelay/internal/app"
	"github.com/bissquit/statusrelay/internal/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the HTTP API, the websocket endpoint and the metrics server.

The server runs until interrupted (Ctrl+C) or it receives SIGTERM. Open
websocket connections are closed and in-flight requests are drained for
up to 10 seconds.

Example:
  statusrelay serve
  statusrelay serve -c /etc/statusrelay/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file")
}

func runServe(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- application.Run()
	}()

	select {
	case err := <-errChan:
		shutdown(application)
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	if err := shutdown(application); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func shutdown(application *app.App) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
