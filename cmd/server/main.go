// Command server runs the heritage gallery API.
//
// @title           Heritage Gallery API
// @version         1.0
// @description     Photo restoration and sci-fi story sessions with a live, merged gallery.
// @BasePath        /api/v1
//
// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the Supabase access token.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"heritage-gallery-backend/internal/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Heritage gallery API server",
		Long: `Heritage gallery API server.

Usage:
  server            Run the HTTP API (same as "server serve")
  server migrate    Manage the Postgres session schema`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// setupLogging reinstalls the default logger at the configured level.
func setupLogging(cfg *config.Config) {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
}
