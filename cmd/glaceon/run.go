package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the auto-upload daemon",
	Long: `Run the auto-upload daemon in the foreground. It watches the monitored
folders, serves the admin control channel and, when status.port is set, the
status endpoints. SIGINT or SIGTERM stops it.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Logging)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApplication(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown(context.Background())
		return fmt.Errorf("starting application: %w", err)
	}
	logger.Infof("✅ Glaceon %s running (admin on 127.0.0.1:%d)", version, cfg.Admin.Port)

	<-ctx.Done()
	logger.Info("🛑 Received shutdown signal...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Monitor.StopTimeout)
	defer cancel()
	return app.Shutdown(shutdownCtx)
}
