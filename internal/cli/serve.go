package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kolo-save/kolo/internal/savings"
	"github.com/kolo-save/kolo/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. When DAILY_SAVINGS_CRON is set the daily savings batch
also runs in-process on that schedule, in DAILY_SAVINGS_TIMEZONE.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	var scheduler *savings.Scheduler
	if schedule := rt.cfg.DailySavings.Schedule; schedule != "" {
		scheduler, err = savings.NewScheduler(schedule, rt.cfg.DailySavings.Location, rt.components.Processor, 0, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
	}

	srv := server.New(rt.components)
	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()
	logger.Info("server listening", slog.String("address", rt.cfg.Address()), slog.String("env", rt.cfg.AppEnv))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-srvErrCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownPeriod)
	defer cancel()

	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler did not stop in time", slog.Any("error", err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server exited cleanly")
	return nil
}
