package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/api"
	"github.com/JakeFAU/devops-job-digest/internal/app"
	"github.com/JakeFAU/devops-job-digest/internal/logging"
	"github.com/JakeFAU/devops-job-digest/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run digests on a cron schedule and expose the HTTP trigger",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a)
		},
	}
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config()
	logger := a.Logger()

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	sched := scheduler.New(cfg.Schedule.Cron, func(jobCtx context.Context) {
		_, err := a.Runner().Run(jobCtx)
		switch {
		case errors.Is(err, app.ErrRunInProgress):
			logger.Info("scheduled run skipped, another run is active")
		case err != nil:
			logger.Error("scheduled run failed", zap.Error(err))
		}
	}, cfg.Schedule.RunOnStart, logger)

	apiServer := api.NewServer(ctx, a.Runner(), logging.Component(logger, "api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()
	apiServer.SetReady(true)

	<-ctx.Done()
	apiServer.SetReady(false)
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop cleanly", zap.Error(err))
	}

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		logger.Info("shutdown complete")
		return nil
	}
}
