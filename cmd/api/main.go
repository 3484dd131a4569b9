package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blast-job-service/internal/app"
	"blast-job-service/internal/config"
	"blast-job-service/internal/logging"
	httptransport "blast-job-service/internal/transport/http"
)

// @title BLAST job service
// @version 1.0
// @description Submits sequence searches to a batch scheduler and serves their results.
// @BasePath /
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init")
	}
	defer a.Close()

	// local scheduler: jobs run inside this process; redis jobs run in cmd/worker
	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		if cfg.Scheduler == config.SchedulerLocal {
			a.RunWorkers(ctx)
		}
	}()

	handler := httptransport.NewHandler(a.Service, logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httptransport.Routes(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("addr", cfg.HTTPAddr).
			Str("scheduler", cfg.Scheduler).
			Str("work_dir", cfg.WorkDir).
			Str("db_folder", cfg.DBFolder).
			Str("postgres_dsn", config.RedactDSN(cfg.PostgresDSN)).
			Msg("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	<-workersDone
	logger.Info().Msg("api stopped")
}
