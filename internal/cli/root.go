// Package cli provides the blastctl operator command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"blast-job-service/internal/app"
	"blast-job-service/internal/config"
	"blast-job-service/internal/logging"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	verbose bool

	cfg config.Config
	svc *app.App

	stopWorkers func()
)

var rootCmd = &cobra.Command{
	Use:   "blastctl",
	Short: "Submit and inspect BLAST jobs",
	Long: `blastctl drives the BLAST job service from the shell, using the same
environment (WORK_DIR, DB_FOLDER, SCHEDULER, ...) as the api and worker.

With SCHEDULER=local, jobs run inside blastctl itself, so submit always waits.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		cfg = config.Load()
		level := cfg.LogLevel
		if !verbose {
			level = zerolog.LevelWarnValue
		}
		logger := logging.NewWithWriter(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}, level)

		var err error
		svc, err = app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}

		if cfg.Scheduler == config.SchedulerLocal {
			ctx, cancel := context.WithCancel(cmd.Context())
			done := make(chan struct{})
			go func() {
				defer close(done)
				svc.RunWorkers(ctx)
			}()
			stopWorkers = func() {
				cancel()
				<-done
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func shutdown() {
	if stopWorkers != nil {
		stopWorkers()
		stopWorkers = nil
	}
	if svc != nil {
		svc.Close()
		svc = nil
	}
}

// Execute runs the command line with args, cancelling on SIGINT/SIGTERM.
func Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// PersistentPostRun is skipped when RunE fails.
	defer shutdown()

	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service activity to stderr")

	rootCmd.AddCommand(databasesCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(pollCmd)
}
