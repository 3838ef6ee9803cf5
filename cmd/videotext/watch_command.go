package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"videotext/internal/batch"
	"videotext/internal/logging"
	"videotext/internal/metrics"
	"videotext/internal/scheduler"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var (
		interval time.Duration
		maxRuns  int
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Process pending records on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			store, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open records: %w", err)
			}
			defer store.Close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			var m *metrics.Metrics
			if cfg.Metrics.Enabled {
				m = metrics.New()
				srv, err := metrics.Listen(cfg.Metrics.Bind, m, logger)
				if err != nil {
					return err
				}
				defer func() {
					shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
					defer stop()
					_ = srv.Shutdown(shutdownCtx)
				}()
				fmt.Fprintf(cmd.OutOrStdout(), "Metrics on http://%s/metrics\n", srv.Addr())
			}

			job, err := batch.NewJob(cfg, store, batch.NewRemoteClient(cfg), m, logger)
			if err != nil {
				return err
			}

			every := interval
			if every <= 0 {
				every = cfg.ScheduleInterval()
			}
			var runs atomic.Int32
			limitReached := make(chan struct{})
			runner := scheduler.RunnerFunc(func(ctx context.Context, runID string) error {
				err := job.RunOnce(ctx, runID)
				if maxRuns > 0 && int(runs.Add(1)) == maxRuns {
					close(limitReached)
				}
				return err
			})

			sched := scheduler.New(runner, every, cfg.LockPath(), logger)
			if err := sched.Start(signalCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching for pending records every %s\n", every)

			select {
			case <-signalCtx.Done():
				fmt.Fprintln(cmd.OutOrStdout(), "Interrupted; stopping after the current poll round")
			case <-limitReached:
			}
			sched.Stop()
			st := sched.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "Ran %d batches\n", st.Runs)
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between batches (defaults to schedule.interval)")
	cmd.Flags().IntVar(&maxRuns, "max-runs", 0, "Exit after this many batches")
	return cmd
}
