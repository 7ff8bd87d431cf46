package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/lottoscan/internal/events"
	"github.com/aristath/lottoscan/internal/server"
	"github.com/aristath/lottoscan/internal/work"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		timeout    int
		statusPort int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Scan every enabled analysis, resuming from the last checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env, err := setup(ctx)
			if err != nil {
				return err
			}
			defer env.close()

			if cmd.Flags().Changed("timeout") {
				env.cfg.Timeout = time.Duration(timeout) * time.Second
			}
			if cmd.Flags().Changed("status-port") {
				env.cfg.StatusPort = statusPort
			}
			if env.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithDeadline(ctx, start.Add(env.cfg.Timeout))
				defer cancel()
				env.log.Info().Dur("timeout", env.cfg.Timeout).Msg("Run deadline set")
			}

			return analyze(ctx, env)
		},
	}

	cmd.Flags().IntVar(&timeout, "timeout", 0, "stop after N seconds from start (overrides TIMEOUT)")
	cmd.Flags().IntVar(&statusPort, "status-port", 0, "serve the status API on this port (overrides STATUS_PORT)")
	return cmd
}

func analyze(ctx context.Context, env *environment) error {
	log := env.log
	bus := events.NewBus(log)
	registry := work.NewRegistry()

	deps := work.AnalysisDeps{
		Repository: env.store,
		WorkerID:   env.cfg.WorkerID,
		Emitter:    bus,
		Now:        time.Now,
		Log:        log,
	}

	jobs := make([]*work.Job, 0, len(env.analyses))
	for _, a := range env.analyses {
		job, err := work.BuildJob(a, deps)
		if err != nil {
			return err
		}
		jobs = append(jobs, job)
	}

	if env.cfg.StatusPort > 0 {
		srvCfg := server.Config{
			Log:      log,
			Port:     env.cfg.StatusPort,
			Version:  version,
			Registry: registry,
			EventBus: bus,
		}
		if hc, ok := env.store.(server.HealthChecker); ok {
			srvCfg.Storage = hc
		}
		srv := server.New(srvCfg)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}
		}()
	}

	log.Info().Int("analyses", len(jobs)).Int("max_parallel", env.cfg.MaxParallel).Msg("Starting analyses")
	runner := work.NewRunner(registry, env.cfg.MaxParallel, log)
	if err := runner.Run(ctx, jobs); err != nil {
		return fmt.Errorf("analyses failed: %w", err)
	}

	for _, job := range jobs {
		info := job.Info()
		log.Info().
			Str("analysis", info.Name).
			Str("status", string(info.Status)).
			Str("processed", info.Summary.Processed.String()).
			Str("remaining", info.Summary.Remaining.String()).
			Msg("Analysis finished")
	}
	return nil
}
