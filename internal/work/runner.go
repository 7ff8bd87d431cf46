package work

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/lottoscan/internal/scan"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Runner executes jobs under a counting admission gate.
type Runner struct {
	registry *Registry
	sem      *semaphore.Weighted
	log      zerolog.Logger
	now      func() time.Time
}

// NewRunner creates a runner allowing maxParallel jobs in flight.
func NewRunner(registry *Registry, maxParallel int, log zerolog.Logger) *Runner {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Runner{
		registry: registry,
		sem:      semaphore.NewWeighted(int64(maxParallel)),
		log:      log.With().Str("component", "runner").Logger(),
		now:      time.Now,
	}
}

// Run registers and executes jobs in order, returning once all of them have
// finished. Interrupted jobs are not errors; the errors of failed jobs are
// joined.
func (r *Runner) Run(ctx context.Context, jobs []*Job) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, job := range jobs {
		r.registry.Register(job)
	}

	for i, job := range jobs {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			for _, skipped := range jobs[i:] {
				skipped.finish(StatusInterrupted, nil, r.now())
			}
			r.log.Warn().Int("skipped", len(jobs)-i).Msg("Stopped before admitting every analysis")
			break
		}

		if job.Async {
			job := job
			g.Go(func() error {
				defer r.sem.Release(1)
				record(r.execute(ctx, job))
				return nil
			})
			continue
		}

		record(r.execute(ctx, job))
		r.sem.Release(1)
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// execute runs one job and records its outcome.
func (r *Runner) execute(ctx context.Context, job *Job) error {
	started := r.now()
	job.start(started)
	job.progress.emitStarted()
	r.log.Info().Str("analysis", job.Name).Str("run_id", job.ID).Bool("async", job.Async).Msg("Analysis started")

	summary, err := job.Scan.Run(ctx)
	duration := r.now().Sub(started)

	switch {
	case err == nil:
		job.finish(StatusCompleted, nil, r.now())
		job.progress.emitCompleted(summary, duration)
		r.log.Info().
			Str("analysis", job.Name).
			Dur("duration", duration).
			Bool("completed", summary.Completed).
			Msg("Analysis finished")
		return nil

	case errors.Is(err, scan.ErrFinalCheckpoint):
		// progress since the last good checkpoint is lost

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		job.finish(StatusInterrupted, nil, r.now())
		job.progress.emitCompleted(summary, duration)
		r.log.Info().
			Str("analysis", job.Name).
			Str("processed", summary.Processed.String()).
			Msg("Analysis interrupted, progress saved")
		return nil
	}

	job.finish(StatusFailed, err, r.now())
	job.progress.emitFailed(err, duration)
	r.log.Error().Err(err).Str("analysis", job.Name).Msg("Analysis failed")
	return fmt.Errorf("analysis %s: %w", job.Name, err)
}
