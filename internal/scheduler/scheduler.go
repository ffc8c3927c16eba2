// Package scheduler fires digest runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/devops-job-digest/internal/logging"
)

// Job is the work triggered on every tick.
type Job func(ctx context.Context)

// Scheduler wraps robfig/cron. Ticks that arrive while a run is still going are skipped.
type Scheduler struct {
	cron       *cron.Cron
	spec       string
	job        Job
	runOnStart bool
	logger     *zap.Logger
	immediate  sync.WaitGroup
}

// New creates a Scheduler for a standard five-field spec or a descriptor such as "@every 6h".
func New(spec string, job Job, runOnStart bool, logger *zap.Logger) *Scheduler {
	logger = logging.Component(logger, "scheduler")
	cl := cronLogger{sugar: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		spec:       spec,
		job:        job,
		runOnStart: runOnStart,
		logger:     logger,
	}
}

// Start registers the job and starts the cron loop. With runOnStart it also
// fires one run immediately in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	entryID, err := s.cron.AddFunc(s.spec, func() {
		s.job(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	// The wrapped job carries the Recover and SkipIfStillRunning chain, so a
	// tick that lands during the immediate run is skipped.
	wrapped := s.cron.Entry(entryID).WrappedJob

	s.cron.Start()
	s.logger.Info("cron started",
		zap.String("spec", s.spec),
		zap.Time("next_run", s.cron.Entry(entryID).Next),
	)

	if s.runOnStart {
		s.immediate.Add(1)
		go func() {
			defer s.immediate.Done()
			wrapped.Run()
		}()
	}
	return nil
}

// Stop halts scheduling and waits for running jobs, including the immediate
// run, to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	cronDone := s.cron.Stop().Done()
	immediateDone := make(chan struct{})
	go func() {
		s.immediate.Wait()
		close(immediateDone)
	}()

	for _, done := range []<-chan struct{}{cronDone, immediateDone} {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("wait for running job: %w", ctx.Err())
		}
	}
	s.logger.Info("cron stopped")
	return nil
}

type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
