package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"news_portal/internal/domain"
	"news_portal/internal/metrics"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ExecutionRecorder persists the history of job runs.
type ExecutionRecorder interface {
	Record(ctx context.Context, exec *domain.JobExecution) error
}

type entry struct {
	spec string
	job  Job
}

type Scheduler struct {
	cron     *cron.Cron
	entries  []entry
	recorder ExecutionRecorder
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewScheduler(loc *time.Location, recorder ExecutionRecorder, timeout time.Duration, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.With("component", "scheduler")
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)

	return &Scheduler{
		cron:     c,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Register adds a job under a standard five-field cron spec.
func (s *Scheduler) Register(spec string, job Job) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("parse schedule %q for %s: %w", spec, job.Name(), err)
	}
	s.entries = append(s.entries, entry{spec: spec, job: job})
	return nil
}

// Start runs registered jobs on their schedules until ctx is cancelled, then
// waits for running jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, e := range s.entries {
		job := e.job
		if _, err := s.cron.AddFunc(e.spec, func() { s.RunNow(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		s.logger.Info("job scheduled", "job", job.Name(), "spec", e.spec)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// RunNow executes job once with the configured timeout and records the run.
// Job failures are logged, never returned.
func (s *Scheduler) RunNow(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startedAt := s.now()
	err := job.Run(runCtx)
	duration := s.now().Sub(startedAt)

	metrics.ObserveJob(job.Name(), duration, err)

	exec := &domain.JobExecution{
		JobID:    job.Name(),
		Status:   domain.JobStatusSuccess,
		RunAt:    startedAt,
		Duration: duration,
	}
	if err != nil {
		msg := err.Error()
		exec.Status = domain.JobStatusError
		exec.Error = &msg
		s.logger.Error("job failed", "job", job.Name(), "duration", duration, "error", err)
	} else {
		s.logger.Info("job completed", "job", job.Name(), "duration", duration)
	}

	if s.recorder == nil {
		return
	}
	if recErr := s.recorder.Record(context.WithoutCancel(ctx), exec); recErr != nil {
		s.logger.Error("failed to record job execution", "job", job.Name(), "error", recErr)
	}
}
