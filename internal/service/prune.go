package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const PruneJobHistoryJob = "prune_job_history"

// JobHistoryPruner deletes job execution records whose age has reached the
// retention window.
type JobHistoryPruner struct {
	executions JobExecutionStore
	retention  time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewJobHistoryPruner(executions JobExecutionStore, retention time.Duration, logger *slog.Logger) *JobHistoryPruner {
	return &JobHistoryPruner{
		executions: executions,
		retention:  retention,
		logger:     logger.With("job", PruneJobHistoryJob),
		now:        time.Now,
	}
}

func (p *JobHistoryPruner) Name() string {
	return PruneJobHistoryJob
}

func (p *JobHistoryPruner) Run(ctx context.Context) error {
	cutoff := p.now().Add(-p.retention)

	deleted, err := p.executions.DeleteRunAtOrBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete job executions: %w", err)
	}

	p.logger.Info("job history pruned", "deleted", deleted, "cutoff", cutoff)
	return nil
}
