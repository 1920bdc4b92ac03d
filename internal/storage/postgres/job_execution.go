package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"news_portal/internal/domain"
)

type JobExecutionStore struct {
	db *sqlx.DB
}

func NewJobExecutionStore(db *sqlx.DB) *JobExecutionStore {
	return &JobExecutionStore{db: db}
}

func (s *JobExecutionStore) Record(ctx context.Context, exec *domain.JobExecution) error {
	query := `
		INSERT INTO job_executions (job_id, status, run_at, duration, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		exec.JobID,
		exec.Status,
		exec.RunAt,
		int64(exec.Duration),
		exec.Error,
	).Scan(&exec.ID)
}

// DeleteRunAtOrBefore removes execution records with run_at <= cutoff.
func (s *JobExecutionStore) DeleteRunAtOrBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx,
		"DELETE FROM job_executions WHERE run_at <= $1", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
