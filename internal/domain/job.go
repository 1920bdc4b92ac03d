package domain

import "time"

type JobStatus string

const (
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
)

// JobExecution is one run of a scheduled job.
type JobExecution struct {
	ID       int64         `db:"id"`
	JobID    string        `db:"job_id"`
	Status   JobStatus     `db:"status"`
	RunAt    time.Time     `db:"run_at"`
	Duration time.Duration `db:"duration"`
	Error    *string       `db:"error"`
}

// DispatchTask is the queued unit of work for the notification dispatcher.
type DispatchTask struct {
	PostID     int64     `json:"post_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DispatchStats holds statistics about one notification fan-out.
type DispatchStats struct {
	PostID      int64
	Subscribers int
	Sent        int
	Failed      int
	Skipped     int
	Duration    time.Duration
}

// DigestStats holds statistics about one weekly digest run.
type DigestStats struct {
	Categories        int
	SkippedCategories int
	Sent              int
	Failed            int
	Duration          time.Duration
}

// Email is a rendered message ready for the mail transport.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}
