package ports

import "context"

type CheckJob struct {
	ID      string
	CheckID string
}

// JobRepository supports claiming and updating check jobs.
type JobRepository interface {
	ClaimNext(ctx context.Context) (job CheckJob, found bool, err error)
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, reason string) error
	// StartJobForCheck claims the queued job of a specific check, for the
	// inline (blocking) path.
	StartJobForCheck(ctx context.Context, checkID string) (jobID string, err error)
}
