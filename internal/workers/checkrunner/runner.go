package checkrunner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sitegauge/internal/ports"
)

// CheckProcessor performs the probe work for a job's check id.
type CheckProcessor interface {
	Process(ctx context.Context, checkID string) error
}

// ProbeProcessor runs the real pipeline: load the check, probe its URL, store
// the result. Probe failures are recorded on the check, not swallowed.
type ProbeProcessor struct {
	Checks ports.CheckRepository
	Prober ports.Prober
	Log    *zap.Logger
}

func (p ProbeProcessor) Process(ctx context.Context, checkID string) error {
	check, err := p.Checks.Get(ctx, checkID)
	if err != nil {
		return err
	}

	result, err := p.Prober.Probe(ctx, check.URL)
	if err != nil {
		if ferr := p.Checks.Fail(ctx, checkID, err.Error()); ferr != nil {
			p.logger().Error("mark check failed", zap.String("check_id", checkID), zap.Error(ferr))
		}
		return err
	}

	return p.Checks.Complete(ctx, checkID, result)
}

func (p ProbeProcessor) logger() *zap.Logger {
	if p.Log == nil {
		return zap.NewNop()
	}
	return p.Log
}

// Run starts worker goroutines that claim jobs and process them. It blocks
// until the context is cancelled.
func Run(ctx context.Context, repo ports.JobRepository, processor CheckProcessor, concurrency int, pollInterval time.Duration, log *zap.Logger) {
	if concurrency < 1 {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}
	jobsCh := make(chan ports.CheckJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				close(jobsCh)
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNext(ctx)
					if err != nil {
						log.Error("job claim", zap.Error(err))
						break
					}
					if !found {
						break
					}
					jobsCh <- job
				}
			}
		}
	}()

	// workers
	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				if err := processor.Process(ctx, job.CheckID); err != nil {
					_ = repo.MarkFailed(ctx, job.ID, err.Error())
					log.Warn("job failed",
						zap.Int("worker", idx), zap.String("job_id", job.ID), zap.Error(err))
					continue
				}
				if err := repo.MarkCompleted(ctx, job.ID); err != nil {
					log.Error("job complete",
						zap.Int("worker", idx), zap.String("job_id", job.ID), zap.Error(err))
				}
			}
		}(i)
	}

	<-ctx.Done()
}

// ProcessInline starts and processes a specific check synchronously with the
// same processor the background workers use. It claims the check's job, runs
// the probe, and completes or fails the job.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor CheckProcessor, checkID string) error {
	jobID, err := repo.StartJobForCheck(ctx, checkID)
	if err != nil {
		return err
	}
	if err := processor.Process(ctx, checkID); err != nil {
		_ = repo.MarkFailed(ctx, jobID, err.Error())
		return err
	}
	return repo.MarkCompleted(ctx, jobID)
}
