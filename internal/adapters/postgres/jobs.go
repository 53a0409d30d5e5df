package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"sitegauge/internal/ports"
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.CheckJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, check_id FROM check_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.CheckID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE check_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, job.ID); err != nil {
		return job, false, err
	}
	if _, err = tx.Exec(ctx, `
		UPDATE url_checks SET status='running' WHERE id=$1
	`, job.CheckID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := db.Pool.Exec(ctx, `
		UPDATE check_jobs SET status='completed', finished_at=now() WHERE id=$1
	`, jobID)
	return err
}

func (db *DB) MarkFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()
	var checkID string
	if err = tx.QueryRow(ctx, `SELECT check_id FROM check_jobs WHERE id=$1`, jobID).Scan(&checkID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE check_jobs SET status='failed', finished_at=now() WHERE id=$1`, jobID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `
		UPDATE url_checks SET status='failed', error=$2, finished_at=now() WHERE id=$1
	`, checkID, reason); err != nil {
		return err
	}
	return nil
}

// StartJobForCheck claims the queued job for a specific check and marks it
// running; used by the inline (blocking) path.
func (db *DB) StartJobForCheck(ctx context.Context, checkID string) (string, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	var jobID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM check_jobs
		WHERE check_id = $1 AND status = 'queued'
		FOR UPDATE SKIP LOCKED
	`, checkID).Scan(&jobID)
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `
		UPDATE check_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, jobID); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE url_checks SET status='running' WHERE id=$1`, checkID); err != nil {
		return "", err
	}
	return jobID, nil
}
