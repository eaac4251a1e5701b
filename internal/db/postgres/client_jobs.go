package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/modhound/modhound/internal/db"
)

func (c *pgClient) CreateJob(ctx context.Context, job *db.ScheduledJob) (*db.ScheduledJob, error) {
	err := c.db.GetContext(ctx, &job.ID, `
		INSERT INTO scheduled_jobs (job_type, chat_id, target_id, run_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, job.JobType, job.ChatID, job.TargetID, job.RunAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimDueJobs selects due rows FOR UPDATE SKIP LOCKED, so two scheduler
// instances polling concurrently partition the due set between them instead
// of blocking or double-claiming. The locks are released when the claim
// transaction commits; a crash before DeleteJob leaves the row for the next
// cycle, which is what gives the queue its at-least-once guarantee.
func (c *pgClient) ClaimDueJobs(ctx context.Context, now time.Time, limit int) ([]*db.ScheduledJob, error) {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	rollback := true
	defer func() {
		if rollback {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.WithError(err).Error("failed to rollback claim transaction")
			}
		}
	}()

	var jobs []*db.ScheduledJob
	err = tx.SelectContext(ctx, &jobs, `
		SELECT id, job_type, chat_id, target_id, run_at
		FROM scheduled_jobs
		WHERE run_at <= $1
		ORDER BY run_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	rollback = false
	return jobs, nil
}

func (c *pgClient) DeleteJob(ctx context.Context, id int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	return err
}
