package primary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"cinematch/internal/models"
	"cinematch/internal/store"
)

const jobColumns = `id, job_id, task_type, payload, queue, status, created_at, updated_at`

// RecordJobEnqueue inserts a row into the jobs table. Recording the same job
// twice is a no-op.
func (s *StoreImpl) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	payload := []byte(params.Payload)
	if payload == nil {
		payload = []byte("{}")
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (job_id) DO NOTHING`,
		params.JobID, params.TaskType, payload, params.Queue, params.Status, now, now)
	if err != nil {
		return fmt.Errorf("failed to record job enqueue event for JobID %s: %w", params.JobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Debugf("Job %s already recorded, skipping insertion", params.JobID)
	}
	return nil
}

// UpdateJobStatus updates the status of a job given its task UUID.
func (s *StoreImpl) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE job_id = ?`, status, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if n == 0 {
		return fmt.Errorf("job %s not found to update status: %w", jobID, store.ErrNotFound)
	}
	return nil
}

func (s *StoreImpl) GetJob(ctx context.Context, jobID uuid.UUID) (*models.BackgroundJob, error) {
	job := &models.BackgroundJob{}
	err := s.db.GetContext(ctx, job, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (s *StoreImpl) ListJobs(ctx context.Context, limit, offset int) ([]*models.BackgroundJob, error) {
	limit, offset = clampPage(limit, offset)
	var jobs []*models.BackgroundJob
	if err := s.db.SelectContext(ctx, &jobs,
		`SELECT `+jobColumns+` FROM jobs ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	return jobs, nil
}
