package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"media-converter/internal/converter"
	"media-converter/internal/metrics"
)

const jobColumns = `id, request, state, progress, status, output_path, output_size,
	strategy, error, reason, created_at, started_at, finished_at`

// CreateJob stores req as a queued job. req.ID must be set.
func (d *Database) CreateJob(ctx context.Context, req converter.Request) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_job", start, err) }()

	if req.ID == "" {
		err = errors.New("job id is required")
		return err
	}

	var payload []byte
	payload, err = json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, input_path, target_bytes, request, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.ID, req.Kind, req.InputPath, req.TargetBytes, string(payload), JobQueued, time.Now().UnixMilli())
	return err
}

// UpdateProgress records the latest progress of an unfinished job. The first
// update moves a queued job to running. Progress never decreases.
func (d *Database) UpdateProgress(ctx context.Context, id string, pct float64, status converter.Status) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("update_progress", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
		UPDATE jobs SET
			progress = MAX(progress, ?),
			status = ?,
			state = ?,
			started_at = COALESCE(started_at, ?)
		WHERE id = ? AND state IN (?, ?)
	`, pct, status, JobRunning, time.Now().UnixMilli(), id, JobQueued, JobRunning)
	return err
}

// CompleteJob stores the result of a job. Results for jobs that already
// finished are ignored, so the first result wins.
func (d *Database) CompleteJob(ctx context.Context, res converter.Result) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("complete_job", start, err) }()

	state := JobFailed
	status := converter.StatusFailed
	if res.Success {
		state = JobSucceeded
		status = converter.StatusCompleted
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UnixMilli()
	_, err = d.db.ExecContext(ctx, `
		UPDATE jobs SET
			state = ?,
			status = ?,
			progress = CASE WHEN ? THEN 100 ELSE progress END,
			output_path = ?,
			output_size = ?,
			strategy = ?,
			error = ?,
			reason = ?,
			started_at = COALESCE(started_at, ?),
			finished_at = ?
		WHERE id = ? AND state IN (?, ?)
	`, state, status, res.Success, res.OutputPath, res.OutputSize, res.Strategy, res.Error, res.Reason,
		now, now, res.JobID, JobQueued, JobRunning)
	return err
}

// GetJob returns one job, or ErrJobNotFound.
func (d *Database) GetJob(ctx context.Context, id string) (*Job, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_job", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	var job *Job
	job, err = scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

// ListJobs returns up to limit jobs, newest first.
func (d *Database) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_jobs", start, err) }()

	if limit <= 0 {
		limit = 100
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]Job, 0)
	for rows.Next() {
		var job *Job
		job, err = scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	err = rows.Err()
	return jobs, err
}

// PruneJobs deletes finished jobs beyond the keep most recent jobs and
// returns how many were removed. Unfinished jobs are never pruned.
func (d *Database) PruneJobs(ctx context.Context, keep int) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("prune_jobs", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE state IN (?, ?)
		AND id NOT IN (SELECT id FROM jobs ORDER BY created_at DESC, id LIMIT ?)
	`, JobSucceeded, JobFailed, keep)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// FailInterrupted marks every queued or running job as failed. It is meant
// for startup, when no job from a previous process can still be running.
func (d *Database) FailInterrupted(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("fail_interrupted", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, `
		UPDATE jobs SET state = ?, status = ?, error = ?, reason = ?, finished_at = ?
		WHERE state IN (?, ?)
	`, JobFailed, converter.StatusFailed, "interrupted by restart", "cancelled", time.Now().UnixMilli(),
		JobQueued, JobRunning)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountJobs returns the number of stored jobs per state.
func (d *Database) CountJobs(ctx context.Context) (metrics.Stats, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("count_jobs", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var stats metrics.Stats
	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM jobs GROUP BY state`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var state JobState
		var n int
		if err = rows.Scan(&state, &n); err != nil {
			return stats, err
		}
		switch state {
		case JobQueued:
			stats.Queued = n
		case JobRunning:
			stats.Running = n
		case JobSucceeded:
			stats.Succeeded = n
		case JobFailed:
			stats.Failed = n
		}
	}
	err = rows.Err()
	return stats, err
}

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	stats, err := d.CountJobs(context.Background())
	if err != nil {
		return metrics.Stats{}
	}
	return stats
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job                   Job
		payload               string
		createdAt             int64
		startedAt, finishedAt sql.NullInt64
	)
	err := row.Scan(&job.ID, &payload, &job.State, &job.Progress, &job.Status, &job.OutputPath,
		&job.OutputSize, &job.Strategy, &job.Error, &job.Reason, &createdAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &job.Request); err != nil {
		return nil, fmt.Errorf("job %s has an unreadable request: %w", job.ID, err)
	}

	job.CreatedAt = time.UnixMilli(createdAt)
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64)
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := time.UnixMilli(finishedAt.Int64)
		job.FinishedAt = &t
	}
	return &job, nil
}
