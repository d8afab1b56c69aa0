package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"davsync/internal/engine"
	"davsync/internal/models"
	"davsync/internal/shared"
)

// JobRepository implements models.Repository[*models.SyncJob] and the update
// interface the worker needs (status transitions, progress, logs, statistics).
type JobRepository struct {
	db   *sql.DB
	logs *LogRepository
}

// NewJobRepository creates a new JobRepository with the given database connection
func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db, logs: NewLogRepository(db)}
}

// Create inserts a new sync job with generated ID and sequence
func (r *JobRepository) Create(job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	job.SetID(shared.GenerateID())

	query := `
		INSERT INTO sync_jobs (
			id, sequence, name, source_id, destination_id,
			migrate_calendars, migrate_contacts, create_collections,
			dry_run, skip_dummy_events, status, progress, stats,
			error_message, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		job.ID(),
		sequence,
		job.Name(),
		job.SourceID(),
		job.DestinationID(),
		job.MigrateCalendars(),
		job.MigrateContacts(),
		job.CreateCollections(),
		job.DryRun(),
		job.SkipDummyEvents(),
		string(job.Status()),
		job.Progress(),
		job.Stats(),
		nullable(job.ErrorMessage()),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	return nil
}

// Get retrieves a sync job by ID, excluding soft-deleted jobs
func (r *JobRepository) Get(id string) (*models.SyncJob, error) {
	query := selectJobs + " WHERE id = ? AND deleted_at IS NULL"
	job, err := scanJob(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", shared.ErrNotFound, id)
	}
	return job, err
}

// Update modifies a job's configuration flags and name.
// Run state (status, progress, statistics) changes through the dedicated
// UpdateStatus, UpdateProgress and RecordStats methods instead.
func (r *JobRepository) Update(job *models.SyncJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE sync_jobs
		SET name = ?, source_id = ?, destination_id = ?,
			migrate_calendars = ?, migrate_contacts = ?, create_collections = ?,
			dry_run = ?, skip_dummy_events = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		job.Name(),
		job.SourceID(),
		job.DestinationID(),
		job.MigrateCalendars(),
		job.MigrateContacts(),
		job.CreateCollections(),
		job.DryRun(),
		job.SkipDummyEvents(),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return requireRow(result, "job", job.ID())
}

// Delete soft-deletes a sync job by ID
func (r *JobRepository) Delete(id string) error {
	result, err := r.db.Exec("UPDATE sync_jobs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireRow(result, "job", id)
}

// List retrieves all jobs matching the given criteria, excluding soft-deleted jobs
func (r *JobRepository) List(criteria map[string]any) ([]*models.SyncJob, error) {
	query := selectJobs + " WHERE deleted_at IS NULL"
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if accountID, ok := criteria["account_id"].(string); ok && accountID != "" {
		query += " AND (source_id = ? OR destination_id = ?)"
		args = append(args, accountID, accountID)
	}

	query += " ORDER BY sequence ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// GetJob loads a job for the worker.
func (r *JobRepository) GetJob(id string) (*models.SyncJob, error) {
	return r.Get(id)
}

// UpdateStatus transitions a job's run state. Entering running stamps
// started_at and clears completed_at; reaching a terminal status stamps
// completed_at.
func (r *JobRepository) UpdateStatus(id string, status models.JobStatus, progress int, errorMessage string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, status)
	}

	now := time.Now()
	query := `
		UPDATE sync_jobs
		SET status = ?, progress = ?, error_message = ?, updated_at = ?
	`
	args := []any{string(status), progress, nullable(errorMessage), now}

	switch status {
	case models.StatusRunning:
		query += ", started_at = COALESCE(started_at, ?), completed_at = NULL"
		args = append(args, now)
	case models.StatusCompleted, models.StatusFailed:
		query += ", completed_at = ?"
		args = append(args, now)
	case models.StatusQueued:
		query += ", started_at = NULL, completed_at = NULL, stats = '{}'"
	}

	query += " WHERE id = ? AND deleted_at IS NULL"
	args = append(args, id)

	result, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return requireRow(result, "job", id)
}

// UpdateProgress rewrites a job's progress percentage without touching status.
func (r *JobRepository) UpdateProgress(id string, progress int) error {
	result, err := r.db.Exec(
		"UPDATE sync_jobs SET progress = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		progress, time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return requireRow(result, "job", id)
}

// AppendLog attaches one log line to a job.
func (r *JobRepository) AppendLog(id, level, message string) error {
	return r.logs.Create(models.NewSyncLog(id, level, message))
}

// RecordStats stores a run's statistics snapshot on the job record.
func (r *JobRepository) RecordStats(id string, stats engine.Stats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	result, err := r.db.Exec(
		"UPDATE sync_jobs SET stats = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL",
		string(data), time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to record job stats: %w", err)
	}
	return requireRow(result, "job", id)
}

// Logs returns the job's log entries in chronological order.
func (r *JobRepository) Logs(id string, limit int) ([]*models.SyncLog, error) {
	return r.logs.ListForJob(id, limit)
}

const selectJobs = `
	SELECT
		id, sequence, name, source_id, destination_id,
		migrate_calendars, migrate_contacts, create_collections,
		dry_run, skip_dummy_events, status, progress, stats,
		error_message, created_at, started_at, completed_at, updated_at, deleted_at
	FROM sync_jobs
`

func scanJob(s scanner) (*models.SyncJob, error) {
	var (
		id                string
		sequence          int
		name              string
		sourceID          string
		destinationID     string
		migrateCalendars  bool
		migrateContacts   bool
		createCollections bool
		dryRun            bool
		skipDummyEvents   bool
		status            string
		progress          int
		stats             string
		errorMessage      sql.NullString
		createdAt         time.Time
		startedAt         sql.NullTime
		completedAt       sql.NullTime
		updatedAt         time.Time
		deletedAt         sql.NullTime
	)

	err := s.Scan(&id, &sequence, &name, &sourceID, &destinationID,
		&migrateCalendars, &migrateContacts, &createCollections,
		&dryRun, &skipDummyEvents, &status, &progress, &stats,
		&errorMessage, &createdAt, &startedAt, &completedAt, &updatedAt, &deletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	job := models.NewSyncJob(sequence, name, sourceID, destinationID)
	job.SetID(id)
	job.SetMigrateCalendars(migrateCalendars)
	job.SetMigrateContacts(migrateContacts)
	job.SetCreateCollections(createCollections)
	job.SetDryRun(dryRun)
	job.SetSkipDummyEvents(skipDummyEvents)
	job.SetStatus(models.JobStatus(status))
	job.SetProgress(progress)
	job.SetStatsJSON(stats)
	job.SetErrorMessage(errorMessage.String)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if startedAt.Valid {
		job.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		job.SetDeletedAt(&deletedAt.Time)
	}

	return job, nil
}
