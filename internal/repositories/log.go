package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"davsync/internal/models"
	"davsync/internal/shared"
)

// LogRepository persists log lines emitted during job runs.
//
// Logs are append-only: there is no update or delete path, and entries
// survive job deletion for post-mortem inspection.
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository creates a new LogRepository with the given database connection
func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Create inserts a new log entry with a generated ID
func (r *LogRepository) Create(entry *models.SyncLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	entry.SetID(shared.GenerateID())

	query := `
		INSERT INTO sync_logs (id, sync_job_id, level, message, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		entry.ID(),
		entry.JobID(),
		entry.Level(),
		entry.Message(),
		entry.Timestamp(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	return nil
}

// ListForJob retrieves log entries for one job in chronological order.
// A limit of zero returns every entry.
func (r *LogRepository) ListForJob(jobID string, limit int) ([]*models.SyncLog, error) {
	query := `
		SELECT id, sync_job_id, level, message, timestamp
		FROM sync_logs
		WHERE sync_job_id = ?
		ORDER BY timestamp ASC, id ASC
	`
	args := []any{jobID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.SyncLog
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

func scanLog(s scanner) (*models.SyncLog, error) {
	var (
		id        string
		jobID     string
		level     string
		message   string
		timestamp time.Time
	)

	err := s.Scan(&id, &jobID, &level, &message, &timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan log entry: %w", err)
	}

	entry := models.NewSyncLog(jobID, level, message)
	entry.SetID(id)
	entry.SetTimestamp(timestamp)

	return entry, nil
}
