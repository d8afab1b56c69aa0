package models

import (
	"fmt"
	"time"

	"davsync/internal/shared"
)

// Log levels for [SyncLog] entries.
const (
	LogInfo    = "INFO"
	LogWarning = "WARNING"
	LogError   = "ERROR"
)

// SyncLog is one log line emitted during a job run.
// Ownership transfers to the persistence layer as soon as the entry is appended.
type SyncLog struct {
	id        string
	jobID     string
	level     string
	message   string
	timestamp time.Time
}

// NewSyncLog creates a log entry for the given job, stamped with the current time.
func NewSyncLog(jobID, level, message string) *SyncLog {
	return &SyncLog{
		jobID:     jobID,
		level:     level,
		message:   message,
		timestamp: time.Now(),
	}
}

func (l *SyncLog) ID() string           { return l.id }
func (l *SyncLog) JobID() string        { return l.jobID }
func (l *SyncLog) Level() string        { return l.level }
func (l *SyncLog) Message() string      { return l.message }
func (l *SyncLog) Timestamp() time.Time { return l.timestamp }
func (l *SyncLog) CreatedAt() time.Time { return l.timestamp }
func (l *SyncLog) UpdatedAt() time.Time { return l.timestamp }

func (l *SyncLog) SetID(id string)          { l.id = id }
func (l *SyncLog) SetTimestamp(t time.Time) { l.timestamp = t }

// Validate checks the log entry's level and contents.
func (l *SyncLog) Validate() error {
	switch l.level {
	case LogInfo, LogWarning, LogError:
	default:
		return fmt.Errorf("%w: unknown log level %q", shared.ErrInvalidInput, l.level)
	}
	if l.jobID == "" {
		return fmt.Errorf("%w: log entry requires a job", shared.ErrInvalidInput)
	}
	if l.message == "" {
		return fmt.Errorf("%w: log message is required", shared.ErrInvalidInput)
	}
	return nil
}

// ToMap converts the log entry to a map for JSON serialization.
func (l *SyncLog) ToMap() map[string]any {
	return map[string]any{
		"id":        l.id,
		"level":     l.level,
		"message":   l.message,
		"timestamp": l.timestamp.Format(time.RFC3339),
	}
}
