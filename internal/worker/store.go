package worker

import (
	"davsync/internal/dav"
	"davsync/internal/engine"
	"davsync/internal/models"
)

// JobStore is the narrow update interface between the worker's execution
// context and the administrative persistence layer. Implementations must
// provide atomic read/update semantics per job, since the administrative
// shell polls job state while the worker writes it.
type JobStore interface {
	// GetJob reads a job's configuration and current state.
	GetJob(id string) (*models.SyncJob, error)

	// UpdateStatus sets status, progress and error message in one write.
	// Implementations stamp started_at/completed_at on the matching transitions.
	UpdateStatus(id string, status models.JobStatus, progress int, errorMessage string) error

	// UpdateProgress updates only the progress percentage.
	UpdateProgress(id string, progress int) error

	// AppendLog attaches one log line to the job.
	AppendLog(id, level, message string) error

	// RecordStats stores a statistics snapshot on the job.
	RecordStats(id string, stats engine.Stats) error
}

// Dialer builds a directory client for a stored account. The repositories
// package provides the production implementation; tests substitute mocks.
type Dialer interface {
	Dial(accountID string) (dav.Client, error)
}
