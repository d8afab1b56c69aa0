package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"davsync/internal/shared"
)

// JobStatus enumerates the lifecycle states of a [SyncJob].
//
// Valid transitions: a terminal status (pending, completed, failed) may be
// queued; queued becomes running; running ends completed or failed, and may
// pause and resume along the way. Cancellation from running or paused
// terminates the job as failed.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusPaused    JobStatus = "paused"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusPending, StatusQueued, StatusRunning, StatusPaused, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status ends a run. Terminal jobs can be
// re-queued, which starts a fresh run rather than resuming history.
func (s JobStatus) Terminal() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusFailed
}

// CanQueue reports whether a job in this status may be enqueued for a new run.
func (s JobStatus) CanQueue() bool {
	return s.Terminal()
}

// SyncJob is a migration between two accounts: configuration flags plus the
// externally visible run state (status, progress, statistics, error message).
type SyncJob struct {
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
	status            JobStatus
	progress          int
	stats             string // JSON snapshot of the last run's statistics
	errorMessage      string
	createdAt         time.Time
	startedAt         *time.Time
	completedAt       *time.Time
	updatedAt         time.Time
	deletedAt         *time.Time
}

// NewSyncJob creates a pending SyncJob between the given source and destination accounts.
// Calendars, contacts and collection creation are enabled by default.
func NewSyncJob(sequence int, name, sourceID, destinationID string) *SyncJob {
	now := time.Now()
	return &SyncJob{
		sequence:          sequence,
		name:              name,
		sourceID:          sourceID,
		destinationID:     destinationID,
		migrateCalendars:  true,
		migrateContacts:   true,
		createCollections: true,
		status:            StatusPending,
		stats:             "{}",
		createdAt:         now,
		updatedAt:         now,
	}
}

func (j *SyncJob) ID() string              { return j.id }
func (j *SyncJob) Sequence() int           { return j.sequence }
func (j *SyncJob) Name() string            { return j.name }
func (j *SyncJob) SourceID() string        { return j.sourceID }
func (j *SyncJob) DestinationID() string   { return j.destinationID }
func (j *SyncJob) MigrateCalendars() bool  { return j.migrateCalendars }
func (j *SyncJob) MigrateContacts() bool   { return j.migrateContacts }
func (j *SyncJob) CreateCollections() bool { return j.createCollections }
func (j *SyncJob) DryRun() bool            { return j.dryRun }
func (j *SyncJob) SkipDummyEvents() bool   { return j.skipDummyEvents }
func (j *SyncJob) Status() JobStatus       { return j.status }
func (j *SyncJob) Progress() int           { return j.progress }
func (j *SyncJob) Stats() string           { return j.stats }
func (j *SyncJob) ErrorMessage() string    { return j.errorMessage }
func (j *SyncJob) CreatedAt() time.Time    { return j.createdAt }
func (j *SyncJob) StartedAt() *time.Time   { return j.startedAt }
func (j *SyncJob) CompletedAt() *time.Time { return j.completedAt }
func (j *SyncJob) UpdatedAt() time.Time    { return j.updatedAt }
func (j *SyncJob) DeletedAt() *time.Time   { return j.deletedAt }

func (j *SyncJob) SetID(id string)                { j.id = id }
func (j *SyncJob) SetName(name string)            { j.name = name }
func (j *SyncJob) SetSourceID(id string)          { j.sourceID = id }
func (j *SyncJob) SetDestinationID(id string)     { j.destinationID = id }
func (j *SyncJob) SetMigrateCalendars(v bool)     { j.migrateCalendars = v }
func (j *SyncJob) SetMigrateContacts(v bool)      { j.migrateContacts = v }
func (j *SyncJob) SetCreateCollections(v bool)    { j.createCollections = v }
func (j *SyncJob) SetDryRun(v bool)               { j.dryRun = v }
func (j *SyncJob) SetSkipDummyEvents(v bool)      { j.skipDummyEvents = v }
func (j *SyncJob) SetStatus(s JobStatus)          { j.status = s }
func (j *SyncJob) SetProgress(p int)              { j.progress = p }
func (j *SyncJob) SetErrorMessage(msg string)     { j.errorMessage = msg }
func (j *SyncJob) SetCreatedAt(t time.Time)       { j.createdAt = t }
func (j *SyncJob) SetStartedAt(t *time.Time)      { j.startedAt = t }
func (j *SyncJob) SetCompletedAt(t *time.Time)    { j.completedAt = t }
func (j *SyncJob) SetUpdatedAt(t time.Time)       { j.updatedAt = t }
func (j *SyncJob) SetDeletedAt(t *time.Time)      { j.deletedAt = t }

// SetStats stores a statistics snapshot as JSON.
func (j *SyncJob) SetStats(stats any) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	j.stats = string(data)
	return nil
}

// SetStatsJSON stores a pre-serialized statistics snapshot.
func (j *SyncJob) SetStatsJSON(stats string) {
	if stats == "" {
		stats = "{}"
	}
	j.stats = stats
}

// StatsMap returns the statistics snapshot as a generic map.
func (j *SyncJob) StatsMap() map[string]any {
	out := map[string]any{}
	if j.stats != "" {
		_ = json.Unmarshal([]byte(j.stats), &out)
	}
	return out
}

// Validate checks that the job references two distinct accounts and carries a valid status.
func (j *SyncJob) Validate() error {
	if strings.TrimSpace(j.name) == "" {
		return fmt.Errorf("%w: job name is required", shared.ErrInvalidInput)
	}
	if j.sourceID == "" || j.destinationID == "" {
		return fmt.Errorf("%w: job requires source and destination accounts", shared.ErrInvalidInput)
	}
	if j.sourceID == j.destinationID {
		return fmt.Errorf("%w: source and destination accounts must differ", shared.ErrInvalidInput)
	}
	if !j.status.Valid() {
		return fmt.Errorf("%w: unknown job status %q", shared.ErrInvalidInput, j.status)
	}
	if j.progress < 0 || j.progress > 100 {
		return fmt.Errorf("%w: progress must be between 0 and 100", shared.ErrInvalidInput)
	}
	return nil
}

// ToMap converts the job to a map for JSON serialization.
func (j *SyncJob) ToMap() map[string]any {
	m := map[string]any{
		"id":                 j.id,
		"name":               j.name,
		"source_id":          j.sourceID,
		"destination_id":     j.destinationID,
		"migrate_calendars":  j.migrateCalendars,
		"migrate_contacts":   j.migrateContacts,
		"create_collections": j.createCollections,
		"dry_run":            j.dryRun,
		"skip_dummy_events":  j.skipDummyEvents,
		"status":             string(j.status),
		"progress":           j.progress,
		"stats":              j.StatsMap(),
		"error_message":      j.errorMessage,
		"created_at":         j.createdAt.Format(time.RFC3339),
	}
	if j.startedAt != nil {
		m["started_at"] = j.startedAt.Format(time.RFC3339)
	}
	if j.completedAt != nil {
		m["completed_at"] = j.completedAt.Format(time.RFC3339)
	}
	return m
}
