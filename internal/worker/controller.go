package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"davsync/internal/engine"
	"davsync/internal/models"
	"davsync/internal/shared"
)

// Mode selects which collection kinds a run covers, narrowing the job's
// migrate flags without rewriting them.
type Mode string

const (
	ModeFull          Mode = "full"
	ModeCalendarsOnly Mode = "calendars_only"
	ModeContactsOnly  Mode = "contacts_only"
)

// ParseMode converts the wire value of a start request into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFull, "":
		return ModeFull, nil
	case ModeCalendarsOnly:
		return ModeCalendarsOnly, nil
	case ModeContactsOnly:
		return ModeContactsOnly, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", shared.ErrInvalidInput, s)
}

// Controller wraps one engine run with the bookkeeping the administrative
// shell needs: flag translation, status transitions, progress mapping, and
// converting failures into a terminal status with a readable message.
//
// All side effects go through the [JobStore] update interface.
type Controller struct {
	store      JobStore
	dialer     Dialer
	logger     *log.Logger
	uploadRate float64
}

// NewController creates a Controller. uploadRate limits destination writes
// in requests per second (zero selects the engine default).
func NewController(store JobStore, dialer Dialer, logger *log.Logger, uploadRate float64) *Controller {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Controller{store: store, dialer: dialer, logger: logger, uploadRate: uploadRate}
}

// Execute runs one job to a terminal status. It never returns an error: every
// failure path is persisted on the job record instead.
func (c *Controller) Execute(ctx context.Context, req Request, ctl *engine.Control) {
	logger := shared.WithLogger(c.logger, "job", req.JobID)

	job, err := c.store.GetJob(req.JobID)
	if err != nil {
		logger.Error("job not found", "err", err)
		return
	}

	cfg, err := c.buildConfig(job, req)
	if err != nil {
		// Contradictory flags or unreachable accounts reject the run before
		// the job ever transitions to running.
		c.fail(req.JobID, 0, err, logger)
		return
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		c.fail(req.JobID, 0, err, logger)
		return
	}

	if err := c.store.UpdateStatus(req.JobID, models.StatusRunning, 0, ""); err != nil {
		logger.Error("failed to mark job running", "err", err)
		return
	}
	c.log(req.JobID, models.LogInfo, fmt.Sprintf("Starting synchronization: %s", job.Name()))

	sink := newJobSink(c.store, req.JobID, logger, cfg)
	stats, runErr := eng.Run(ctx, ctl, sink)

	if err := c.store.RecordStats(req.JobID, stats.Snapshot()); err != nil {
		logger.Error("failed to record statistics", "err", err)
	}

	if runErr != nil {
		progress := sink.progress()
		if errors.Is(runErr, shared.ErrCancelled) {
			c.log(req.JobID, models.LogError, "Synchronization cancelled by user")
			if err := c.store.UpdateStatus(req.JobID, models.StatusFailed, progress, "cancelled by user"); err != nil {
				logger.Error("failed to mark job failed", "err", err)
			}
			return
		}
		c.fail(req.JobID, progress, runErr, logger)
		return
	}

	if job.DryRun() || req.DryRun {
		c.log(req.JobID, models.LogInfo, "Dry run completed - no changes were made")
	} else {
		c.log(req.JobID, models.LogInfo, "Synchronization completed successfully")
	}
	if err := c.store.UpdateStatus(req.JobID, models.StatusCompleted, 100, ""); err != nil {
		logger.Error("failed to mark job completed", "err", err)
	}
}

// buildConfig translates the job record's flags and the request mode into an
// engine configuration with live adapters for both accounts.
func (c *Controller) buildConfig(job *models.SyncJob, req Request) (engine.Config, error) {
	source, err := c.dialer.Dial(job.SourceID())
	if err != nil {
		return engine.Config{}, fmt.Errorf("source account: %w", err)
	}
	destination, err := c.dialer.Dial(job.DestinationID())
	if err != nil {
		return engine.Config{}, fmt.Errorf("destination account: %w", err)
	}

	return engine.Config{
		Source:           source,
		Destination:      destination,
		MigrateCalendars: job.MigrateCalendars(),
		MigrateContacts:  job.MigrateContacts(),
		CreateMissing:    job.CreateCollections(),
		SkipDummyEvents:  job.SkipDummyEvents(),
		DryRun:           job.DryRun() || req.DryRun,
		CalendarsOnly:    req.Mode == ModeCalendarsOnly,
		ContactsOnly:     req.Mode == ModeContactsOnly,
		UploadRate:       c.uploadRate,
	}, nil
}

func (c *Controller) fail(jobID string, progress int, err error, logger *log.Logger) {
	logger.Error("job failed", "err", err)
	c.log(jobID, models.LogError, fmt.Sprintf("Synchronization failed: %v", err))
	if uerr := c.store.UpdateStatus(jobID, models.StatusFailed, progress, err.Error()); uerr != nil {
		logger.Error("failed to mark job failed", "err", uerr)
	}
}

func (c *Controller) log(jobID, level, message string) {
	if err := c.store.AppendLog(jobID, level, message); err != nil {
		c.logger.Error("failed to append job log", "job", jobID, "err", err)
	}
}
