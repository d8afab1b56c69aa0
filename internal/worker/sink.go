package worker

import (
	"sync"

	"github.com/charmbracelet/log"

	"davsync/internal/dav"
	"davsync/internal/engine"
	"davsync/internal/models"
)

// progressRange maps a kind's 0-100 engine progress into a slice of the
// overall job progress bar.
type progressRange struct {
	base int
	span int
}

// jobSink streams engine progress and log lines into the job record.
//
// Overall progress follows the fixed layout of a run: connecting the two
// endpoints accounts for the first 20%, calendars run to 60%, contacts to
// 90%, and completion sets 100. When only one kind is selected it gets the
// whole 20-90 band.
type jobSink struct {
	store  JobStore
	jobID  string
	logger *log.Logger

	events   progressRange
	contacts progressRange

	mu       sync.Mutex
	connects int
	lastPct  int
}

func newJobSink(store JobStore, jobID string, logger *log.Logger, cfg engine.Config) *jobSink {
	s := &jobSink{
		store:    store,
		jobID:    jobID,
		logger:   logger,
		events:   progressRange{base: 20, span: 40},
		contacts: progressRange{base: 60, span: 30},
	}

	both := cfg.MigrateCalendars && !cfg.ContactsOnly && cfg.MigrateContacts && !cfg.CalendarsOnly
	if !both {
		s.events = progressRange{base: 20, span: 70}
		s.contacts = progressRange{base: 20, span: 70}
	}
	return s
}

// progress returns the last overall percentage written to the job.
func (s *jobSink) progress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPct
}

func (s *jobSink) Progress(u engine.ProgressUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pct int
	switch u.Phase {
	case engine.PhaseConnect:
		s.connects++
		pct = 10 * s.connects
		if pct > 20 {
			pct = 20
		}
	case engine.PhaseDone:
		pct = 100
	default:
		r := s.events
		if u.Kind == dav.KindContact {
			r = s.contacts
		}
		pct = r.base + r.span*u.Percent/100
	}

	if pct != s.lastPct {
		s.lastPct = pct
		if err := s.store.UpdateProgress(s.jobID, pct); err != nil {
			s.logger.Debug("failed to update progress", "err", err)
		}
	}

	if u.Total > 0 && shouldLogUnit(u.Processed, u.Total) {
		if err := s.store.AppendLog(s.jobID, models.LogInfo, u.Message); err != nil {
			s.logger.Debug("failed to append progress log", "err", err)
		}
	}
}

func (s *jobSink) Log(level, message string) {
	if err := s.store.AppendLog(s.jobID, level, message); err != nil {
		s.logger.Debug("failed to append job log", "err", err)
	}
	s.logger.Info(message, "level", level)
}

// shouldLogUnit throttles per-unit log lines: small runs log every unit,
// large runs roughly every 10% and always the final unit.
func shouldLogUnit(processed, total int) bool {
	if total <= 20 {
		return true
	}
	step := total / 10
	if step < 1 {
		step = 1
	}
	return processed%step == 0 || processed == total
}
