// package worker runs migration jobs on a single long-lived goroutine.
//
// The worker accepts at most one queued job while another runs; additional
// start requests are refused rather than buffered. Pause, resume and cancel
// are cooperative requests relayed to the active run's control token and
// observed at the engine's checkpoints.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"davsync/internal/engine"
	"davsync/internal/models"
	"davsync/internal/shared"
)

// Request asks the worker to run one job.
type Request struct {
	JobID  string
	Mode   Mode
	DryRun bool
}

// Status describes the worker loop for the administrative shell.
type Status struct {
	State        string `json:"state"` // idle or running
	CurrentJobID string `json:"current_job_id,omitempty"`
	QueuedJobID  string `json:"queued_job_id,omitempty"`
	Paused       bool   `json:"paused"`
}

// Worker is the single sequential execution context for job runs.
type Worker struct {
	controller *Controller
	store      JobStore
	logger     *log.Logger

	queue chan Request
	quit  chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	current string
	queued  string
	control *engine.Control
}

// NewWorker creates a Worker. uploadRate is passed through to the engine.
func NewWorker(store JobStore, dialer Dialer, logger *log.Logger, uploadRate float64) *Worker {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Worker{
		controller: NewController(store, dialer, logger, uploadRate),
		store:      store,
		logger:     logger,
		queue:      make(chan Request, 1),
		quit:       make(chan struct{}),
	}
}

// Start launches the worker goroutine. The context bounds every run; its
// cancellation is observed at the same cooperative checkpoints as a cancel
// request.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("worker started")
}

// Stop cancels the active run, stops accepting jobs and waits for the loop to exit.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.control != nil {
		w.control.Cancel()
	}
	w.mu.Unlock()

	close(w.quit)
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// Enqueue accepts a job for execution. It is rejected with
// shared.ErrWorkerBusy while another job is queued or running: the queue
// depth is one and requests are refused, not buffered.
func (w *Worker) Enqueue(jobID string, mode Mode, dryRun bool) error {
	job, err := w.store.GetJob(jobID)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != "" || w.queued != "" {
		return fmt.Errorf("%w (current: %s)", shared.ErrWorkerBusy, w.activeLocked())
	}
	if job.Status() == models.StatusRunning || job.Status() == models.StatusPaused {
		return fmt.Errorf("%w (current: %s)", shared.ErrWorkerBusy, jobID)
	}

	if err := w.store.UpdateStatus(jobID, models.StatusQueued, 0, ""); err != nil {
		return err
	}

	w.queued = jobID
	w.queue <- Request{JobID: jobID, Mode: mode, DryRun: dryRun}
	w.logger.Info("job queued", "job", jobID, "mode", mode, "dry_run", dryRun)
	return nil
}

// RequestPause asks the running job to hold at its next checkpoint.
// An item already in flight to the network finishes first.
func (w *Worker) RequestPause(jobID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != jobID || w.control == nil {
		return shared.ErrJobNotRunning
	}

	w.control.Pause()
	w.updateStatusLocked(jobID, models.StatusPaused)
	w.logger.Info("pause requested", "job", jobID)
	return nil
}

// RequestResume releases a paused job. Accumulated progress and statistics
// are preserved; the run continues where it held.
func (w *Worker) RequestResume(jobID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != jobID || w.control == nil {
		return shared.ErrJobNotRunning
	}

	w.control.Resume()
	w.updateStatusLocked(jobID, models.StatusRunning)
	w.logger.Info("resume requested", "job", jobID)
	return nil
}

// RequestCancel asks the running (or paused) job to stop at its next
// checkpoint. The job terminates as failed with a cancellation message.
func (w *Worker) RequestCancel(jobID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current != jobID || w.control == nil {
		return shared.ErrJobNotRunning
	}

	w.control.Cancel()
	w.logger.Info("cancel requested", "job", jobID)
	return nil
}

// Status reports the worker loop's current state.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	state := "idle"
	if w.current != "" {
		state = "running"
	}
	return Status{
		State:        state,
		CurrentJobID: w.current,
		QueuedJobID:  w.queued,
		Paused:       w.control.Paused(),
	}
}

func (w *Worker) activeLocked() string {
	if w.current != "" {
		return w.current
	}
	return w.queued
}

// updateStatusLocked rewrites the job status without touching progress.
func (w *Worker) updateStatusLocked(jobID string, status models.JobStatus) {
	job, err := w.store.GetJob(jobID)
	if err != nil {
		w.logger.Error("failed to load job for status update", "job", jobID, "err", err)
		return
	}
	if err := w.store.UpdateStatus(jobID, status, job.Progress(), job.ErrorMessage()); err != nil {
		w.logger.Error("failed to update job status", "job", jobID, "err", err)
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-w.quit:
			return
		case req := <-w.queue:
			w.mu.Lock()
			w.current = req.JobID
			w.queued = ""
			w.control = engine.NewControl()
			ctl := w.control
			w.mu.Unlock()

			w.controller.Execute(ctx, req, ctl)

			w.mu.Lock()
			w.current = ""
			w.control = nil
			w.mu.Unlock()
		}
	}
}
