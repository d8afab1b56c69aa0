package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"davsync/internal/shared"
)

// pausePollInterval is how often a paused run re-checks its control state.
// Shortened in tests.
var pausePollInterval = 100 * time.Millisecond

// Control is the cooperative pause/cancel token shared between the worker's
// control surface and one engine run.
//
// The engine observes it only at checkpoints between adapter calls, so a
// request never interrupts an in-flight network operation. A nil *Control is
// valid and behaves as a token that is never paused or cancelled.
type Control struct {
	mu        sync.Mutex
	paused    bool
	cancelled bool
}

// NewControl returns a fresh token in the running state.
func NewControl() *Control {
	return &Control{}
}

// Pause requests that the run hold at its next checkpoint.
func (c *Control) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
}

// Resume releases a paused run.
func (c *Control) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

// Cancel requests that the run stop at its next checkpoint.
// Cancel also releases a paused run so the checkpoint can observe it.
func (c *Control) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
}

// Paused reports whether a pause is currently requested.
func (c *Control) Paused() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Cancelled reports whether cancellation was requested.
func (c *Control) Cancelled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Checkpoint blocks while the token is paused and returns shared.ErrCancelled
// once cancellation is requested, either through the token or the context.
func (c *Control) Checkpoint(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrCancelled, err)
		}
		if c.Cancelled() {
			return shared.ErrCancelled
		}
		if !c.Paused() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", shared.ErrCancelled, ctx.Err())
		case <-time.After(pausePollInterval):
		}
	}
}
