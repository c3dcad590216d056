package worker

import (
	"context"
	"sync"

	"github.com/diettube/diettube/internal/models"
)

// QueueStatus is the externally visible state of the queue.
type QueueStatus struct {
	Paused       bool         `json:"paused"`
	ActiveTaskID *models.ULID `json:"active_task_id,omitempty"`
}

// controller coordinates pause state and cancellation of the active task
// between the worker loop and the API.
type controller struct {
	mu       sync.Mutex
	paused   bool
	activeID models.ULID
	cancel   context.CancelFunc
}

func newController(startPaused bool) *controller {
	return &controller{paused: startPaused}
}

// pause stops the worker from picking up new tasks. With immediate set the
// active task is also cancelled; the return value reports whether a running
// task was actually interrupted.
func (c *controller) pause(immediate bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = true
	if immediate && c.cancel != nil {
		c.cancel()
		return true
	}
	return false
}

func (c *controller) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = false
}

func (c *controller) isPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// begin registers the active task and returns a context the API can cancel.
func (c *controller) begin(parent context.Context, id models.ULID) context.Context {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeID = id
	c.cancel = cancel
	return ctx
}

// end clears the active task registration.
func (c *controller) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.activeID = models.ULID{}
}

// cancelTask cancels the active task if it matches id. It reports whether a
// cancellation was issued.
func (c *controller) cancelTask(id models.ULID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil || c.activeID != id {
		return false
	}
	c.cancel()
	return true
}

func (c *controller) status() QueueStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := QueueStatus{Paused: c.paused}
	if !c.activeID.IsZero() {
		id := c.activeID
		status.ActiveTaskID = &id
	}
	return status
}
