// Package session holds the process-wide on/off switch for camera streaming.
package session

import (
	"sync"
	"time"
)

// Controller gates whether frames are pulled from the camera.
// It starts inactive. It is safe for concurrent use.
type Controller struct {
	mu        sync.RWMutex
	active    bool
	changedAt time.Time
	listeners []func(active bool)
}

// NewController creates an inactive Controller.
func NewController() *Controller {
	return &Controller{}
}

// Start activates streaming. It reports whether the state changed;
// starting an active controller is a no-op.
func (c *Controller) Start() bool {
	return c.set(true)
}

// Stop deactivates streaming. It reports whether the state changed.
func (c *Controller) Stop() bool {
	return c.set(false)
}

// Active reports whether streaming is enabled.
func (c *Controller) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// ChangedAt returns when the state last changed, or the zero time.
func (c *Controller) ChangedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changedAt
}

// OnChange registers fn to be called after every state change.
// Callbacks run on the caller's goroutine, outside the lock.
func (c *Controller) OnChange(fn func(active bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) set(active bool) bool {
	c.mu.Lock()
	if c.active == active {
		c.mu.Unlock()
		return false
	}
	c.active = active
	c.changedAt = time.Now()
	listeners := append([]func(bool){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(active)
	}
	return true
}
