package flight

import (
	"time"
)

// RequestStop asks the running task to stop.  It is idempotent and
// may be called from anywhere, but observers only hear of the first
// call.  The request stays in force until the
// next task is dispatched.
func (c *Controller) RequestStop() {
	if c.stop.Swap(true) {
		return
	}
	c.l.Info("All stop received!")
	for _, o := range c.obs {
		o.StopRequested()
	}
}

// ShouldStop reports whether the running task should stop, either
// because a stop was requested or because the pilot has withdrawn
// authorisation.  A withdrawal is latched as a stop request so that a
// flickering switch cannot resume a cancelled task.
func (c *Controller) ShouldStop() bool {
	if c.stop.Load() {
		return true
	}
	if !c.auth.Authorized() {
		c.stop.Store(true)
		return true
	}
	return false
}

// Sleep waits for d, checking for a stop at least once per quantum.
// It returns true iff the whole duration elapsed without a stop.
func (c *Controller) Sleep(d time.Duration) bool {
	deadline := time.Now().Add(d)
	for {
		if c.ShouldStop() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		time.Sleep(min(c.quantum, remaining))
	}
}

// WaitForAuth blocks until the pilot authorises autonomous mode.  It
// returns false if a stop is requested while waiting.
func (c *Controller) WaitForAuth() bool {
	for {
		if c.stop.Load() {
			return false
		}
		if c.auth.Authorized() {
			return true
		}
		time.Sleep(c.quantum)
	}
}
