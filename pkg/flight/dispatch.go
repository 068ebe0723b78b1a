package flight

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Dispatch runs a behavior if no other behavior currently owns the
// aircraft.  The flight board is neutralised before the behavior
// starts, and again after it returns.  Dispatch never blocks for
// longer than the reap timeout, and returns true iff the behavior was
// started.
func (c *Controller) Dispatch(id TaskID, b Behavior, opts any) bool {
	if id == TaskNone || b == nil {
		c.l.Warn("Refusing to dispatch an empty task", "task", id)
		c.dispatchRejected(id, "invalid")
		return false
	}

	c.taskMutex.Lock()
	defer c.taskMutex.Unlock()

	if current := c.TaskID(); current != TaskNone {
		c.l.Warn("Task is already running; not running new task", "running", current, "task", id)
		c.dispatchRejected(id, "busy")
		return false
	}

	if c.done != nil {
		select {
		case <-c.done:
		default:
			c.l.Warn("Waiting for previous task to exit...")
			t := time.NewTimer(c.reapTimeout)
			select {
			case <-c.done:
				t.Stop()
			case <-t.C:
				c.l.Warn("Wait timed out - giving up", "task", id)
				c.dispatchRejected(id, "unreaped")
				return false
			}
		}
	}

	c.actuator.Stop()
	c.gen++
	c.stop.Store(false)
	c.word.Store(pack(StateStopped, id, c.gen))

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		c:      c,
		id:     id,
		gen:    c.gen,
		runID:  uuid.NewString(),
		ctx:    ctx,
		cancel: cancel,
	}
	t.l = c.l.Named("task").With("task", id, "run", t.runID)

	done := make(chan struct{})
	c.done = done

	c.l.Info("Running new task", "task", id, "run", t.runID)
	c.stateChanged(StateStopped, id)
	for _, o := range c.obs {
		o.TaskStarted(id, t.runID)
	}

	go c.watch(t, done)
	go c.run(t, b, opts, done)
	return true
}

// run is the body of the task goroutine.  However the behavior exits,
// the flight board ends up neutral and the controller idle.
func (c *Controller) run(t *Task, b Behavior, opts any, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			t.l.Error("Task panicked", "panic", r)
		}
		t.cancel()
		c.actuator.Stop()
		c.word.Store(pack(StateStopped, TaskNone, t.gen))
		t.l.Info("Task ended", "finished", b.Finished())
		c.stateChanged(StateStopped, TaskNone)
		for _, o := range c.obs {
			o.TaskEnded(t.id, t.runID)
		}
	}()

	b.Run(t, opts)
}

// watch cancels the task context as soon as the task should stop, so
// that behaviors blocked in context aware calls are released without
// having to poll.
func (c *Controller) watch(t *Task, done chan struct{}) {
	tick := time.NewTicker(c.quantum)
	defer tick.Stop()

	for {
		select {
		case <-done:
			return
		case <-tick.C:
			if c.ShouldStop() {
				t.cancel()
				return
			}
		}
	}
}

func (c *Controller) dispatchRejected(id TaskID, reason string) {
	for _, o := range c.obs {
		o.DispatchRejected(id, reason)
	}
}
