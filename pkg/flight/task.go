package flight

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Task is the handle a behavior receives when it is dispatched.  It is
// the only way to change the controller state, and it stops working
// once the behavior it was issued to has returned.
type Task struct {
	c *Controller
	l hclog.Logger

	id    TaskID
	gen   uint32
	runID string

	ctx    context.Context
	cancel context.CancelFunc
}

// ID returns the identifier the task was dispatched under.
func (t *Task) ID() TaskID { return t.id }

// RunID uniquely identifies this dispatch.
func (t *Task) RunID() string { return t.runID }

// Logger returns a logger annotated with the task identity.
func (t *Task) Logger() hclog.Logger { return t.l }

// Context is cancelled once the task should stop or has ended.
func (t *Task) Context() context.Context { return t.ctx }

// State returns the current controller state.
func (t *Task) State() State { return t.c.State() }

// SetState changes the controller state and returns the previous one.
// Calls made after the task has ended are ignored.
func (t *Task) SetState(s State) State {
	for {
		old := t.c.word.Load()
		prev, id, gen := unpack(old)
		if gen != t.gen || id == TaskNone {
			return prev
		}
		if prev == s {
			return prev
		}
		if t.c.word.CompareAndSwap(old, pack(s, id, gen)) {
			t.c.stateChanged(s, id)
			return prev
		}
	}
}

// ShouldStop reports whether the task should wind up.
func (t *Task) ShouldStop() bool { return t.c.ShouldStop() }

// Sleep is a stop-aware sleep, see Controller.Sleep.
func (t *Task) Sleep(d time.Duration) bool { return t.c.Sleep(d) }

// WaitForAuth waits for autonomous mode, see Controller.WaitForAuth.
func (t *Task) WaitForAuth() bool { return t.c.WaitForAuth() }

// Actuator returns the flight board.
func (t *Task) Actuator() Actuator { return t.c.actuator }

// Position returns the GPS.
func (t *Task) Position() PositionSource { return t.c.position }

// Orientation returns the IMU, or nil if it is not fitted.
func (t *Task) Orientation() OrientationSource { return t.c.orientation }

// Range returns the LIDAR, or nil if it is not fitted.
func (t *Task) Range() RangeSource { return t.c.rng }

// Signaller returns the buzzer.
func (t *Task) Signaller() Signaller { return t.c.signaller }

// Launch returns the position the aircraft was brought up at.
func (t *Task) Launch() Fix { return t.c.launch }
