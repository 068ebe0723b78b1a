// Package flight contains the flight controller.  The controller ties
// in all the sensors and actuators, and makes sure that exactly one
// task is flying the aircraft at any moment.
package flight

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultQuantum is the longest that any blocking call will go
	// without checking for a stop request.
	DefaultQuantum = 200 * time.Millisecond

	// DefaultReapTimeout is how long Dispatch waits for the
	// previous task to exit.
	DefaultReapTimeout = 200 * time.Millisecond

	// DefaultRetries is the number of retries after the first
	// attempt to initialise a collaborator.
	DefaultRetries = 2

	// DefaultRetryInterval is the pause between attempts.
	DefaultRetryInterval = time.Second
)

// Controller is the base controller for the aircraft.  It is a passive
// object: all of its methods are safe to call from any goroutine.
type Controller struct {
	l   hclog.Logger
	obs []Observer

	newActuator    func() (Actuator, error)
	newPosition    func() (PositionSource, error)
	newOrientation func() (OrientationSource, error)
	newRange       func() (RangeSource, error)
	newSignaller   func() (Signaller, error)

	actuator    Actuator
	position    PositionSource
	orientation OrientationSource
	rng         RangeSource
	signaller   Signaller
	auth        Authorizer

	launch Fix

	retries       uint64
	retryInterval time.Duration
	quantum       time.Duration
	reapTimeout   time.Duration

	word atomic.Uint64
	stop atomic.Bool

	taskMutex sync.Mutex
	gen       uint32
	done      chan struct{}
}

// New brings up all the collaborators and blocks until the position
// source has a fix.  Cancelling ctx is the only way to abandon the
// wait for a fix.  A controller is only usable if New returns without
// error.
func New(ctx context.Context, opts ...Option) (*Controller, error) {
	c := &Controller{
		l:             hclog.NewNullLogger(),
		signaller:     nullSignaller{},
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
		quantum:       DefaultQuantum,
		reapTimeout:   DefaultReapTimeout,
	}
	for _, o := range opts {
		o(c)
	}

	if c.newActuator == nil {
		return nil, fmt.Errorf("%w: actuator", ErrMissingCollaborator)
	}
	if c.newPosition == nil {
		return nil, fmt.Errorf("%w: position source", ErrMissingCollaborator)
	}

	var err error
	if c.newSignaller != nil {
		s, err := initialise(ctx, c, "buzzer", c.newSignaller, false)
		if err != nil {
			return nil, err
		}
		if s != nil {
			c.signaller = s
		}
	}
	if c.actuator, err = initialise(ctx, c, "flight board", c.newActuator, true); err != nil {
		return nil, err
	}
	if c.position, err = initialise(ctx, c, "GPS", c.newPosition, true); err != nil {
		return nil, err
	}
	if c.newOrientation != nil {
		if c.orientation, err = initialise(ctx, c, "IMU", c.newOrientation, false); err != nil {
			return nil, err
		}
	}
	if c.newRange != nil {
		if c.rng, err = initialise(ctx, c, "LIDAR", c.newRange, false); err != nil {
			return nil, err
		}
	}

	if c.auth == nil {
		a, ok := c.actuator.(Authorizer)
		if !ok {
			return nil, fmt.Errorf("%w: authorizer", ErrMissingCollaborator)
		}
		c.auth = a
	}

	c.actuator.Stop()
	if err := c.waitForFix(ctx); err != nil {
		return nil, err
	}
	c.launch = c.position.Latest()

	c.l.Info("Initialised components!", "imu", c.orientation != nil, "lidar", c.rng != nil)
	c.signaller.Play(200*time.Millisecond, 200, 100)
	return c, nil
}

// initialise attempts to construct an item with a fixed backoff
// between attempts.  Failing to bring up a required item is fatal,
// failing an optional one leaves it unset.
func initialise[T any](ctx context.Context, c *Controller, what string, f func() (T, error), required bool) (T, error) {
	var item T
	attempts := 0

	op := func() error {
		attempts++
		v, err := f()
		c.bringUpAttempt(what, err)
		if err != nil {
			return err
		}
		item = v
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.l.Warn("Failed to initialise component; retrying", "component", what, "error", err, "retry_in", next)
		c.signaller.Play(200*time.Millisecond, 40, 100)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), c.retries), ctx)
	err := backoff.RetryNotify(op, b, notify)
	if err == nil {
		c.l.Debug("Initialised component", "component", what, "attempts", attempts)
		return item, nil
	}

	if ctx.Err() != nil {
		return item, &BringUpError{Component: what, Attempts: attempts, Err: ctx.Err()}
	}
	if required {
		c.l.Error("Failed to initialise required component", "component", what, "attempts", attempts, "error", err)
		return item, &BringUpError{Component: what, Attempts: attempts, Err: err}
	}
	c.l.Warn("Failed to initialise component; skipping", "component", what, "attempts", attempts)
	var zero T
	return zero, nil
}

// waitForFix blocks until the position source reports a fix.  Flying
// without a position is not safe, so there is no timeout.
func (c *Controller) waitForFix(ctx context.Context) error {
	if c.position.HasFix() {
		return nil
	}

	c.l.Info("Waiting for a GPS fix")
	c.word.Store(pack(StateAwaitingFix, TaskNone, 0))
	c.stateChanged(StateAwaitingFix, TaskNone)

	t := time.NewTicker(c.quantum)
	defer t.Stop()
	for polls := 0; !c.position.HasFix(); polls++ {
		if polls%5 == 0 {
			c.signaller.Play(100*time.Millisecond, 800, 50)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNoFix, ctx.Err())
		case <-t.C:
		}
	}

	c.l.Info("GPS fix acquired")
	c.word.Store(pack(StateStopped, TaskNone, 0))
	c.stateChanged(StateStopped, TaskNone)
	return nil
}

// State returns the current controller state.
func (c *Controller) State() State {
	s, _, _ := unpack(c.word.Load())
	return s
}

// TaskID returns the identifier of the running task, or TaskNone.
func (c *Controller) TaskID() TaskID {
	_, id, _ := unpack(c.word.Load())
	return id
}

// Snapshot returns the state and task as they were at a single
// instant.
func (c *Controller) Snapshot() Status {
	s, id, _ := unpack(c.word.Load())
	return Status{
		State:       s,
		Description: s.Description(),
		Task:        id,
		Stopping:    c.stop.Load(),
	}
}

// Launch returns the fix that was current when the controller
// finished bringing up.
func (c *Controller) Launch() Fix { return c.launch }

// HasOrientation reports whether the IMU came up.
func (c *Controller) HasOrientation() bool { return c.orientation != nil }

// HasRange reports whether the LIDAR came up.
func (c *Controller) HasRange() bool { return c.rng != nil }

// Readings returns the latest fix, attitude, and range.
func (c *Controller) Readings() Readings {
	var r Readings
	if c.position.HasFix() {
		f := c.position.Latest()
		r.Fix = &f
	}
	if c.HasOrientation() {
		o := c.orientation.Latest()
		r.Orientation = &o
	}
	if c.HasRange() {
		d := c.rng.Latest()
		r.Range = &d
	}
	return r
}

// Shutdown asks the running task to stop and waits for it to exit
// or for the context to expire.  The actuator is left neutral.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.taskMutex.Lock()
	done := c.done
	c.taskMutex.Unlock()

	defer c.actuator.Stop()
	if done == nil {
		return nil
	}

	c.l.Info("Waiting for task to end...")
	c.RequestStop()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) stateChanged(s State, id TaskID) {
	for _, o := range c.obs {
		o.StateChanged(s, id)
	}
}

func (c *Controller) bringUpAttempt(what string, err error) {
	for _, o := range c.obs {
		o.BringUpAttempt(what, err)
	}
}
