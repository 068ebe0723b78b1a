package flight

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option configures the controller.
type Option func(*Controller)

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *Controller) { c.l = l.Named("flight") }
}

// WithActuator provides the factory for the flight board.  The
// actuator is required.
func WithActuator(f func() (Actuator, error)) Option {
	return func(c *Controller) { c.newActuator = f }
}

// WithPositionSource provides the factory for the GPS.  The position
// source is required.
func WithPositionSource(f func() (PositionSource, error)) Option {
	return func(c *Controller) { c.newPosition = f }
}

// WithOrientationSource provides the factory for the IMU.  If the IMU
// cannot be brought up the controller continues without it.
func WithOrientationSource(f func() (OrientationSource, error)) Option {
	return func(c *Controller) { c.newOrientation = f }
}

// WithRangeSource provides the factory for the LIDAR.  If the LIDAR
// cannot be brought up the controller continues without it.
func WithRangeSource(f func() (RangeSource, error)) Option {
	return func(c *Controller) { c.newRange = f }
}

// WithSignaller provides the factory for the buzzer.  Without one the
// controller is silent.
func WithSignaller(f func() (Signaller, error)) Option {
	return func(c *Controller) { c.newSignaller = f }
}

// WithAuthorizer sets the source of the autonomous mode switch.  If
// none is set, the actuator must implement Authorizer.
func WithAuthorizer(a Authorizer) Option {
	return func(c *Controller) { c.auth = a }
}

// WithObserver attaches an observer.  May be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.obs = append(c.obs, o) }
}

// WithRetries sets how many times a failed collaborator is retried
// before giving up on it.
func WithRetries(n uint64) Option {
	return func(c *Controller) { c.retries = n }
}

// WithRetryInterval sets the pause between initialisation attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Controller) { c.retryInterval = d }
}

// WithQuantum sets the longest interval between checks for a stop
// request inside any blocking call.
func WithQuantum(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.quantum = d
		}
	}
}

// WithReapTimeout sets how long Dispatch will wait for a previous
// task to exit before refusing the new one.
func WithReapTimeout(d time.Duration) Option {
	return func(c *Controller) { c.reapTimeout = d }
}
