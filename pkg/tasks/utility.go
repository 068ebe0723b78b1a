package tasks

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

// Method selects what a Utility task does.
type Method int

const (
	// MethodTakeoff climbs to a given altitude.
	MethodTakeoff Method = iota

	// MethodReturnToLaunch flies back to where the controller was
	// brought up.
	MethodReturnToLaunch

	// MethodInferBearing works out which way the aircraft is
	// facing.
	MethodInferBearing
)

// MaxTakeoffAlt is the highest takeoff that will be attempted, in
// metres.
const MaxTakeoffAlt = 100

// ErrBadOptions is returned when a task is given options it cannot
// use.
var ErrBadOptions = errors.New("invalid task options")

// UtilityOptions tells a Utility task what to do.
type UtilityOptions struct {
	Method Method

	// Alt is the takeoff altitude in metres.
	Alt float64

	// Move is how long to fly forwards when inferring the bearing.
	Move time.Duration
}

// Validate checks that the options make sense for the method.
func (o UtilityOptions) Validate() error {
	switch o.Method {
	case MethodTakeoff:
		if o.Alt <= 0 || o.Alt > MaxTakeoffAlt {
			return fmt.Errorf("%w: takeoff altitude must be in (0, %d]", ErrBadOptions, MaxTakeoffAlt)
		}
	case MethodReturnToLaunch:
	case MethodInferBearing:
		if o.Move < 0 {
			return fmt.Errorf("%w: negative move duration", ErrBadOptions)
		}
	default:
		return fmt.Errorf("%w: unknown method %d", ErrBadOptions, o.Method)
	}
	return nil
}

// Utility performs one-off manoeuvres.
type Utility struct {
	tune     Tuning
	finished atomic.Bool

	mu         sync.Mutex
	bearing    float64
	hasBearing bool
}

// NewUtility returns a utility task.  The tuning is used when the
// aircraft has to fly itself home.
func NewUtility(tune Tuning) *Utility {
	return &Utility{tune: tune}
}

// Run performs the method named in opts, which must be a
// UtilityOptions.
func (u *Utility) Run(t *flight.Task, opts any) {
	defer u.finished.Store(true)

	o, ok := opts.(UtilityOptions)
	if !ok {
		t.Logger().Error("Utility task started without options", "opts", opts)
		return
	}
	if err := o.Validate(); err != nil {
		t.Logger().Error("Refusing to run", "error", err)
		return
	}
	if !awaitStart(t) {
		return
	}

	switch o.Method {
	case MethodTakeoff:
		u.takeoff(t, o.Alt)
	case MethodReturnToLaunch:
		u.returnToLaunch(t)
	case MethodInferBearing:
		b, ok := t.InferBearing(o.Move)
		u.mu.Lock()
		u.bearing, u.hasBearing = b, ok
		u.mu.Unlock()
	}
}

// Finished reports whether the task has returned.
func (u *Utility) Finished() bool { return u.finished.Load() }

// Bearing returns the bearing found by MethodInferBearing.
func (u *Utility) Bearing() (float64, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.bearing, u.hasBearing
}

func (u *Utility) takeoff(t *flight.Task, alt float64) {
	g, ok := t.Actuator().(flight.GuidedActuator)
	if !ok {
		t.Logger().Error("Flight board cannot perform a guided takeoff")
		return
	}

	t.SetState(flight.StateUtilityAwaitingArm)
	t.Logger().Info("Waiting for motors to be armed before take-off...")
	for !g.Armed() {
		if !t.Sleep(100 * time.Millisecond) {
			return
		}
	}

	t.Logger().Info("Performing take-off!", "alt", alt)
	t.SetState(flight.StateUtilityTakeoff)
	if err := g.Takeoff(alt); err != nil {
		t.Logger().Warn("Could not take-off! Are you already flying?", "error", err)
		return
	}
	for t.Position().Latest().RelAlt() < alt-0.2 {
		if !t.Sleep(100 * time.Millisecond) {
			return
		}
	}
	t.Logger().Info("Takeoff complete!")
}

func (u *Utility) returnToLaunch(t *flight.Task) {
	t.SetState(flight.StateReturnToLaunch)
	if g, ok := t.Actuator().(flight.GuidedActuator); ok {
		err := g.ReturnToLaunch()
		if err == nil {
			t.Logger().Info("Flight board is returning to launch")
			return
		}
		t.Logger().Warn("Flight board refused to return to launch; flying home", "error", err)
	}

	if !awaitFix(t) {
		return
	}
	home := navigation.Coord3D{Coord: t.Launch().Position}
	if flyTo(t, home, u.tune) {
		t.Logger().Info("Arrived at launch point")
	}
}
