// Package tasks contains the behaviors that can be dispatched onto the
// flight controller.  Each behavior is good for a single dispatch.
package tasks

import (
	"math"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

const (
	maxRudder   = 50
	maxThrottle = 30

	// Turn on the spot if the target is further off the nose than
	// this, in degrees.
	turnInPlace = 45.0

	// Start slowing down this far from the target, in metres.
	slowRadius = 10.0

	fixTimeout = 200 * time.Millisecond
)

// Tuning holds the parameters shared by the behaviors that move the
// aircraft around.
type Tuning struct {
	// Radius is how close to a point counts as being there, in
	// metres.
	Radius float64

	// AltRadius is how close to a point's altitude counts as being
	// there, in metres.
	AltRadius float64

	// Idle is how long to wait at each waypoint.
	Idle time.Duration

	// Update is the steering interval.
	Update time.Duration

	// Speed is the elevator setting when cruising.
	Speed int

	// SweepSpacing is the distance between lawnmower sweeps.
	SweepSpacing float64

	// FollowDistance is how far to stay from a tracked user.
	FollowDistance float64
}

// DefaultTuning returns the tuning used when nothing else is
// configured.
func DefaultTuning() Tuning {
	return Tuning{
		Radius:         2,
		AltRadius:      1,
		Idle:           5 * time.Second,
		Update:         200 * time.Millisecond,
		Speed:          40,
		SweepSpacing:   5,
		FollowDistance: 5,
	}
}

func clamp(v, lo, hi int) int { return min(max(v, lo), hi) }

// heading returns the direction the nose is pointing in degrees.  The
// IMU is preferred when it is fitted, since the GPS only knows the
// track over the ground.
func heading(t *flight.Task, f flight.Fix) float64 {
	if o := t.Orientation(); o != nil {
		return math.Mod(o.Latest().Yaw*180/math.Pi+360, 360)
	}
	return f.Heading
}

// steer works out the output that takes the aircraft from here
// towards target.  The rudder is proportional to the heading error,
// and the aircraft only moves forwards once it is roughly pointing
// the right way.
func steer(here flight.Fix, hdg float64, target navigation.Coord3D, speed int) flight.Output {
	dist := navigation.Distance(here.Position, target.Coord)
	bearingErr := navigation.NormaliseAngle(navigation.Bearing(here.Position, target.Coord) - hdg)

	o := flight.Output{Rudder: clamp(int(math.Round(bearingErr)), -maxRudder, maxRudder)}
	if math.Abs(bearingErr) < turnInPlace {
		o.Elevator = int(math.Ceil(float64(speed) * min(1, dist/slowRadius)))
	}
	if target.Alt != 0 {
		o.Throttle = clamp(int((target.Alt-here.RelAlt())*10), -maxThrottle, maxThrottle)
	}
	return o
}

// arrived reports whether here is within tolerance of target.
func arrived(here flight.Fix, target navigation.Coord3D, tune Tuning) bool {
	if navigation.Distance(here.Position, target.Coord) >= tune.Radius {
		return false
	}
	return target.Alt == 0 || math.Abs(here.RelAlt()-target.Alt) < tune.AltRadius
}

// flyTo steers towards target until the aircraft gets there.  It
// returns false if the task was stopped or the fix was lost on the
// way.
func flyTo(t *flight.Task, target navigation.Coord3D, tune Tuning) bool {
	gps := t.Position()
	act := t.Actuator()
	for {
		if t.ShouldStop() {
			return false
		}
		if !gps.HasFix() {
			t.Logger().Warn("GPS fix was lost! Falling back to manual mode.")
			t.Signaller().Play(time.Second, 100, 100)
			act.Stop()
			return false
		}
		here := gps.Latest()
		if arrived(here, target, tune) {
			act.Stop()
			return true
		}
		act.SetOutput(steer(here, heading(t, here), target, tune.Speed))
		if !t.Sleep(tune.Update) {
			return false
		}
	}
}

// awaitStart is the preamble shared by all the behaviors.
func awaitStart(t *flight.Task) bool {
	t.Logger().Info("Task initiated; awaiting authorisation...")
	t.SetState(flight.StateAwaitingAuth)
	if !t.WaitForAuth() {
		t.Logger().Info("All stop acknowledged; quitting!")
		return false
	}
	t.Logger().Info("Authorisation acknowledged.")
	return true
}

// awaitFix waits briefly for the GPS.
func awaitFix(t *flight.Task) bool {
	if !t.Position().WaitForFix(fixTimeout) {
		t.Logger().Warn("No GPS fix; quitting.")
		return false
	}
	return true
}

// pointer keeps the camera on a region of interest when the actuator
// can do that, and does nothing otherwise.
type pointer struct {
	t   *flight.Task
	act flight.PointingActuator
	on  bool
}

func newPointer(t *flight.Task) *pointer {
	p := &pointer{t: t}
	p.act, _ = t.Actuator().(flight.PointingActuator)
	return p
}

// set points the camera at roi.  A nil roi leaves it where it was.
func (p *pointer) set(roi *navigation.Coord3D) {
	if p.act == nil || roi == nil {
		return
	}
	if err := p.act.SetRegionOfInterest(*roi); err != nil {
		p.t.Logger().Warn("Could not set region of interest", "error", err)
		return
	}
	p.on = true
}

// clear releases the camera if it was ever pointed.
func (p *pointer) clear() {
	if !p.on {
		return
	}
	if err := p.act.ClearRegionOfInterest(); err != nil {
		p.t.Logger().Warn("Could not clear region of interest", "error", err)
	}
	p.on = false
}
