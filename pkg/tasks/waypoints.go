package tasks

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

// Mode selects how the waypoints are visited.
type Mode string

const (
	// ModeNormal visits each point in order.
	ModeNormal Mode = "normal"

	// ModeLawnmower sweeps back and forth over the box with
	// corners at the first two points.
	ModeLawnmower Mode = "lawnmower"

	// ModeSpiral spirals about the first point, from the second
	// point to the third (or back to the second), looking at the
	// centre.
	ModeSpiral Mode = "spiral"

	// ModeSpiralOut flies the same spiral as ModeSpiral but looks
	// outwards.
	ModeSpiralOut Mode = "spiral_out"
)

// MinSpiralRadius is the smallest radius, in metres, a spiral may
// have at either end.
const MinSpiralRadius = 0.5

// MaxWaypointAlt is the highest altitude a waypoint may ask for.
const MaxWaypointAlt = 100

// WaypointOptions tells a Waypoints task where to go.
type WaypointOptions struct {
	Mode   Mode                 `json:"mode"`
	Points []navigation.Coord3D `json:"points"`
}

// Validate checks that the points make sense for the mode.
func (o WaypointOptions) Validate() error {
	switch o.Mode {
	case ModeNormal, "":
		if len(o.Points) == 0 {
			return fmt.Errorf("%w: no waypoints given", ErrBadOptions)
		}
	case ModeLawnmower:
		if len(o.Points) != 2 {
			return fmt.Errorf("%w: lawnmower needs exactly 2 points, got %d", ErrBadOptions, len(o.Points))
		}
	case ModeSpiral, ModeSpiralOut:
		if len(o.Points) < 2 || len(o.Points) > 3 {
			return fmt.Errorf("%w: spiral needs a centre and 1 or 2 edge points, got %d points", ErrBadOptions, len(o.Points))
		}
		for i, p := range o.Points[1:] {
			if navigation.Distance(o.Points[0].Coord, p.Coord) < MinSpiralRadius {
				return fmt.Errorf("%w: spiral edge %d is within %.1fm of the centre", ErrBadOptions, i+1, MinSpiralRadius)
			}
		}
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrBadOptions, o.Mode)
	}
	for i, p := range o.Points {
		if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
			return fmt.Errorf("%w: point %d is not on the earth", ErrBadOptions, i)
		}
		if p.Alt < 0 || p.Alt > MaxWaypointAlt {
			return fmt.Errorf("%w: point %d altitude must be in [0, %d]", ErrBadOptions, i, MaxWaypointAlt)
		}
	}
	return nil
}

// plan expands the options into the points to fly to.
func (o WaypointOptions) plan(tune Tuning) []navigation.Waypoint {
	var pts []navigation.Coord3D
	switch o.Mode {
	case ModeSpiral, ModeSpiralOut:
		edge2 := o.Points[len(o.Points)-1]
		return navigation.SpiralPattern(o.Points[0], o.Points[1], edge2, o.Mode == ModeSpiralOut)
	case ModeLawnmower:
		pts = navigation.LawnmowerPattern(o.Points[0], o.Points[1], tune.SweepSpacing)
	default:
		pts = o.Points
	}

	out := make([]navigation.Waypoint, len(pts))
	for i, p := range pts {
		out[i] = navigation.Waypoint{Coord3D: p}
	}
	return out
}

// idle is how long to wait at each point.  Patterns fly straight
// through.
func (o WaypointOptions) idle(tune Tuning) time.Duration {
	if o.Mode == ModeNormal || o.Mode == "" {
		return tune.Idle
	}
	return 0
}

// Waypoints flies the aircraft through a list of points.
type Waypoints struct {
	tune     Tuning
	finished atomic.Bool
	reached  atomic.Int32
}

// NewWaypoints returns a waypoints task.
func NewWaypoints(tune Tuning) *Waypoints {
	return &Waypoints{tune: tune}
}

// Run flies the points in opts, which must be a WaypointOptions.
func (w *Waypoints) Run(t *flight.Task, opts any) {
	defer w.finished.Store(true)

	o, ok := opts.(WaypointOptions)
	if !ok {
		t.Logger().Error("Waypoints task started without options", "opts", opts)
		return
	}
	if err := o.Validate(); err != nil {
		t.Logger().Error("Refusing to run", "error", err)
		return
	}

	pts := o.plan(w.tune)
	idle := o.idle(w.tune)
	for i, p := range pts {
		t.Logger().Debug("Waypoint", "index", i, "lat", p.Lat, "lon", p.Lon, "alt", p.Alt)
	}

	if !awaitStart(t) || !awaitFix(t) {
		return
	}

	roi := newPointer(t)
	defer roi.clear()

	sig := t.Signaller()
	for i, p := range pts {
		t.Logger().Info("Moving to next waypoint.", "index", i)
		sig.Play(time.Second, 600, 100)
		t.SetState(flight.StateWaypointsMoving)
		roi.set(p.ROI)
		if !flyTo(t, p.Coord3D, w.tune) {
			return
		}

		t.Logger().Info("At waypoint, idling...", "index", i)
		w.reached.Add(1)
		sig.Play(time.Second, 1000, 100)
		t.SetState(flight.StateWaypointsIdling)
		if !t.Sleep(idle) {
			return
		}
	}

	t.Logger().Info("Completed waypoint navigation.")
	sig.Play(2*time.Second, 2000, 100)
	t.SetState(flight.StateWaypointsFinished)
}

// Finished reports whether the task has returned.
func (w *Waypoints) Finished() bool { return w.finished.Load() }

// Reached returns the number of waypoints visited so far.
func (w *Waypoints) Reached() int { return int(w.reached.Load()) }
