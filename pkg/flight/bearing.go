package flight

import (
	"time"

	"github.com/gizmo-platform/copter/pkg/navigation"
)

const (
	// DefaultBearingMove is how long the aircraft flies forwards
	// to infer its bearing.
	DefaultBearingMove = 5 * time.Second

	// MinBearingDistance is the least distance, in metres, that must
	// be covered for the bearing to be trusted.
	MinBearingDistance = 1.0

	bearingSpeed      = 40
	bearingFixTimeout = 200 * time.Millisecond
)

// InferBearing works out which way the aircraft is pointing by flying
// forwards for the given duration and measuring the track over the
// ground.  It returns the bearing in degrees from true north.  The
// controller state is restored on return whether or not it succeeded.
func (t *Task) InferBearing(move time.Duration) (float64, bool) {
	if move <= 0 {
		move = DefaultBearingMove
	}
	act := t.c.actuator
	gps := t.c.position

	t.l.Info("Inferring the current bearing...")
	prev := t.SetState(StateInferBearing)
	defer t.SetState(prev)

	act.Stop()
	if !gps.WaitForFix(bearingFixTimeout) {
		t.l.Info("Bearing inference failed - no GPS fix")
		return 0, false
	}

	start := gps.Latest()
	act.SetOutput(Output{Elevator: bearingSpeed})
	moved := t.Sleep(move)
	act.Stop()
	if !moved {
		t.l.Info("Bearing inference cancelled")
		return 0, false
	}
	end := gps.Latest()

	dist := navigation.Distance(start.Position, end.Position)
	if dist < MinBearingDistance {
		t.l.Info("Bearing inference failed - did not move far enough", "distance", dist)
		return 0, false
	}

	bearing := navigation.Bearing(start.Position, end.Position)
	t.l.Info("Inferred bearing", "bearing", bearing, "heading", end.Heading, "distance", dist)
	return bearing, true
}
