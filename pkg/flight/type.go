package flight

import (
	"time"

	"github.com/gizmo-platform/copter/pkg/navigation"
)

// Output is a set of actuation values for the flight board.  Stick
// channels run from -100 to 100 with 0 as neutral, the gimbal runs
// from 0 to 90 degrees.
type Output struct {
	Aileron  int `json:"a"`
	Elevator int `json:"e"`
	Rudder   int `json:"r"`
	Throttle int `json:"t"`
	Gimbal   int `json:"g"`
}

// Fix is a single reading from the position source.
type Fix struct {
	Position  navigation.Coord `json:"position"`
	Alt       float64          `json:"alt"`
	GroundAlt float64          `json:"ground_alt"`
	Speed     float64          `json:"speed"`
	Heading   float64          `json:"heading"`
	Time      time.Time        `json:"time"`
}

// RelAlt is the altitude above the ground.
func (f Fix) RelAlt() float64 { return f.Alt - f.GroundAlt }

// Orientation holds a set of euler angles in radians.
type Orientation struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// Actuator drives the vehicle.  None of these calls may block.
type Actuator interface {
	Stop()
	SetOutput(Output)
	Output() Output
}

// GuidedActuator is implemented by actuators that can hand control
// to the autopilot for the phases of flight that it does better.
type GuidedActuator interface {
	Actuator
	Armed() bool
	Takeoff(alt float64) error
	ReturnToLaunch() error
}

// PointingActuator is implemented by actuators that can keep the
// camera trained on a point while the aircraft moves.
type PointingActuator interface {
	Actuator
	SetRegionOfInterest(navigation.Coord3D) error
	ClearRegionOfInterest() error
}

// PositionSource provides the current position fix.
type PositionSource interface {
	HasFix() bool
	WaitForFix(timeout time.Duration) bool
	Latest() Fix
}

// OrientationSource provides the current attitude.
type OrientationSource interface {
	Latest() Orientation
}

// RangeSource provides the distance to the nearest obstacle below or
// ahead, in metres.
type RangeSource interface {
	Latest() float64
}

// Signaller makes noises at the operator.  Play must not block.
type Signaller interface {
	Play(d time.Duration, frequency, volume int)
}

// Authorizer reports whether the pilot currently permits autonomous
// actuation.
type Authorizer interface {
	Authorized() bool
}

// Behavior is a unit of autonomous work.  Run is called exactly once,
// on its own goroutine, and must return promptly once the task asks
// it to stop.  Behaviors must leave the actuator neutral on return.
type Behavior interface {
	Run(t *Task, opts any)
	Finished() bool
}

// Observer is notified about controller activity.  Methods are called
// synchronously from the controller and must not block.
type Observer interface {
	StateChanged(State, TaskID)
	TaskStarted(id TaskID, runID string)
	TaskEnded(id TaskID, runID string)
	DispatchRejected(id TaskID, reason string)
	BringUpAttempt(component string, err error)
	StopRequested()
}

// ObserverBase provides no-op implementations of every Observer
// method so that implementations only need to override what they are
// interested in.
type ObserverBase struct{}

// StateChanged does nothing.
func (ObserverBase) StateChanged(State, TaskID) {}

// TaskStarted does nothing.
func (ObserverBase) TaskStarted(TaskID, string) {}

// TaskEnded does nothing.
func (ObserverBase) TaskEnded(TaskID, string) {}

// DispatchRejected does nothing.
func (ObserverBase) DispatchRejected(TaskID, string) {}

// BringUpAttempt does nothing.
func (ObserverBase) BringUpAttempt(string, error) {}

// StopRequested does nothing.
func (ObserverBase) StopRequested() {}

type nullSignaller struct{}

func (nullSignaller) Play(time.Duration, int, int) {}
