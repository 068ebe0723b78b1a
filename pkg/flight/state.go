package flight

import (
	"fmt"
)

// State is the gross activity the controller is currently engaged
// in.  Exactly one state is current at any time.
type State uint16

const (
	// StateStopped is the idle state, and the state every task
	// starts in.
	StateStopped State = iota
	StateReturnToLaunch
	StateAwaitingFix
	StateAwaitingAuth
	StateInferBearing
	StateUtilityAwaitingArm
	StateUtilityTakeoff
	StateWaypointsMoving
	StateWaypointsIdling
	StateWaypointsFinished
	StateTrackingSearching
	StateTrackingLocked
	StateUserTracking
	StateMapping
)

var stateNames = map[State]string{
	StateStopped:            "stopped",
	StateReturnToLaunch:     "rtl",
	StateAwaitingFix:        "awaiting-fix",
	StateAwaitingAuth:       "awaiting-auth",
	StateInferBearing:       "infer-bearing",
	StateUtilityAwaitingArm: "awaiting-arm",
	StateUtilityTakeoff:     "takeoff",
	StateWaypointsMoving:    "waypoints-moving",
	StateWaypointsIdling:    "waypoints-idling",
	StateWaypointsFinished:  "waypoints-finished",
	StateTrackingSearching:  "tracking-searching",
	StateTrackingLocked:     "tracking-locked",
	StateUserTracking:       "user-tracking",
	StateMapping:            "mapping",
}

var stateDescriptions = map[State]string{
	StateStopped:            "All stop. Standing by.",
	StateReturnToLaunch:     "Returning to launch.",
	StateAwaitingFix:        "Waiting for a GPS fix.",
	StateAwaitingAuth:       "Awaiting auto mode.",
	StateInferBearing:       "Inferring the bearing.",
	StateUtilityAwaitingArm: "Waiting for the motors to be armed.",
	StateUtilityTakeoff:     "Taking off.",
	StateWaypointsMoving:    "Moving to the waypoint.",
	StateWaypointsIdling:    "Idling at the current waypoint.",
	StateWaypointsFinished:  "Finished the waypoints navigation.",
	StateTrackingSearching:  "Searching for an object to track.",
	StateTrackingLocked:     "Tracking an object.",
	StateUserTracking:       "Following the user.",
	StateMapping:            "Mapping the environment.",
}

// String returns the short machine friendly name of the state.
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", uint16(s))
}

// Description is the operator facing text for the state.
func (s State) Description() string {
	if d, ok := stateDescriptions[s]; ok {
		return d
	}
	return "Unknown state."
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for k, v := range stateNames {
		if v == string(b) {
			*s = k
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", b)
}

// TaskID tags the category of the behavior that currently owns the
// vehicle.
type TaskID uint16

const (
	// TaskNone means that no behavior is running.
	TaskNone TaskID = iota
	TaskWaypoints
	TaskObjectTracking
	TaskUserTracking
	TaskUtility
	TaskEnvironmentalMapping
)

var taskNames = map[TaskID]string{
	TaskNone:                 "none",
	TaskWaypoints:            "waypoints",
	TaskObjectTracking:       "object-tracking",
	TaskUserTracking:         "user-tracking",
	TaskUtility:              "utility",
	TaskEnvironmentalMapping: "environmental-mapping",
}

func (id TaskID) String() string {
	if n, ok := taskNames[id]; ok {
		return n
	}
	return fmt.Sprintf("task(%d)", uint16(id))
}

// MarshalText encodes the task by name.
func (id TaskID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText decodes a task name.
func (id *TaskID) UnmarshalText(b []byte) error {
	for k, v := range taskNames {
		if v == string(b) {
			*id = k
			return nil
		}
	}
	return fmt.Errorf("unknown task %q", b)
}

// Status is a consistent snapshot of the controller.
type Status struct {
	State       State  `json:"state"`
	Description string `json:"description"`
	Task        TaskID `json:"task"`
	Stopping    bool   `json:"stopping"`
}

// Readings are the most recent values from the sensors.  Sensors
// that are not fitted, and a GPS without a fix, are left out.
type Readings struct {
	Fix         *Fix         `json:"fix,omitempty"`
	Orientation *Orientation `json:"orientation,omitempty"`
	Range       *float64     `json:"range,omitempty"`
}

// The state, the task, and a dispatch generation share one word so
// that no reader can ever see a task paired with a state from a
// different dispatch.
func pack(s State, id TaskID, gen uint32) uint64 {
	return uint64(s) | uint64(id)<<16 | uint64(gen)<<32
}

func unpack(w uint64) (State, TaskID, uint32) {
	return State(w & 0xffff), TaskID((w >> 16) & 0xffff), uint32(w >> 32)
}
