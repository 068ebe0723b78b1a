package eventstream

import (
	"github.com/gizmo-platform/copter/pkg/flight"
)

// EventType is used to identify what type of event is crossing the
// wire.
type EventType uint8

const (
	// EventTypeUnknown is used as a zero value to ensure that this
	// always has to be set to something.
	EventTypeUnknown EventType = iota

	// EventTypeError is pushed across the wire in the event that the
	// system has encountered some kind of error that was
	// non-recoverable.
	EventTypeError

	// EventTypeLogLine is used to signify that the event in question
	// is a log line, which may be associated with one or more
	// other events.
	EventTypeLogLine

	// EventTypeState is sent every time the controller state or
	// the owning task changes.
	EventTypeState

	// EventTypeTaskStart is sent when a task is dispatched.
	EventTypeTaskStart

	// EventTypeTaskEnd is sent when a task returns.
	EventTypeTaskEnd

	// EventTypeDispatchRejected is sent when a task could not be
	// dispatched.
	EventTypeDispatchRejected

	// EventTypeStop is sent when a stop is requested.
	EventTypeStop
)

// EventError contains the underlying error that occured.
type EventError struct {
	Type  EventType
	Error string
}

// EventLogLine contains a message from a log.
type EventLogLine struct {
	Type    EventType
	Message string
}

// EventState contains the controller state.
type EventState struct {
	Type        EventType
	State       flight.State
	Description string
	Task        flight.TaskID
}

// EventTask describes a task starting, ending, or being refused.
type EventTask struct {
	Type   EventType
	Task   flight.TaskID
	RunID  string `json:",omitempty"`
	Reason string `json:",omitempty"`
}
