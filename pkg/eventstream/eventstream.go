package eventstream

import (
	"encoding/json"
	"fmt"

	"github.com/gizmo-platform/copter/pkg/flight"
)

// PublishError pushes an error out into the event stream.
func (es *EventStream) PublishError(err error) {
	es.publishEvent(EventError{
		Type:  EventTypeError,
		Error: err.Error(),
	}, false)
}

// PublishLogLine pushes a log message into the event stream.
func (es *EventStream) PublishLogLine(msg string) {
	es.publishEvent(EventLogLine{
		Type:    EventTypeLogLine,
		Message: msg,
	}, false)
}

// StateChanged pushes the new controller state.
func (es *EventStream) StateChanged(s flight.State, id flight.TaskID) {
	es.publishEvent(EventState{
		Type:        EventTypeState,
		State:       s,
		Description: s.Description(),
		Task:        id,
	}, true)
}

// TaskStarted pushes a task start.
func (es *EventStream) TaskStarted(id flight.TaskID, runID string) {
	es.publishEvent(EventTask{Type: EventTypeTaskStart, Task: id, RunID: runID}, false)
}

// TaskEnded pushes a task end.
func (es *EventStream) TaskEnded(id flight.TaskID, runID string) {
	es.publishEvent(EventTask{Type: EventTypeTaskEnd, Task: id, RunID: runID}, false)
}

// DispatchRejected pushes a refused dispatch.
func (es *EventStream) DispatchRejected(id flight.TaskID, reason string) {
	es.publishEvent(EventTask{Type: EventTypeDispatchRejected, Task: id, Reason: reason}, false)
}

// BringUpAttempt reports failed bring up attempts as errors.
func (es *EventStream) BringUpAttempt(component string, err error) {
	if err != nil {
		es.PublishError(fmt.Errorf("initialising %s: %w", component, err))
	}
}

// StopRequested pushes a stop event.
func (es *EventStream) StopRequested() {
	es.publishEvent(EventTask{Type: EventTypeStop}, false)
}

func (es *EventStream) publishEvent(e any, retain bool) {
	bytes, err := json.Marshal(e)
	if err != nil {
		es.l.Warn("Error marshaling event", "error", err)
		return
	}
	es.publish(bytes, retain)
}
