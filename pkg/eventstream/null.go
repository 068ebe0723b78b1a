package eventstream

import (
	"github.com/gizmo-platform/copter/pkg/flight"
)

// Publisher is the part of the stream that other packages push free
// form messages into.
type Publisher interface {
	PublishError(error)
	PublishLogLine(string)
}

// NullStream doesn't publish events anywhere and is mostly for
// testing or non-server CLI cmdlets.
type NullStream struct {
	flight.ObserverBase
}

// NewNullStreamer hands back a null stream instance that discards
// everything.
func NewNullStreamer() *NullStream {
	return new(NullStream)
}

// PublishError discards all errors.
func (ns *NullStream) PublishError(_ error) {}

// PublishLogLine discards all log lines.
func (ns *NullStream) PublishLogLine(_ string) {}
