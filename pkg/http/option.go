package http

import (
	"errors"
	"net/http"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/gizmo-platform/copter/pkg/eventstream"
	"github.com/gizmo-platform/copter/pkg/tasks"
)

// Option enables variadic option passing to the server on startup.
type Option func(*Server) error

// WithLogger sets the logger for the server.
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) error {
		s.l = l.Named("web")
		return nil
	}
}

// WithController sets the flight controller that the API drives.
func WithController(c Controller) Option {
	return func(s *Server) error {
		if c == nil {
			return errors.New("controller may not be nil")
		}
		s.ctl = c
		return nil
	}
}

// WithTuning sets the tuning handed to the tasks that get dispatched.
func WithTuning(t tasks.Tuning) Option {
	return func(s *Server) error {
		s.tune = t
		return nil
	}
}

// WithGeofence limits where a tracked user may lead the aircraft.
func WithGeofence(g *tasks.Geofence) Option {
	return func(s *Server) error {
		s.fence = g
		return nil
	}
}

// WithMetricsHandler mounts the prometheus handler at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) error {
		s.metrics = h
		return nil
	}
}

// WithEventHandler mounts the websocket event stream at /events.
func WithEventHandler(h http.HandlerFunc) Option {
	return func(s *Server) error {
		s.events = h
		return nil
	}
}

// WithEventPublisher sends notices about API requests to the event
// stream.
func WithEventPublisher(p eventstream.Publisher) Option {
	return func(s *Server) error {
		s.es = p
		return nil
	}
}

// WithVersion sets the version reported by the status endpoint.
func WithVersion(v string) Option {
	return func(s *Server) error {
		s.version = v
		return nil
	}
}

// WithStartupWG allows a waitgroup to be passed in so the server can
// notify when its finished startup tasks.
func WithStartupWG(w *sync.WaitGroup) Option {
	return func(s *Server) error {
		w.Add(1)
		s.swg = w
		return nil
	}
}
