// Package http provides the control API for the aircraft.  Ground
// stations use it to start and stop tasks and to watch what the
// controller is doing.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/gizmo-platform/copter/pkg/eventstream"
	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/tasks"
)

// Controller is the part of the flight controller that the API uses.
type Controller interface {
	Snapshot() flight.Status
	Readings() flight.Readings
	RequestStop()
	Dispatch(id flight.TaskID, b flight.Behavior, opts any) bool
}

// Server manages the HTTP serving components
type Server struct {
	r   chi.Router
	n   *http.Server
	l   hclog.Logger
	ctl Controller
	swg *sync.WaitGroup

	tune    tasks.Tuning
	fence   *tasks.Geofence
	version string

	metrics http.Handler
	events  http.HandlerFunc
	es      eventstream.Publisher

	trackerMutex sync.Mutex
	tracker      *tasks.UserTracker

	bearingMutex sync.Mutex
	bearing      bearingTask

	// idleTimeout bounds how long a request that preempts the
	// running task waits for it to exit.
	idleTimeout time.Duration
}

// NewServer returns a server ready to Serve.
func NewServer(opts ...Option) (*Server, error) {
	x := new(Server)
	x.r = chi.NewRouter()
	x.n = &http.Server{}
	x.l = hclog.NewNullLogger()
	x.tune = tasks.DefaultTuning()
	x.version = "dev"
	x.idleTimeout = 2 * time.Second
	x.es = eventstream.NewNullStreamer()

	for _, o := range opts {
		if err := o(x); err != nil {
			return nil, err
		}
	}
	if x.ctl == nil {
		return nil, errors.New("a controller is required")
	}

	x.r.Use(middleware.Recoverer)

	x.r.Get("/status", x.status)
	x.r.Post("/stop", x.stop)
	x.r.Post("/rtl", x.returnToLaunch)

	x.r.Route("/task", func(r chi.Router) {
		r.Post("/takeoff", x.takeoff)
		r.Post("/waypoints", x.waypoints)
		r.Post("/bearing", x.startBearing)
		r.Get("/bearing", x.bearingResult)
		r.Post("/mapping", x.mapping)
		r.Post("/follow", x.follow)
	})
	x.r.Put("/user/position", x.userPosition)

	if x.metrics != nil {
		x.r.Handle("/metrics", x.metrics)
	}
	if x.events != nil {
		x.r.Get("/events", x.events)
	}

	return x, nil
}

// Handler returns the router, mostly for testing.
func (s *Server) Handler() http.Handler { return s.r }

// Serve binds and serves http on the bound socket.  An error will be
// returned if the server cannot initialize.
func (s *Server) Serve(bind string) error {
	s.l.Info("HTTP is starting", "bind", bind)
	s.n.Addr = bind
	s.n.Handler = s.r
	if s.swg != nil {
		s.swg.Done()
	}
	if err := s.n.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.l.Info("Stopping...")
	return s.n.Shutdown(ctx)
}

type statusResponse struct {
	flight.Status
	flight.Readings
	Version string `json:"version"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		Status:   s.ctl.Snapshot(),
		Readings: s.ctl.Readings(),
		Version:  s.version,
	})
}

func (s *Server) stop(w http.ResponseWriter, r *http.Request) {
	s.l.Info("All stop requested via API", "remote", r.RemoteAddr)
	s.ctl.RequestStop()
	s.es.PublishLogLine("All stop requested from " + r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
