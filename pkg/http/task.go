package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
	"github.com/gizmo-platform/copter/pkg/tasks"
)

var (
	errBusy      = errors.New("another task is running")
	errNoTracker = errors.New("user tracking is not running")
	errNoBearing = errors.New("no bearing has been requested")
)

// bearingTask is the part of a bearing inference the API reports on.
type bearingTask interface {
	Finished() bool
	Bearing() (float64, bool)
}

type bearingResponse struct {
	Finished bool    `json:"finished"`
	Found    bool    `json:"found"`
	Bearing  float64 `json:"bearing,omitempty"`
}

type dispatchResponse struct {
	Task flight.TaskID `json:"task"`
}

// dispatch hands the behavior to the controller and writes the
// result.  It reports whether the behavior was accepted.
func (s *Server) dispatch(w http.ResponseWriter, id flight.TaskID, b flight.Behavior, opts any) bool {
	if !s.ctl.Dispatch(id, b, opts) {
		s.es.PublishError(fmt.Errorf("%s: %w", id, errBusy))
		s.writeError(w, http.StatusConflict, errBusy)
		return false
	}
	accepted(w, id)
	return true
}

func accepted(w http.ResponseWriter, id flight.TaskID) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(dispatchResponse{Task: id})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", tasks.ErrBadOptions, err)
	}
	return nil
}

func (s *Server) takeoff(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Alt float64 `json:"alt"`
	}{}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := tasks.UtilityOptions{Method: tasks.MethodTakeoff, Alt: req.Alt}
	if err := opts.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.l.Info("Takeoff requested", "alt", req.Alt)
	s.dispatch(w, flight.TaskUtility, tasks.NewUtility(s.tune), opts)
}

func (s *Server) waypoints(w http.ResponseWriter, r *http.Request) {
	var opts tasks.WaypointOptions
	if err := decode(r, &opts); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := opts.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.l.Info("Waypoints requested", "mode", opts.Mode, "points", len(opts.Points))
	s.dispatch(w, flight.TaskWaypoints, tasks.NewWaypoints(s.tune), opts)
}

func (s *Server) startBearing(w http.ResponseWriter, r *http.Request) {
	req := struct {
		Seconds float64 `json:"seconds"`
	}{}
	if err := decode(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	opts := tasks.UtilityOptions{
		Method: tasks.MethodInferBearing,
		Move:   time.Duration(req.Seconds * float64(time.Second)),
	}
	if err := opts.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	u := tasks.NewUtility(s.tune)
	s.bearingMutex.Lock()
	defer s.bearingMutex.Unlock()
	if s.dispatch(w, flight.TaskUtility, u, opts) {
		s.bearing = u
	}
}

// bearingResult reports on the most recent bearing inference.
func (s *Server) bearingResult(w http.ResponseWriter, r *http.Request) {
	s.bearingMutex.Lock()
	b := s.bearing
	s.bearingMutex.Unlock()
	if b == nil {
		s.writeError(w, http.StatusNotFound, errNoBearing)
		return
	}

	resp := bearingResponse{Finished: b.Finished()}
	resp.Bearing, resp.Found = b.Bearing()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) mapping(w http.ResponseWriter, r *http.Request) {
	var opts tasks.MappingOptions
	if err := decode(r, &opts); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := opts.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.l.Info("Environmental mapping requested", "radius", opts.Radius, "rings", opts.Rings)
	s.dispatch(w, flight.TaskEnvironmentalMapping, tasks.NewMapper(s.tune), opts)
}

// returnToLaunch preempts whatever is running.  The running task is
// asked to stop, and has a short while to get out of the way.
func (s *Server) returnToLaunch(w http.ResponseWriter, r *http.Request) {
	s.l.Info("Return to launch requested via API", "remote", r.RemoteAddr)
	s.ctl.RequestStop()

	deadline := time.Now().Add(s.idleTimeout)
	for s.ctl.Snapshot().Task != flight.TaskNone {
		if time.Now().After(deadline) {
			s.writeError(w, http.StatusConflict, errBusy)
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}

	opts := tasks.UtilityOptions{Method: tasks.MethodReturnToLaunch}
	s.dispatch(w, flight.TaskUtility, tasks.NewUtility(s.tune), opts)
}

func (s *Server) follow(w http.ResponseWriter, r *http.Request) {
	t := tasks.NewUserTracker(s.tune, s.fence)

	s.trackerMutex.Lock()
	defer s.trackerMutex.Unlock()
	if !s.ctl.Dispatch(flight.TaskUserTracking, t, nil) {
		s.writeError(w, http.StatusConflict, errBusy)
		return
	}
	s.tracker = t
	accepted(w, flight.TaskUserTracking)
}

func (s *Server) userPosition(w http.ResponseWriter, r *http.Request) {
	var c navigation.Coord
	if err := decode(r, &c); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.trackerMutex.Lock()
	t := s.tracker
	s.trackerMutex.Unlock()
	if t == nil || t.Finished() {
		s.writeError(w, http.StatusConflict, errNoTracker)
		return
	}

	if err := t.SetUserPosition(c); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
