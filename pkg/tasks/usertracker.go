package tasks

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

// ErrOutsideGeofence is returned for user positions that the aircraft
// may not follow.
var ErrOutsideGeofence = errors.New("position is outside the geofence")

// Geofence is the box that a tracked user must stay inside.
type Geofence struct {
	SW navigation.Coord
	NE navigation.Coord
}

// UserTracker follows the position reported by the user's device.
type UserTracker struct {
	tune     Tuning
	fence    *Geofence
	finished atomic.Bool

	mu     sync.Mutex
	target navigation.Coord
	known  bool
}

// NewUserTracker returns a user tracking task.  If fence is not nil
// positions outside it are refused.
func NewUserTracker(tune Tuning, fence *Geofence) *UserTracker {
	return &UserTracker{tune: tune, fence: fence}
}

// SetUserPosition updates where the user is.
func (u *UserTracker) SetUserPosition(c navigation.Coord) error {
	if u.fence != nil && !navigation.InBounds(c, u.fence.SW, u.fence.NE) {
		return ErrOutsideGeofence
	}
	u.mu.Lock()
	u.target = c
	u.known = true
	u.mu.Unlock()
	return nil
}

func (u *UserTracker) userPosition() (navigation.Coord, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.target, u.known
}

// Run follows the user until told to stop.  The aircraft holds
// position while it is within the follow distance, or while the user
// position is unknown.
func (u *UserTracker) Run(t *flight.Task, _ any) {
	defer u.finished.Store(true)

	if !awaitStart(t) || !awaitFix(t) {
		return
	}

	t.SetState(flight.StateUserTracking)
	t.Logger().Info("Tracking user!")
	gps := t.Position()
	act := t.Actuator()
	for !t.ShouldStop() {
		if !gps.HasFix() {
			t.Logger().Warn("GPS fix was lost! Falling back to manual mode.")
			t.Signaller().Play(time.Second, 100, 100)
			return
		}

		here := gps.Latest()
		target, ok := u.userPosition()
		if ok && navigation.Distance(here.Position, target) > u.tune.FollowDistance {
			act.SetOutput(steer(here, heading(t, here), navigation.Coord3D{Coord: target}, u.tune.Speed))
		} else {
			act.Stop()
		}
		t.Sleep(u.tune.Update)
	}
}

// Finished reports whether the task has returned.
func (u *UserTracker) Finished() bool { return u.finished.Load() }
