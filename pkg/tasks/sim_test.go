package tasks

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

var origin = navigation.Coord{Lat: -31.98, Lon: 115.818}

// sim is a crude aircraft.  It turns at a rate set by the rudder and
// moves along its heading at a rate set by the elevator.  It is the
// flight board, the GPS, and the autonomous mode switch.
type sim struct {
	mu           sync.Mutex
	north, east  float64
	hdg, alt     float64
	out          flight.Output
	armed        bool
	takeoffAlt   float64
	rtlCalls     int
	rtlErr       error
	hasFix       bool
	neutralCount int

	roi        *navigation.Coord3D
	roiSets    int
	roiCleared bool

	auto atomic.Bool
	stop chan struct{}
}

func newSim(t *testing.T) *sim {
	s := &sim{hasFix: true, armed: true, stop: make(chan struct{})}
	s.auto.Store(true)
	go s.loop()
	t.Cleanup(func() { close(s.stop) })
	return s
}

func (s *sim) loop() {
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-tick.C:
			s.step()
		}
	}
}

func (s *sim) step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hdg = math.Mod(s.hdg+float64(s.out.Rudder)*0.2+360, 360)
	d := float64(s.out.Elevator) * 0.005
	s.north += d * math.Cos(s.hdg*math.Pi/180)
	s.east += d * math.Sin(s.hdg*math.Pi/180)
	s.alt += float64(s.out.Throttle) * 0.001
	if s.takeoffAlt > s.alt {
		s.alt = min(s.alt+0.05, s.takeoffAlt)
	}
}

func (s *sim) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = flight.Output{}
	s.neutralCount++
}

func (s *sim) SetOutput(o flight.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = o
}

func (s *sim) Output() flight.Output {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

func (s *sim) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *sim) setArmed(a bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed = a
}

func (s *sim) Takeoff(alt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.takeoffAlt = alt
	return nil
}

func (s *sim) ReturnToLaunch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtlCalls++
	return s.rtlErr
}

func (s *sim) SetRegionOfInterest(c navigation.Coord3D) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roi = &c
	s.roiSets++
	s.roiCleared = false
	return nil
}

func (s *sim) ClearRegionOfInterest() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roi = nil
	s.roiCleared = true
	return nil
}

// pointing returns the last region of interest, how many times one
// was set, and whether it has since been cleared.
func (s *sim) pointing() (*navigation.Coord3D, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roi, s.roiSets, s.roiCleared
}

func (s *sim) Authorized() bool { return s.auto.Load() }

func (s *sim) HasFix() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasFix
}

func (s *sim) setFix(f bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasFix = f
}

func (s *sim) WaitForFix(time.Duration) bool { return s.HasFix() }

func (s *sim) Latest() flight.Fix {
	s.mu.Lock()
	defer s.mu.Unlock()
	return flight.Fix{
		Position: navigation.Offset(origin, s.north, s.east),
		Alt:      s.alt,
		Heading:  s.hdg,
		Time:     time.Now(),
	}
}

func (s *sim) place(north, east, hdg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.north, s.east, s.hdg = north, east, hdg
}

// plainBoard hides the guided commands of the sim.
type plainBoard struct{ s *sim }

func (p plainBoard) Stop()                     { p.s.Stop() }
func (p plainBoard) SetOutput(o flight.Output) { p.s.SetOutput(o) }
func (p plainBoard) Output() flight.Output     { return p.s.Output() }

// stateLog records every state the controller passes through.
type stateLog struct {
	flight.ObserverBase

	mu     sync.Mutex
	states []flight.State
}

func (l *stateLog) StateChanged(s flight.State, _ flight.TaskID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) saw(s flight.State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, x := range l.states {
		if x == s {
			return true
		}
	}
	return false
}

func newController(t *testing.T, act flight.Actuator, s *sim, opts ...flight.Option) (*flight.Controller, *stateLog) {
	t.Helper()
	log := new(stateLog)
	base := []flight.Option{
		flight.WithActuator(func() (flight.Actuator, error) { return act, nil }),
		flight.WithPositionSource(func() (flight.PositionSource, error) { return s, nil }),
		flight.WithAuthorizer(s),
		flight.WithQuantum(time.Millisecond),
		flight.WithRetryInterval(time.Millisecond),
		flight.WithObserver(log),
	}
	c, err := flight.New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("flight.New: %v", err)
	}
	return c, log
}

func testTuning() Tuning {
	tune := DefaultTuning()
	tune.Idle = 5 * time.Millisecond
	tune.Update = time.Millisecond
	return tune
}

func waitIdle(t *testing.T, c *flight.Controller) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.TaskID() != flight.TaskNone {
		if time.Now().After(deadline) {
			t.Fatalf("task still running in state %v", c.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func waitState(t *testing.T, c *flight.Controller, s flight.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.State() != s {
		if time.Now().After(deadline) {
			t.Fatalf("never reached %v, stuck in %v", s, c.State())
		}
		time.Sleep(time.Millisecond)
	}
}

var errRefused = errors.New("refused")
