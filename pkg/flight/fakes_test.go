package flight

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gizmo-platform/copter/pkg/navigation"
)

type fakeActuator struct {
	mu    sync.Mutex
	out   Output
	stops int
}

func (a *fakeActuator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	a.out = Output{}
}

func (a *fakeActuator) SetOutput(o Output) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out = o
}

func (a *fakeActuator) Output() Output {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out
}

func (a *fakeActuator) Stops() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stops
}

type authActuator struct {
	fakeActuator
	fakeAuth
}

type fakeGPS struct {
	fix atomic.Bool

	mu    sync.Mutex
	fixes []Fix
	idx   int
}

func (g *fakeGPS) HasFix() bool                   { return g.fix.Load() }
func (g *fakeGPS) WaitForFix(time.Duration) bool { return g.fix.Load() }

func (g *fakeGPS) Latest() Fix {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.fixes) == 0 {
		return Fix{}
	}
	f := g.fixes[min(g.idx, len(g.fixes)-1)]
	g.idx++
	return f
}

func (g *fakeGPS) setFixes(f ...Fix) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fixes = f
	g.idx = 0
}

type fakeAuth struct{ ok atomic.Bool }

func (a *fakeAuth) Authorized() bool { return a.ok.Load() }

type countingSignaller struct{ n atomic.Int32 }

func (s *countingSignaller) Play(time.Duration, int, int) { s.n.Add(1) }

type harness struct {
	c    *Controller
	act  *fakeActuator
	gps  *fakeGPS
	auth *fakeAuth
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		act:  new(fakeActuator),
		gps:  new(fakeGPS),
		auth: new(fakeAuth),
	}
	h.gps.fix.Store(true)
	h.auth.ok.Store(true)

	base := []Option{
		WithActuator(func() (Actuator, error) { return h.act, nil }),
		WithPositionSource(func() (PositionSource, error) { return h.gps, nil }),
		WithAuthorizer(h.auth),
		WithQuantum(5 * time.Millisecond),
		WithRetryInterval(time.Millisecond),
	}

	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.c = c
	return h
}

// blocker runs until released or told to stop.
type blocker struct {
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool

	running    *atomic.Int32
	maxRunning *atomic.Int32

	task *Task
	seen Output
}

func newBlocker() *blocker {
	return &blocker{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blocker) Run(t *Task, _ any) {
	b.task = t
	b.seen = t.Actuator().Output()
	if b.running != nil {
		n := b.running.Add(1)
		for {
			m := b.maxRunning.Load()
			if n <= m || b.maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		defer b.running.Add(-1)
	}
	close(b.started)
	select {
	case <-b.release:
	case <-t.Context().Done():
	}
	b.finished.Store(true)
}

func (b *blocker) Finished() bool { return b.finished.Load() }

// funcBehavior adapts a function into a behavior.
type funcBehavior struct {
	f        func(t *Task, opts any)
	finished atomic.Bool
}

func (b *funcBehavior) Run(t *Task, opts any) {
	defer b.finished.Store(true)
	b.f(t, opts)
}

func (b *funcBehavior) Finished() bool { return b.finished.Load() }

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func fixAt(lat, lon float64) Fix {
	return Fix{Position: navigation.Coord{Lat: lat, Lon: lon}, Time: time.Now()}
}
