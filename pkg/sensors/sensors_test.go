package sensors

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

type fakeFeed struct {
	err      error
	handlers map[string]func([]byte)
}

func (f *fakeFeed) Subscribe(sensor string, h func([]byte)) error {
	if f.err != nil {
		return f.err
	}
	if f.handlers == nil {
		f.handlers = make(map[string]func([]byte))
	}
	f.handlers[sensor] = h
	return nil
}

func TestGPSFix(t *testing.T) {
	g, err := NewGPS(WithFixTimeout(50*time.Millisecond), WithPollInterval(time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if g.HasFix() {
		t.Fatal("fix before any reading")
	}
	if g.WaitForFix(10 * time.Millisecond) {
		t.Fatal("WaitForFix found a fix that does not exist")
	}

	g.Update(flight.Fix{Position: navigation.Coord{Lat: 1, Lon: 2}})
	if !g.HasFix() {
		t.Fatal("no fix after a reading")
	}
	if g.Latest().Time.IsZero() {
		t.Error("reading was not timestamped")
	}

	time.Sleep(60 * time.Millisecond)
	if g.HasFix() {
		t.Error("stale reading still counts as a fix")
	}
	if g.Latest().Position.Lat != 1 {
		t.Error("stale reading was discarded")
	}
}

func TestGPSWaitForFix(t *testing.T) {
	g, _ := NewGPS(WithPollInterval(time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Update(flight.Fix{})
	}()
	if !g.WaitForFix(time.Second) {
		t.Fatal("fix never arrived")
	}
}

func TestFeedSubscriptions(t *testing.T) {
	f := new(fakeFeed)

	g, err := NewGPS(WithFeed(f))
	if err != nil {
		t.Fatal(err)
	}
	i, err := NewIMU(WithFeed(f))
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewLidar(WithFeed(f))
	if err != nil {
		t.Fatal(err)
	}

	f.handlers["gps"]([]byte(`{"lat":51.5,"lon":-0.1,"alt":30,"ground_alt":10,"heading":90}`))
	f.handlers["imu"]([]byte(`{"roll":0.1,"pitch":0.2,"yaw":0.3}`))
	f.handlers["lidar"]([]byte(`{"range":4.5}`))
	f.handlers["lidar"]([]byte(`not json`))

	fix := g.Latest()
	if fix.Position.Lat != 51.5 || fix.Position.Lon != -0.1 {
		t.Errorf("position = %+v", fix.Position)
	}
	if math.Abs(fix.RelAlt()-20) > 1e-9 {
		t.Errorf("relative altitude = %f", fix.RelAlt())
	}
	if !g.HasFix() {
		t.Error("feed reading did not give a fix")
	}
	if o := i.Latest(); o.Yaw != 0.3 {
		t.Errorf("orientation = %+v", o)
	}
	if r := l.Latest(); r != 4.5 {
		t.Errorf("range = %f", r)
	}
}

func TestFeedFailure(t *testing.T) {
	cause := errors.New("broker unreachable")
	f := &fakeFeed{err: cause}

	if _, err := NewGPS(WithFeed(f)); !errors.Is(err, cause) {
		t.Errorf("NewGPS error = %v", err)
	}
	if _, err := NewIMU(WithFeed(f)); !errors.Is(err, cause) {
		t.Errorf("NewIMU error = %v", err)
	}
	if _, err := NewLidar(WithFeed(f)); !errors.Is(err, cause) {
		t.Errorf("NewLidar error = %v", err)
	}
}
