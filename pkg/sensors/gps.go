package sensors

import (
	"sync"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

// GPSReading is the wire form of a GPS update.
type GPSReading struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Alt       float64 `json:"alt"`
	GroundAlt float64 `json:"ground_alt"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
}

// GPS is a position source backed by the most recent reading.
type GPS struct {
	base

	mu   sync.RWMutex
	last flight.Fix
}

// NewGPS returns a GPS store, subscribed to its feed if one was
// given.
func NewGPS(opts ...Option) (*GPS, error) {
	g := &GPS{base: newBase("gps", opts)}
	if err := attach(&g.base, "gps", g.updateReading); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GPS) updateReading(r GPSReading) {
	g.Update(flight.Fix{
		Position:  navigation.Coord{Lat: r.Lat, Lon: r.Lon},
		Alt:       r.Alt,
		GroundAlt: r.GroundAlt,
		Speed:     r.Speed,
		Heading:   r.Heading,
	})
}

// Update stores a new fix.  A zero Time is replaced with the current
// time.
func (g *GPS) Update(f flight.Fix) {
	if f.Time.IsZero() {
		f.Time = time.Now()
	}
	g.mu.Lock()
	g.last = f
	g.mu.Unlock()
}

// HasFix reports whether a reading arrived recently enough to trust.
func (g *GPS) HasFix() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.last.Time.IsZero() && time.Since(g.last.Time) < g.fixTimeout
}

// WaitForFix waits up to timeout for a fix.  A zero timeout checks
// once.
func (g *GPS) WaitForFix(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if g.HasFix() {
			return true
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		time.Sleep(min(g.poll, remaining))
	}
}

// Latest returns the most recent fix, valid or not.
func (g *GPS) Latest() flight.Fix {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.last
}
