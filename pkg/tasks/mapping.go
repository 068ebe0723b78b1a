package tasks

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gizmo-platform/copter/pkg/flight"
	"github.com/gizmo-platform/copter/pkg/navigation"
)

const (
	// DefaultMappingRadius is the orbit radius in metres when none
	// is given and the lidar cannot supply one.
	DefaultMappingRadius = 7.0

	// MinMappingRadius and MaxMappingRadius bound the orbit, in
	// metres.
	MinMappingRadius = 1.0
	MaxMappingRadius = 50.0

	// MaxMappingRings is the most orbits a single mapping will fly.
	MaxMappingRings = 10

	// MaxMappingClimb is the most the aircraft climbs between
	// rings, in metres.
	MaxMappingClimb = 10.0

	defaultMappingRings = 3
	defaultMappingStep  = 30.0
	defaultMappingClimb = 1.0

	// mappingDwell is how long the aircraft holds still at each
	// point so the camera gets a steady frame.
	mappingDwell = 100 * time.Millisecond
)

// MappingOptions describes the orbits flown by a Mapper.  Zero values
// take the defaults.
type MappingOptions struct {
	// Radius of the orbits in metres.  When zero the lidar range
	// to the subject is used if it is fitted and sane.
	Radius float64 `json:"radius"`

	// Rings is the number of orbits.
	Rings int `json:"rings"`

	// Step is the angle between points on an orbit, in degrees.
	Step float64 `json:"step"`

	// Climb is the height gained between orbits, in metres.
	Climb float64 `json:"climb"`
}

// Validate checks the options are within the limits of the airframe.
func (o MappingOptions) Validate() error {
	if o.Radius != 0 && (o.Radius < MinMappingRadius || o.Radius > MaxMappingRadius) {
		return fmt.Errorf("%w: radius must be in [%.0f, %.0f]", ErrBadOptions, MinMappingRadius, MaxMappingRadius)
	}
	if o.Rings < 0 || o.Rings > MaxMappingRings {
		return fmt.Errorf("%w: rings must be in [0, %d]", ErrBadOptions, MaxMappingRings)
	}
	if o.Step != 0 && (o.Step < 1 || o.Step > 180) {
		return fmt.Errorf("%w: step must be in [1, 180] degrees", ErrBadOptions)
	}
	if o.Climb < 0 || o.Climb > MaxMappingClimb {
		return fmt.Errorf("%w: climb must be in [0, %.0f]", ErrBadOptions, MaxMappingClimb)
	}
	return nil
}

func (o MappingOptions) withDefaults() MappingOptions {
	if o.Rings == 0 {
		o.Rings = defaultMappingRings
	}
	if o.Step == 0 {
		o.Step = defaultMappingStep
	}
	if o.Climb == 0 {
		o.Climb = defaultMappingClimb
	}
	return o
}

// Mapper orbits whatever is in front of the aircraft with the camera
// trained on it, climbing a little after each ring.
type Mapper struct {
	tune     Tuning
	finished atomic.Bool
	visited  atomic.Int32

	mu     sync.Mutex
	centre navigation.Coord3D
	radius float64
}

// NewMapper returns a mapping task.
func NewMapper(tune Tuning) *Mapper {
	return &Mapper{tune: tune}
}

// Run flies the orbits described by opts, which must be a
// MappingOptions.
func (m *Mapper) Run(t *flight.Task, opts any) {
	defer m.finished.Store(true)

	o, ok := opts.(MappingOptions)
	if !ok {
		t.Logger().Error("Mapping task started without options", "opts", opts)
		return
	}
	if err := o.Validate(); err != nil {
		t.Logger().Error("Refusing to run", "error", err)
		return
	}
	o = o.withDefaults()

	if !awaitStart(t) || !awaitFix(t) {
		return
	}
	t.SetState(flight.StateMapping)

	here := t.Position().Latest()
	radius := m.orbitRadius(t, o)
	centre := navigation.Coord3D{
		Coord: navigation.OffsetPolar(here.Position, radius, heading(t, here)),
		Alt:   here.RelAlt(),
	}
	m.mu.Lock()
	m.centre, m.radius = centre, radius
	m.mu.Unlock()
	t.Logger().Info("Mapping", "lat", centre.Lat, "lon", centre.Lon, "radius", radius, "rings", o.Rings)

	roi := newPointer(t)
	defer roi.clear()
	roi.set(&centre)

	// Start from the aircraft's side of the subject so the first
	// point is close by.
	start := navigation.Bearing(centre.Coord, here.Position)
	for ring := 0; ring < o.Rings; ring++ {
		alt := 0.0
		if ring > 0 || centre.Alt > 0 {
			alt = centre.Alt + float64(ring)*o.Climb
		}
		for a := 0.0; a < 360; a += o.Step {
			p := navigation.Coord3D{Coord: navigation.OffsetPolar(centre.Coord, radius, start+a), Alt: alt}
			if !flyTo(t, p, m.tune) {
				return
			}
			m.visited.Add(1)
			if !t.Sleep(mappingDwell) {
				return
			}
		}
		t.Logger().Info("Finished ring", "ring", ring+1, "of", o.Rings)
	}

	t.Logger().Info("Mapping complete.", "points", m.Visited())
	t.Signaller().Play(2*time.Second, 2000, 100)
}

// orbitRadius picks the radius of the orbit.  An explicit radius wins,
// then the lidar's idea of how far away the subject is.
func (m *Mapper) orbitRadius(t *flight.Task, o MappingOptions) float64 {
	if o.Radius > 0 {
		return o.Radius
	}
	if r := t.Range(); r != nil {
		d := r.Latest()
		if d >= MinMappingRadius && d <= MaxMappingRadius {
			t.Logger().Debug("Using lidar range as orbit radius", "range", d)
			return d
		}
		t.Logger().Debug("Lidar range unusable", "range", d)
	}
	return DefaultMappingRadius
}

// Finished reports whether the task has returned.
func (m *Mapper) Finished() bool { return m.finished.Load() }

// Visited returns the number of orbit points flown through so far.
func (m *Mapper) Visited() int { return int(m.visited.Load()) }

// Orbit returns the centre and radius being orbited.  Both are zero
// until the task has a fix.
func (m *Mapper) Orbit() (navigation.Coord3D, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.centre, m.radius
}
