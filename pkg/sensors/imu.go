package sensors

import (
	"sync"

	"github.com/gizmo-platform/copter/pkg/flight"
)

// IMU is an orientation source backed by the most recent reading.
type IMU struct {
	base

	mu   sync.RWMutex
	last flight.Orientation
}

// NewIMU returns an IMU store.
func NewIMU(opts ...Option) (*IMU, error) {
	i := &IMU{base: newBase("imu", opts)}
	if err := attach(&i.base, "imu", i.Update); err != nil {
		return nil, err
	}
	return i, nil
}

// Update stores a new orientation.
func (i *IMU) Update(o flight.Orientation) {
	i.mu.Lock()
	i.last = o
	i.mu.Unlock()
}

// Latest returns the most recent orientation.
func (i *IMU) Latest() flight.Orientation {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.last
}

// LidarReading is the wire form of a rangefinder update.
type LidarReading struct {
	Range float64 `json:"range"`
}

// Lidar is a range source backed by the most recent reading.
type Lidar struct {
	base

	mu   sync.RWMutex
	last float64
}

// NewLidar returns a rangefinder store.
func NewLidar(opts ...Option) (*Lidar, error) {
	l := &Lidar{base: newBase("lidar", opts)}
	if err := attach(&l.base, "lidar", func(r LidarReading) { l.Update(r.Range) }); err != nil {
		return nil, err
	}
	return l, nil
}

// Update stores a new range in metres.
func (l *Lidar) Update(r float64) {
	l.mu.Lock()
	l.last = r
	l.mu.Unlock()
}

// Latest returns the most recent range in metres.
func (l *Lidar) Latest() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last
}
