// Package gpio drives the pins on the companion computer: the buzzer
// used for operator feedback and the switch that hands control to the
// autopilot.
package gpio

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// OutputPin is the part of a periph pin that the buzzer needs.
type OutputPin interface {
	Out(l gpio.Level) error
}

// InputPin is the part of a periph pin that the switch needs.
type InputPin interface {
	In(pull gpio.Pull, edge gpio.Edge) error
	Read() gpio.Level
}

var (
	hostOnce sync.Once
	hostErr  error
)

// lookup initialises the host drivers once and finds a pin by name.
func lookup(name string) (gpio.PinIO, error) {
	hostOnce.Do(func() { _, hostErr = host.Init() })
	if hostErr != nil {
		return nil, fmt.Errorf("initialising host: %w", hostErr)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no such pin: %s", name)
	}
	return p, nil
}
