package gpio

import (
	"periph.io/x/periph/conn/gpio"
)

// AuthSwitch reads the autonomous mode switch.  The switch is wired so
// that a high level means the pilot has handed over control, and the
// pull down keeps a disconnected switch in manual.
type AuthSwitch struct {
	pin InputPin
}

// NewAuthSwitch configures the named pin as an input.
func NewAuthSwitch(name string) (*AuthSwitch, error) {
	p, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return newAuthSwitch(p)
}

func newAuthSwitch(p InputPin) (*AuthSwitch, error) {
	if err := p.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, err
	}
	return &AuthSwitch{pin: p}, nil
}

// Authorized reports whether the switch is in autonomous mode.
func (a *AuthSwitch) Authorized() bool {
	return a.pin.Read() == gpio.High
}
