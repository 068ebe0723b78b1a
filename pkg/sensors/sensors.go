// Package sensors holds the latest readings from the aircraft's
// sensors.  Readings are pushed in from a Feed, normally the telemetry
// client, and read back by the flight controller.
package sensors

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultFixTimeout is how long a GPS reading counts as a fix.
	DefaultFixTimeout = 2 * time.Second

	// DefaultPollInterval is how often WaitForFix looks for a fix.
	DefaultPollInterval = 200 * time.Millisecond
)

// Feed delivers raw readings for a named sensor.  The handler is
// called with each JSON payload as it arrives.
type Feed interface {
	Subscribe(sensor string, h func(payload []byte)) error
}

type base struct {
	l    hclog.Logger
	feed Feed

	fixTimeout time.Duration
	poll       time.Duration
}

func newBase(name string, opts []Option) base {
	b := base{
		l:          hclog.NewNullLogger(),
		fixTimeout: DefaultFixTimeout,
		poll:       DefaultPollInterval,
	}
	for _, o := range opts {
		o(&b)
	}
	b.l = b.l.Named(name)
	return b
}

// attach subscribes the handler to the feed, decoding each payload
// into a fresh T.
func attach[T any](b *base, sensor string, update func(T)) error {
	if b.feed == nil {
		return nil
	}
	h := func(payload []byte) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			b.l.Warn("Discarding malformed reading", "sensor", sensor, "error", err)
			return
		}
		update(v)
	}
	if err := b.feed.Subscribe(sensor, h); err != nil {
		return fmt.Errorf("subscribing to %s: %w", sensor, err)
	}
	b.l.Debug("Subscribed to sensor feed", "sensor", sensor)
	return nil
}
