package sensors

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option configures a sensor store.
type Option func(*base)

// WithLogger sets the logger for the sensor.
func WithLogger(l hclog.Logger) Option { return func(b *base) { b.l = l } }

// WithFeed attaches the sensor to a source of readings.  The sensor
// subscribes to the feed when it is constructed, and construction
// fails if the subscription does.
func WithFeed(f Feed) Option { return func(b *base) { b.feed = f } }

// WithFixTimeout sets how long a GPS fix remains valid after the last
// reading arrived.
func WithFixTimeout(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.fixTimeout = d
		}
	}
}

// WithPollInterval sets how often WaitForFix checks for a fix.
func WithPollInterval(d time.Duration) Option {
	return func(b *base) {
		if d > 0 {
			b.poll = d
		}
	}
}
