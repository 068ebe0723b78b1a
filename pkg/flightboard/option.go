package flightboard

import (
	"io"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option configures the board.
type Option func(*Board)

// WithLogger sets the logging instance for the board.
func WithLogger(l hclog.Logger) Option { return func(b *Board) { b.l = l.Named("board") } }

// WithPortName sets the serial device to use.  The special name
// "auto" searches for the board by its USB identifiers.
func WithPortName(n string) Option { return func(b *Board) { b.portName = n } }

// WithBaudRate sets the serial line speed.
func WithBaudRate(r int) Option { return func(b *Board) { b.baud = r } }

// WithUSBID sets the vendor and product IDs searched for when the port
// is "auto".
func WithUSBID(vid, pid string) Option {
	return func(b *Board) {
		b.vid = vid
		b.pid = pid
	}
}

// WithRate sets how often the setpoint is sent to the board.
func WithRate(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.rate = d
		}
	}
}

// WithHeartbeatTimeout sets how long the board may go quiet before
// autonomous mode is considered withdrawn.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(b *Board) {
		if d > 0 {
			b.heartbeatTimeout = d
		}
	}
}

// WithPort uses an already open connection instead of a serial port.
func WithPort(p io.ReadWriteCloser) Option { return func(b *Board) { b.port = p } }
