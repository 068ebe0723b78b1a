package gpio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"periph.io/x/periph/conn/gpio"
)

const (
	minFrequency = 10
	maxFrequency = 5000
)

type tone struct {
	d    time.Duration
	freq int
	vol  int
}

// Buzzer plays square wave tones on a pin.  Tones are played by a
// worker so that Play never blocks, and a new tone cuts off the one
// that is playing.
type Buzzer struct {
	l   hclog.Logger
	pin OutputPin

	tones   chan tone
	playing atomic.Bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// BuzzerOption configures the buzzer.
type BuzzerOption func(*Buzzer)

// WithBuzzerLogger sets the logger for the buzzer.
func WithBuzzerLogger(l hclog.Logger) BuzzerOption {
	return func(b *Buzzer) { b.l = l.Named("buzzer") }
}

// WithOutputPin drives the given pin rather than looking one up.
func WithOutputPin(p OutputPin) BuzzerOption { return func(b *Buzzer) { b.pin = p } }

// NewBuzzer returns a buzzer on the named pin.
func NewBuzzer(name string, opts ...BuzzerOption) (*Buzzer, error) {
	b := &Buzzer{
		l:     hclog.NewNullLogger(),
		tones: make(chan tone, 1),
		stop:  make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}
	if b.pin == nil {
		p, err := lookup(name)
		if err != nil {
			return nil, err
		}
		b.pin = p
	}
	if err := b.pin.Out(gpio.Low); err != nil {
		return nil, err
	}

	b.wg.Add(1)
	go b.run()
	return b, nil
}

// Play sounds a tone for d.  The frequency is clamped to what the
// buzzer can reproduce, and the volume runs from 0 to 100.
func (b *Buzzer) Play(d time.Duration, frequency, volume int) {
	t := tone{
		d:    d,
		freq: min(max(frequency, minFrequency), maxFrequency),
		vol:  min(max(volume, 0), 100),
	}
	for {
		select {
		case b.tones <- t:
			return
		default:
		}
		// Discard a tone that has not started yet.
		select {
		case <-b.tones:
		default:
		}
	}
}

// Playing reports whether a tone is sounding.
func (b *Buzzer) Playing() bool { return b.playing.Load() }

// Close silences the buzzer and stops the worker.
func (b *Buzzer) Close() {
	b.stopOnce.Do(func() { close(b.stop) })
	b.wg.Wait()
}

func (b *Buzzer) run() {
	defer b.wg.Done()
	defer b.pin.Out(gpio.Low)

	for {
		select {
		case <-b.stop:
			return
		case t := <-b.tones:
			for {
				b.playing.Store(true)
				next, preempted := b.play(t)
				b.playing.Store(false)
				if !preempted {
					break
				}
				t = next
			}
		}
	}
}

// play toggles the pin until the tone ends.  If a new tone arrives
// first it is returned with preempted set.
func (b *Buzzer) play(t tone) (next tone, preempted bool) {
	period := time.Second / time.Duration(t.freq)
	// Full volume is a 50% duty cycle.
	high := period * time.Duration(t.vol) / 200
	low := period - high

	end := time.NewTimer(t.d)
	defer end.Stop()
	defer b.pin.Out(gpio.Low)

	half := time.NewTimer(0)
	defer half.Stop()
	<-half.C

	level := gpio.Low
	for {
		wait := low
		if level == gpio.Low && high > 0 {
			level = gpio.High
			wait = high
		} else {
			level = gpio.Low
		}
		if err := b.pin.Out(level); err != nil {
			b.l.Warn("Error driving buzzer", "error", err)
			return tone{}, false
		}

		half.Reset(wait)
		select {
		case <-b.stop:
			return tone{}, false
		case <-end.C:
			return tone{}, false
		case n := <-b.tones:
			return n, true
		case <-half.C:
		}
	}
}
