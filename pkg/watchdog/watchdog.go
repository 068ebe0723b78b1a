// Package watchdog supervises a periodic signal, such as a heartbeat
// from a link partner, and calls back when it stops arriving.
package watchdog

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Option changes features on the dog.
type Option func(*Dog)

// The DogHandFunc is the hand that the dog bites if it doesn't get
// fed frequently enough.
type DogHandFunc func()

// Dog tracks the time since it was last fed, and bites if that grows
// longer than its food duration.  The dog bites once per hungry
// spell: after a bite it waits to be fed again before it can bite
// again.
type Dog struct {
	l hclog.Logger

	name string
	t    *time.Timer

	biteFunc     DogHandFunc
	foodDuration time.Duration

	mu      sync.Mutex
	hungry  bool
	stopped bool
}

// New gets you a new watchdog.  The dog starts out fed.
func New(opts ...Option) *Dog {
	d := &Dog{
		name: "spot",
		l:    hclog.NewNullLogger(),

		biteFunc:     func() {},
		foodDuration: time.Second * 10,
	}
	for _, o := range opts {
		o(d)
	}
	d.t = time.AfterFunc(d.foodDuration, d.Bite)
	return d
}

// Bite calls the hand function immediately.  Normally the dog's own
// timer does this, but it can be useful to bite by hand when the
// supervised link is known to be gone.
func (d *Dog) Bite() {
	d.mu.Lock()
	if d.stopped || d.hungry {
		d.mu.Unlock()
		return
	}
	d.hungry = true
	d.t.Stop()
	d.mu.Unlock()

	d.l.Error("BITE!", "dog", d.name)
	d.biteFunc()
}

// Feed convinces the dog not to bite for another food duration.
func (d *Dog) Feed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.hungry {
		d.l.Info("Fed after biting", "dog", d.name)
		d.hungry = false
	}
	d.t.Reset(d.foodDuration)
}

// Hungry reports whether the dog has bitten and not been fed since.
func (d *Dog) Hungry() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hungry
}

// Stop puts the dog to sleep for good.  It will not bite again.
func (d *Dog) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.t.Stop()
}

// WithHandFunction sets up the hand that the dog will bite.  Not
// setting this kind of defeats the point of having a watchdog.
func WithHandFunction(f DogHandFunc) Option { return func(d *Dog) { d.biteFunc = f } }

// WithFoodDuration sets up how long the dog stays fed for when you
// call Feed().
func WithFoodDuration(fd time.Duration) Option { return func(d *Dog) { d.foodDuration = fd } }

// WithName names the dog.  If you don't specify this, you'll likely
// get bit by a dog named spot.
func WithName(n string) Option { return func(d *Dog) { d.name = n } }

// WithLogger provides a logging instance to the watchdog.
func WithLogger(l hclog.Logger) Option { return func(d *Dog) { d.l = l.Named("watchdog") } }
