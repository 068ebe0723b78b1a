package gpio

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"periph.io/x/periph/conn/gpio"
)

type fakePin struct {
	mu    sync.Mutex
	level gpio.Level
	highs int

	pull gpio.Pull
	in   atomic.Bool
}

func (p *fakePin) Out(l gpio.Level) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l == gpio.High && p.level == gpio.Low {
		p.highs++
	}
	p.level = l
	return nil
}

func (p *fakePin) In(pull gpio.Pull, _ gpio.Edge) error {
	p.pull = pull
	return nil
}

func (p *fakePin) Read() gpio.Level {
	if p.in.Load() {
		return gpio.High
	}
	return gpio.Low
}

func (p *fakePin) state() (gpio.Level, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level, p.highs
}

func waitIdle(t *testing.T, b *Buzzer) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for b.Playing() {
		if time.Now().After(deadline) {
			t.Fatal("buzzer never went quiet")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestBuzzerPlaysTone(t *testing.T) {
	pin := new(fakePin)
	b, err := NewBuzzer("", WithOutputPin(pin))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	b.Play(100*time.Millisecond, 100, 100)
	time.Sleep(20 * time.Millisecond)
	waitIdle(t, b)

	level, highs := pin.state()
	if highs < 3 {
		t.Errorf("pin went high %d times, want about 10", highs)
	}
	if level != gpio.Low {
		t.Error("pin left high after the tone")
	}
}

func TestBuzzerSilentAtZeroVolume(t *testing.T) {
	pin := new(fakePin)
	b, _ := NewBuzzer("", WithOutputPin(pin))
	defer b.Close()

	b.Play(30*time.Millisecond, 200, -5)
	time.Sleep(10 * time.Millisecond)
	waitIdle(t, b)

	if _, highs := pin.state(); highs != 0 {
		t.Errorf("pin went high %d times at zero volume", highs)
	}
}

func TestBuzzerPreempts(t *testing.T) {
	pin := new(fakePin)
	b, _ := NewBuzzer("", WithOutputPin(pin))
	defer b.Close()

	start := time.Now()
	b.Play(10*time.Second, 40, 100)
	time.Sleep(10 * time.Millisecond)
	b.Play(20*time.Millisecond, 1000000, 100)
	time.Sleep(5 * time.Millisecond)
	waitIdle(t, b)

	if d := time.Since(start); d > 2*time.Second {
		t.Errorf("long tone was not cut off, played for %v", d)
	}
}

func TestAuthSwitch(t *testing.T) {
	pin := new(fakePin)
	a, err := newAuthSwitch(pin)
	if err != nil {
		t.Fatal(err)
	}
	if pin.pull != gpio.PullDown {
		t.Error("switch not pulled down")
	}
	if a.Authorized() {
		t.Error("authorised with the switch low")
	}
	pin.in.Store(true)
	if !a.Authorized() {
		t.Error("not authorised with the switch high")
	}
}
