package flight

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestStopLatchesUntilNextDispatch(t *testing.T) {
	h := newHarness(t)

	h.c.RequestStop()
	h.c.RequestStop()
	if !h.c.ShouldStop() {
		t.Fatal("stop not requested")
	}
	time.Sleep(20 * time.Millisecond)
	if !h.c.ShouldStop() {
		t.Fatal("stop request decayed")
	}

	b := newBlocker()
	if !h.c.Dispatch(TaskUtility, b, nil) {
		t.Fatal("dispatch refused")
	}
	<-b.started
	if h.c.ShouldStop() {
		t.Error("dispatch did not clear the stop request")
	}
	close(b.release)
	waitFor(t, "task end", func() bool { return h.c.TaskID() == TaskNone })

	h.c.RequestStop()
	if !h.c.Snapshot().Stopping {
		t.Error("snapshot does not report the stop")
	}
}

func TestSleep(t *testing.T) {
	h := newHarness(t)

	start := time.Now()
	if !h.c.Sleep(30 * time.Millisecond) {
		t.Fatal("uninterrupted sleep reported a stop")
	}
	if d := time.Since(start); d < 30*time.Millisecond {
		t.Errorf("slept for %v", d)
	}

	h.c.RequestStop()
	start = time.Now()
	if h.c.Sleep(time.Second) {
		t.Fatal("sleep ignored an earlier stop")
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("stopped sleep took %v", d)
	}
}

func TestSleepInterruptedByStop(t *testing.T) {
	h := newHarness(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.c.RequestStop()
	}()

	start := time.Now()
	if h.c.Sleep(5 * time.Second) {
		t.Fatal("sleep ran to completion")
	}
	if d := time.Since(start); d > time.Second {
		t.Errorf("stop took %v to be noticed", d)
	}
}

func TestAuthorisationWithdrawalLatches(t *testing.T) {
	h := newHarness(t)

	h.auth.ok.Store(false)
	if !h.c.ShouldStop() {
		t.Fatal("withdrawn authorisation did not stop")
	}
	h.auth.ok.Store(true)
	if !h.c.ShouldStop() {
		t.Error("stop cleared when authorisation came back")
	}
}

func TestWaitForAuth(t *testing.T) {
	h := newHarness(t)
	h.auth.ok.Store(false)

	go func() {
		time.Sleep(20 * time.Millisecond)
		h.auth.ok.Store(true)
	}()
	if !h.c.WaitForAuth() {
		t.Fatal("wait gave up")
	}

	h.auth.ok.Store(false)
	go func() {
		time.Sleep(20 * time.Millisecond)
		h.c.RequestStop()
	}()
	if h.c.WaitForAuth() {
		t.Fatal("wait ignored the stop")
	}
}

func TestTaskContextCancelledOnStop(t *testing.T) {
	h := newHarness(t)
	b := newBlocker()

	if !h.c.Dispatch(TaskWaypoints, b, nil) {
		t.Fatal("dispatch refused")
	}
	<-b.started
	if err := b.task.Context().Err(); err != nil {
		t.Fatalf("context already done: %v", err)
	}

	h.c.RequestStop()
	select {
	case <-b.task.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled")
	}
	waitFor(t, "task end", func() bool { return h.c.TaskID() == TaskNone })
	if !b.Finished() {
		t.Error("blocker did not finish")
	}
}

type stopCounter struct {
	ObserverBase
	n atomic.Int32
}

func (s *stopCounter) StopRequested() { s.n.Add(1) }

func TestRepeatedStopNotifiesOnce(t *testing.T) {
	rec := &stopCounter{}
	h := newHarness(t, WithObserver(rec))

	for i := 0; i < 5; i++ {
		h.c.RequestStop()
	}
	if n := rec.n.Load(); n != 1 {
		t.Fatalf("observers notified %d times", n)
	}

	b := newBlocker()
	if !h.c.Dispatch(TaskUtility, b, nil) {
		t.Fatal("dispatch refused")
	}
	<-b.started
	h.c.RequestStop()
	h.c.RequestStop()
	if n := rec.n.Load(); n != 2 {
		t.Errorf("stop after dispatch: observers notified %d times in total", n)
	}
}
