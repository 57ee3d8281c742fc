package reactor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerFires(t *testing.T) {
	r := New()
	defer func() { r.End(); r.Wait() }()

	var fired atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		fired.Add(1)
		return NEVER
	}, NOW)
	r.Run()

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("fired = %d, want 1", fired.Load())
	}
}

func TestPeriodicTimer(t *testing.T) {
	r := New()
	defer func() { r.End(); r.Wait() }()

	var ticks atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		if ticks.Add(1) >= 5 {
			return NEVER
		}
		return eventtime + 0.001
	}, NOW)
	r.Run()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ticks.Load() != 5 {
		t.Fatalf("ticks = %d, want 5", ticks.Load())
	}
}

func TestUnregisteredTimerDoesNotFire(t *testing.T) {
	r := New()
	defer func() { r.End(); r.Wait() }()

	var fired atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		fired.Add(1)
		return NEVER
	}, NEVER)
	r.UnregisterTimer(timer)
	r.Run()

	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("unregistered timer fired %d times", fired.Load())
	}
}

func TestUpdateTimerWakesEarly(t *testing.T) {
	r := New()
	defer func() { r.End(); r.Wait() }()

	var fired atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		fired.Add(1)
		return NEVER
	}, NEVER)
	r.Run()

	r.UpdateTimer(timer, NOW)
	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("fired = %d, want 1", fired.Load())
	}
}

func TestCallbacksSingleDispatch(t *testing.T) {
	// Two aggressive periodic timers must never run concurrently.
	r := New()
	defer func() { r.End(); r.Wait() }()

	var inCallback atomic.Int32
	var overlap atomic.Int32
	cb := func(eventtime float64) float64 {
		if inCallback.Add(1) > 1 {
			overlap.Add(1)
		}
		time.Sleep(100 * time.Microsecond)
		inCallback.Add(-1)
		return eventtime
	}
	r.RegisterTimer(cb, NOW)
	r.RegisterTimer(cb, NOW)
	r.Run()

	time.Sleep(100 * time.Millisecond)
	if overlap.Load() != 0 {
		t.Fatalf("callbacks overlapped %d times", overlap.Load())
	}
}
