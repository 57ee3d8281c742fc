// Package reactor provides the timer dispatch loop driving the motion
// core's two execution contexts.
//
// All timer callbacks run on a single dispatch goroutine. That is the
// concurrency contract the planner relies on: the high-rate exec tick
// and the low-priority planning pass never run concurrently, so the
// shared buffer pool needs no locks - only the cooperative
// locked/replannable flag discipline.
package reactor

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// NOW schedules a timer for immediate dispatch.
	NOW = 0.0
	// NEVER parks a timer until it is rescheduled.
	NEVER = 9999999999999999.0
)

// TimerCallback is called when a timer fires. It receives the event
// time and returns the next wake time, or NEVER to park the timer.
type TimerCallback func(eventtime float64) float64

// Timer represents a registered timer.
type Timer struct {
	id       uint64
	callback TimerCallback
	waketime float64
}

// Reactor dispatches timers on a single goroutine.
type Reactor struct {
	mu          sync.Mutex
	timers      []*Timer
	nextTimerID uint64
	wake        chan struct{}

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	startTime time.Time
}

// New creates a new Reactor.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

// Monotonic returns seconds since the reactor was created.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

// RegisterTimer registers a callback with an initial wake time.
func (r *Reactor) RegisterTimer(callback TimerCallback, waketime float64) *Timer {
	r.mu.Lock()
	t := &Timer{
		id:       atomic.AddUint64(&r.nextTimerID, 1),
		callback: callback,
		waketime: waketime,
	}
	r.timers = append(r.timers, t)
	r.mu.Unlock()
	r.poke()
	return t
}

// UnregisterTimer removes a timer.
func (r *Reactor) UnregisterTimer(timer *Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, t := range r.timers {
		if t.id == timer.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			return
		}
	}
}

// UpdateTimer reschedules a timer. Safe to call from any goroutine;
// takes effect before the next dispatch.
func (r *Reactor) UpdateTimer(timer *Timer, waketime float64) {
	r.mu.Lock()
	timer.waketime = waketime
	r.mu.Unlock()
	r.poke()
}

func (r *Reactor) poke() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run starts the dispatch loop.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return
	}
	r.wg.Add(1)
	go r.dispatchLoop()
}

// End signals the dispatch loop to stop.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait blocks until the dispatch loop has exited.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) dispatchLoop() {
	defer r.wg.Done()
	for r.running.Load() {
		eventtime := r.Monotonic()
		next := r.fireDue(eventtime)

		delay := next - r.Monotonic()
		if delay <= 0 {
			continue
		}
		if delay > 1.0 {
			delay = 1.0
		}
		select {
		case <-time.After(time.Duration(delay * float64(time.Second))):
		case <-r.wake:
		case <-r.ctx.Done():
			return
		}
	}
}

// fireDue runs every due timer once and returns the next wake time.
// Due timers fire in wake-time order so the high-rate exec tick is
// serviced before a simultaneously due planning pass.
func (r *Reactor) fireDue(eventtime float64) float64 {
	r.mu.Lock()
	due := make([]*Timer, 0, len(r.timers))
	for _, t := range r.timers {
		if t.waketime <= eventtime {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].waketime < due[j].waketime })
	r.mu.Unlock()

	for _, t := range due {
		next := t.callback(eventtime)
		r.mu.Lock()
		t.waketime = next
		r.mu.Unlock()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	next := NEVER
	for _, t := range r.timers {
		if t.waketime < next {
			next = t.waketime
		}
	}
	return next
}
