// Package motion implements the trajectory planner and segment
// executor: a fixed ring of move buffers, a look-ahead velocity
// replanner working under per-axis jerk limits, an S-curve profile
// solver, and a fixed-tick runtime that integrates profiles into
// per-motor step targets.
//
// The planner and the runtime share the buffer pool without locks.
// That is safe because both run on the same reactor dispatch goroutine
// (see pkg/reactor); the only discipline needed between them is the
// replannable/locked flags on each buffer.
package motion

import (
	"github.com/lllars/g2/pkg/config"
	"github.com/lllars/g2/pkg/errors"
)

// MoveType identifies what a queued buffer executes.
type MoveType int

const (
	MoveTypeNull MoveType = iota
	MoveTypeLine
	MoveTypeDwell
	MoveTypeCommand
	MoveTypeTool
	MoveTypeSpindleSpeed
	MoveTypeStop
	MoveTypeEnd
)

func (t MoveType) String() string {
	switch t {
	case MoveTypeNull:
		return "null"
	case MoveTypeLine:
		return "line"
	case MoveTypeDwell:
		return "dwell"
	case MoveTypeCommand:
		return "command"
	case MoveTypeTool:
		return "tool"
	case MoveTypeSpindleSpeed:
		return "spindle_speed"
	case MoveTypeStop:
		return "stop"
	case MoveTypeEnd:
		return "end"
	}
	return "unknown"
}

// bufferState is the lifecycle position of a ring slot. Transitions
// only ever run Empty -> Planning -> Queued -> Running -> Empty.
type bufferState int

const (
	bufferEmpty bufferState = iota
	bufferPlanning
	bufferQueued
	bufferRunning
)

// GCodeState is the machine-state snapshot embedded in each buffer so
// the move executes correctly regardless of later state changes.
type GCodeState struct {
	CoordSystem  int
	AbsoluteMode bool
	FeedRate     float64
}

// Command is the tagged payload of a non-geometric move. The executor
// hands it to the engine's command handler when the buffer reaches the
// front of the queue.
type Command struct {
	Type  MoveType
	Tool  int
	Value float64
}

// buffer is one slot of the planner ring.
type buffer struct {
	idx, pv, nx int // ring links by index; static for the pool's life

	state    bufferState
	moveType MoveType

	replannable bool
	locked      bool

	// Geometry
	unit      [config.NumAxes]float64
	axisFlags [config.NumAxes]bool
	target    [config.NumAxes]float64
	length    float64

	headLength, bodyLength, tailLength float64

	// Velocities, mm/min. The *Vmax fields are planning ceilings; the
	// plain fields are the converged plan the profile is built from.
	entryVelocity, cruiseVelocity, exitVelocity float64
	entryVmax, cruiseVmax, exitVmax             float64
	deltaVmax                                   float64
	brakingVelocity                             float64

	// Jerk, mm/min^3, with cached derived terms.
	jerk, recipJerk, cbrtJerk float64
	jerkAxis                  int

	// Non-geometric payloads
	dwellTime float64 // minutes
	command   Command

	gcState GCodeState

	// moveTime is the planned execution time in minutes, cached by the
	// profile solver for the planner's time accounting.
	moveTime float64
}

// reset returns a slot to its zero values, preserving ring links.
func (b *buffer) reset() {
	idx, pv, nx := b.idx, b.pv, b.nx
	*b = buffer{idx: idx, pv: pv, nx: nx}
}

// pool is the fixed ring of move buffers. w is the slot the admission
// path claims next; r is the oldest queued or running slot.
type pool struct {
	buffers []buffer
	w, r    int

	headroom int

	// Replan bookkeeping maintained cooperatively by both contexts.
	needsReplanned      bool
	needsTimeAccounting bool
	plannedTime         float64 // minutes of queued motion
}

func newPool(size, headroom int) *pool {
	p := &pool{
		buffers:  make([]buffer, size),
		headroom: headroom,
	}
	for i := range p.buffers {
		p.buffers[i].idx = i
		p.buffers[i].pv = (i - 1 + size) % size
		p.buffers[i].nx = (i + 1) % size
	}
	return p
}

func (p *pool) next(b *buffer) *buffer { return &p.buffers[b.nx] }
func (p *pool) prev(b *buffer) *buffer { return &p.buffers[b.pv] }

// availableBuffers counts EMPTY slots. Upstream throttles admission
// once this shrinks below the headroom reserve.
func (p *pool) availableBuffers() int {
	n := 0
	for i := range p.buffers {
		if p.buffers[i].state == bufferEmpty {
			n++
		}
	}
	return n
}

// getWriteBuffer claims the next EMPTY slot for planning. Callers must
// not block on exhaustion; they retry on a later pass.
func (p *pool) getWriteBuffer() (*buffer, error) {
	b := &p.buffers[p.w]
	if b.state != bufferEmpty {
		return nil, errors.PoolExhaustedError()
	}
	b.state = bufferPlanning
	p.w = b.nx
	return b, nil
}

// commitWriteBuffer publishes a PLANNING slot to the queue.
func (p *pool) commitWriteBuffer(b *buffer, t MoveType) error {
	if b.state != bufferPlanning {
		return errors.InvariantError("commit of a buffer not in PLANNING")
	}
	b.moveType = t
	b.state = bufferQueued
	b.replannable = true
	p.needsReplanned = true
	p.needsTimeAccounting = true
	return nil
}

// unwindWriteBuffer releases a claimed slot that was never committed.
// The admission path uses it when validation fails after the claim.
func (p *pool) unwindWriteBuffer(b *buffer) {
	b.reset()
	p.w = b.idx
}

// getRunBuffer returns the buffer the executor should consume: the
// already-RUNNING one mid-move, else the oldest QUEUED slot promoted
// to RUNNING and locked (along with its successor, the next-to-run).
func (p *pool) getRunBuffer() *buffer {
	b := &p.buffers[p.r]
	switch b.state {
	case bufferRunning:
		return b
	case bufferQueued:
		b.state = bufferRunning
		b.locked = true
		b.replannable = false
		nx := p.next(b)
		if nx.state == bufferQueued {
			nx.locked = true
			nx.replannable = false
		}
		return b
	}
	return nil
}

// freeRunBuffer releases a fully consumed RUNNING slot and advances
// the run pointer. No-op when nothing is running.
func (p *pool) freeRunBuffer() {
	b := &p.buffers[p.r]
	if b.state != bufferRunning {
		return
	}
	p.r = b.nx
	b.reset()
	p.needsReplanned = true
	p.needsTimeAccounting = true
}

// hasRunnableBuffer reports whether any queued or running work exists.
func (p *pool) hasRunnableBuffer() bool {
	s := p.buffers[p.r].state
	return s == bufferQueued || s == bufferRunning
}

// flush forces every slot to EMPTY. Safe at any point in the tick.
func (p *pool) flush() {
	for i := range p.buffers {
		p.buffers[i].reset()
	}
	p.w = 0
	p.r = 0
	p.needsReplanned = false
	p.needsTimeAccounting = false
	p.plannedTime = 0
}

// accountTime recomputes the queued motion horizon from the cached
// per-buffer move times.
func (p *pool) accountTime() {
	total := 0.0
	for i := range p.buffers {
		b := &p.buffers[i]
		if b.state == bufferQueued || b.state == bufferRunning {
			total += b.moveTime
		}
	}
	p.plannedTime = total
	p.needsTimeAccounting = false
}
