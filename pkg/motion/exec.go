package motion

import (
	"math"
	"strconv"

	"github.com/lllars/g2/pkg/config"
	"github.com/lllars/g2/pkg/metrics"
)

// ExecStatus is what one executor tick reports to the driver.
type ExecStatus int

const (
	// ExecIdle means no queued or running work exists.
	ExecIdle ExecStatus = iota
	// ExecBusy means motion (or a dwell) is in flight.
	ExecBusy
)

type moveState int

const (
	moveOff moveState = iota
	moveRun
)

type section int

const (
	sectionHead section = iota
	sectionBody
	sectionTail
	numSections
)

type sectionState int

const (
	sectionOff sectionState = iota
	sectionNew
	sectionFirstHalf
	sectionSecondHalf
)

// runtime is the execution context for the single RUNNING buffer. It
// integrates the buffer's S-curve with a forward-difference recurrence
// so the per-tick cost is a handful of additions.
type runtime struct {
	buf *buffer

	moveState    moveState
	section      section
	sectionState sectionState

	unit     [config.NumAxes]float64
	target   [config.NumAxes]float64
	position [config.NumAxes]float64

	// waypoint[s] is the exact position at the end of section s, used
	// to correct floating-point drift at each phase boundary.
	waypoint [numSections][config.NumAxes]float64

	entryVelocity, cruiseVelocity, exitVelocity float64

	sectionLength [numSections]float64
	sectionTime   [numSections]float64

	segments        int
	segmentCount    int
	segmentTime     float64 // minutes
	segmentVelocity float64

	// fd[0] is the current midpoint velocity sample; fd[1..5] are the
	// forward differences that advance it one segment per tick.
	fd [6]float64

	targetSteps    [config.NumMotors]float64
	commandedSteps [config.NumMotors]float64
	encoderSteps   [config.NumMotors]float64
	followingError [config.NumMotors]float64

	dwellRemaining float64 // minutes

	workOffset [config.NumAxes]float64
}

func (r *runtime) resetMove() {
	r.buf = nil
	r.moveState = moveOff
	r.sectionState = sectionOff
	r.segmentVelocity = 0
	r.dwellRemaining = 0
}

// smoothstepPoly is the quintic 6t^5-15t^4+10t^3, evaluated without
// clamping so the forward-difference table stays polynomial-exact.
func smoothstepPoly(t float64) float64 {
	return t * t * t * (t*(t*6-15) + 10)
}

// ExecTick runs one segment of the executor. It performs a bounded
// amount of work and returns; the reactor re-invokes it every nominal
// segment interval.
func (e *Engine) ExecTick() ExecStatus {
	r := &e.runtime

	// An out-of-band dwell (feedhold resume) runs ahead of the queue.
	if e.oobDwell > 0 {
		e.oobDwell -= e.cfg.Runtime.NominalSegmentTime
		if e.oobDwell < 0 {
			e.oobDwell = 0
		}
		return ExecBusy
	}

	if r.moveState == moveOff {
		// Never promote a line the throttled planner has not profiled
		// yet; plan it now rather than executing an empty profile.
		if nb := &e.pool.buffers[e.pool.r]; nb.state == bufferQueued &&
			nb.moveType == MoveTypeLine && nb.moveTime == 0 {
			e.planMoves(true)
		}
		b := e.pool.getRunBuffer()
		if b == nil {
			e.metrics.RuntimeVelocity.Set(nil, 0)
			return ExecIdle
		}
		e.beginMove(b)
	}

	b := r.buf
	switch b.moveType {
	case MoveTypeDwell:
		r.dwellRemaining -= e.cfg.Runtime.NominalSegmentTime
		if r.dwellRemaining <= 0 {
			e.finishMove()
		}
		return ExecBusy
	case MoveTypeCommand, MoveTypeTool, MoveTypeSpindleSpeed, MoveTypeStop, MoveTypeEnd:
		if e.commandHandler != nil {
			e.commandHandler(b.command)
		}
		e.finishMove()
		return ExecBusy
	case MoveTypeLine:
		e.execSegment()
		return ExecBusy
	}

	// NULL or unknown: consume and move on.
	e.finishMove()
	return ExecBusy
}

// beginMove loads a freshly promoted buffer into the runtime context.
func (e *Engine) beginMove(b *buffer) {
	r := &e.runtime
	r.buf = b
	r.moveState = moveRun

	if b.moveType == MoveTypeDwell {
		r.dwellRemaining = b.dwellTime
		return
	}
	if b.moveType != MoveTypeLine {
		return
	}

	r.unit = b.unit
	r.target = b.target
	r.entryVelocity = b.entryVelocity
	r.cruiseVelocity = b.cruiseVelocity
	r.exitVelocity = b.exitVelocity

	r.sectionLength[sectionHead] = b.headLength
	r.sectionLength[sectionBody] = b.bodyLength
	r.sectionLength[sectionTail] = b.tailLength
	r.sectionTime[sectionHead] = rampTime(b.headLength, r.entryVelocity, r.cruiseVelocity)
	r.sectionTime[sectionBody] = cruiseTime(b.bodyLength, r.cruiseVelocity)
	r.sectionTime[sectionTail] = rampTime(b.tailLength, r.cruiseVelocity, r.exitVelocity)
	e.absorbShortSections()

	for i := 0; i < config.NumAxes; i++ {
		r.waypoint[sectionHead][i] = r.position[i] + r.unit[i]*r.sectionLength[sectionHead]
		r.waypoint[sectionBody][i] = r.waypoint[sectionHead][i] + r.unit[i]*r.sectionLength[sectionBody]
		r.waypoint[sectionTail][i] = r.target[i]
	}

	r.section = sectionHead
	r.sectionState = sectionNew
}

func rampTime(length, vi, vf float64) float64 {
	if length <= 0 || vi+vf <= 0 {
		return 0
	}
	return 2 * length / (vi + vf)
}

func cruiseTime(length, v float64) float64 {
	if length <= 0 || v <= 0 {
		return 0
	}
	return length / v
}

// absorbShortSections folds any phase shorter than the minimum segment
// interval into an adjacent phase instead of executing an undersized
// segment.
func (e *Engine) absorbShortSections() {
	r := &e.runtime
	minSeg := e.cfg.Runtime.MinSegmentTime

	if t := r.sectionTime[sectionHead]; t > 0 && t < minSeg {
		r.sectionLength[sectionBody] += r.sectionLength[sectionHead]
		r.sectionLength[sectionHead] = 0
		r.sectionTime[sectionHead] = 0
		r.sectionTime[sectionBody] = cruiseTime(r.sectionLength[sectionBody], r.cruiseVelocity)
	}
	if t := r.sectionTime[sectionTail]; t > 0 && t < minSeg {
		r.sectionLength[sectionBody] += r.sectionLength[sectionTail]
		r.sectionLength[sectionTail] = 0
		r.sectionTime[sectionTail] = 0
		r.sectionTime[sectionBody] = cruiseTime(r.sectionLength[sectionBody], r.cruiseVelocity)
	}
	if t := r.sectionTime[sectionBody]; t > 0 && t < minSeg {
		if r.sectionLength[sectionHead] >= r.sectionLength[sectionTail] && r.sectionLength[sectionHead] > 0 {
			r.sectionLength[sectionHead] += r.sectionLength[sectionBody]
			r.sectionTime[sectionHead] = rampTime(r.sectionLength[sectionHead], r.entryVelocity, r.cruiseVelocity)
		} else if r.sectionLength[sectionTail] > 0 {
			r.sectionLength[sectionTail] += r.sectionLength[sectionBody]
			r.sectionTime[sectionTail] = rampTime(r.sectionLength[sectionTail], r.cruiseVelocity, r.exitVelocity)
		} else {
			// Body is the whole move; execute it as a single segment.
			return
		}
		r.sectionLength[sectionBody] = 0
		r.sectionTime[sectionBody] = 0
	}
}

// initSection sizes the current section's segments and seeds the
// forward-difference table for its velocity curve.
func (e *Engine) initSection() bool {
	r := &e.runtime
	for r.sectionTime[r.section] <= 0 || r.sectionLength[r.section] <= 0 {
		if !e.advanceSection() {
			return false
		}
	}

	t := r.sectionTime[r.section]
	nominal := e.cfg.Runtime.NominalSegmentTime
	minSeg := e.cfg.Runtime.MinSegmentTime

	segments := int(math.Round(t / nominal))
	if segments < 1 {
		segments = 1
	}
	if t/float64(segments) < minSeg {
		segments = int(t / minSeg)
		if segments < 1 {
			segments = 1
		}
	}
	r.segments = segments
	r.segmentCount = 0
	r.segmentTime = t / float64(segments)

	var vi, vt float64
	switch r.section {
	case sectionHead:
		vi, vt = r.entryVelocity, r.cruiseVelocity
	case sectionBody:
		vi, vt = r.cruiseVelocity, r.cruiseVelocity
	case sectionTail:
		vi, vt = r.cruiseVelocity, r.exitVelocity
	}
	r.seedForwardDiffs(vi, vt)
	r.sectionState = sectionFirstHalf
	return true
}

// seedForwardDiffs builds the difference table for the quintic
// velocity curve sampled at segment midpoints. After seeding, one
// cascade of five additions per tick replaces any transcendental
// evaluation.
func (r *runtime) seedForwardDiffs(vi, vt float64) {
	n := float64(r.segments)
	var d [6]float64
	for k := range d {
		tau := (float64(k) + 0.5) / n
		d[k] = vi + (vt-vi)*smoothstepPoly(tau)
	}
	for order := 1; order < 6; order++ {
		for k := 5; k >= order; k-- {
			d[k] -= d[k-1]
		}
	}
	r.fd = d
}

// execSegment integrates one fixed-duration segment of the running
// line move.
func (e *Engine) execSegment() {
	r := &e.runtime
	if r.sectionState == sectionNew {
		if !e.initSection() {
			e.finishMove()
			return
		}
	}

	v := r.fd[0]
	for o := 0; o < 5; o++ {
		r.fd[o] += r.fd[o+1]
	}
	r.segmentVelocity = v
	for i := 0; i < config.NumAxes; i++ {
		r.position[i] += r.unit[i] * v * r.segmentTime
	}
	r.segmentCount++
	if 2*r.segmentCount >= r.segments {
		r.sectionState = sectionSecondHalf
	}

	e.updateSteps()
	e.metrics.SegmentsExecuted.Inc(nil)
	e.metrics.SegmentTime.Observe(r.segmentTime * 60)
	e.metrics.RuntimeVelocity.Set(nil, v)

	if r.segmentCount >= r.segments {
		// Snap to the section waypoint to shed integration drift.
		r.position = r.waypoint[r.section]
		if !e.advanceSection() {
			e.finishMove()
			return
		}
		r.sectionState = sectionNew
	}
}

// advanceSection moves HEAD -> BODY -> TAIL; false means the move is
// exhausted.
func (e *Engine) advanceSection() bool {
	r := &e.runtime
	if r.section >= sectionTail {
		return false
	}
	r.section++
	return true
}

// finishMove releases the consumed buffer and parks the runtime.
func (e *Engine) finishMove() {
	r := &e.runtime
	if r.buf != nil && r.buf.moveType == MoveTypeLine {
		r.position = r.target
		e.updateSteps()
	}
	r.resetMove()
	e.pool.freeRunBuffer()
}

// updateSteps converts the continuous position into per-motor step
// targets and refreshes the following error against the encoder. The
// previous tick's target becomes the commanded value, modeling the
// one-segment feedback latency.
func (e *Engine) updateSteps() {
	r := &e.runtime
	r.commandedSteps = r.targetSteps
	e.transform.Inverse(r.position[:], r.targetSteps[:])
	e.encoder.Snapshot(r.encoderSteps[:])
	for m := 0; m < config.NumMotors; m++ {
		r.followingError[m] = r.commandedSteps[m] - r.encoderSteps[m]
		e.metrics.FollowingError.Set(motorLabel(m), r.followingError[m])
	}
}

func motorLabel(m int) metrics.Labels {
	return metrics.Labels{"motor": strconv.Itoa(m)}
}
