package motion

import (
	"time"

	"github.com/lllars/g2/pkg/config"
	"github.com/lllars/g2/pkg/encoder"
	"github.com/lllars/g2/pkg/errors"
	"github.com/lllars/g2/pkg/kinematics"
	"github.com/lllars/g2/pkg/log"
	"github.com/lllars/g2/pkg/metrics"
)

// CommandHandler receives the tagged payload of a non-geometric move
// when it reaches the front of the queue.
type CommandHandler func(Command)

// Engine owns the planning and execution contexts: the buffer pool,
// the move master and the move runtime. All methods are meant to be
// called from the reactor dispatch goroutine; nothing here takes a
// lock around the shared pool.
type Engine struct {
	cfg     config.MachineConfig
	log     *log.Logger
	metrics *metrics.MotionMetrics

	pool    *pool
	master  master
	runtime runtime

	transform *kinematics.Transform
	encoder   encoder.Source

	commandHandler CommandHandler

	// Replan throttle clock, seconds. Overridable for tests.
	now        func() float64
	lastReplan float64

	oobDwell float64 // minutes
}

// NewEngine builds an engine from a validated machine configuration.
func NewEngine(cfg config.MachineConfig, tr *kinematics.Transform, enc encoder.Source, m *metrics.MotionMetrics) *Engine {
	if m == nil {
		m = metrics.NewMotionMetrics()
	}
	start := time.Now()
	e := &Engine{
		cfg:       cfg,
		log:       log.GetLogger("motion"),
		metrics:   m,
		pool:      newPool(cfg.Planner.PoolSize, cfg.Planner.Headroom),
		transform: tr,
		encoder:   enc,
		now:       func() float64 { return time.Since(start).Seconds() },
	}
	e.master.reset(e.runtime.position)
	return e
}

// SetCommandHandler installs the executor's callback for command,
// tool, spindle, stop and end moves.
func (e *Engine) SetCommandHandler(h CommandHandler) {
	e.commandHandler = h
}

// SetPosition teaches both contexts the machine's actual position.
// Only valid while the runtime is idle (init, homing, probe results).
func (e *Engine) SetPosition(position [config.NumAxes]float64) error {
	if e.RuntimeBusy() {
		return errors.InvariantError("position set while runtime busy")
	}
	e.runtime.position = position
	e.master.reset(position)
	return nil
}

// Flush immediately empties the queue and parks the runtime. The
// planning tip snaps back to the last actual position. Safe to call
// at any point in the tick, from either context.
func (e *Engine) Flush() {
	e.runtime.resetMove()
	e.pool.flush()
	e.master.reset(e.runtime.position)
	e.oobDwell = 0
	e.metrics.Flushes.Inc(nil)
	e.metrics.BuffersAvailable.Set(nil, float64(e.pool.availableBuffers()))
	e.metrics.PlannedTime.Set(nil, 0)
	e.log.Info("queue flushed")
}

// Dwell queues a fixed pause of the given duration in seconds.
func (e *Engine) Dwell(seconds float64) error {
	if seconds <= 0 {
		return errors.New(errors.ErrCycleBadTarget, "dwell duration must be positive")
	}
	b, err := e.pool.getWriteBuffer()
	if err != nil {
		return err
	}
	b.dwellTime = seconds / 60
	b.moveTime = b.dwellTime
	if err := e.pool.commitWriteBuffer(b, MoveTypeDwell); err != nil {
		e.pool.unwindWriteBuffer(b)
		return err
	}
	e.metrics.MovesAdmitted.Inc(typeLabel(MoveTypeDwell))
	return nil
}

// QueueCommand queues a non-geometric action behind the pending moves.
func (e *Engine) QueueCommand(cmd Command) error {
	switch cmd.Type {
	case MoveTypeCommand, MoveTypeTool, MoveTypeSpindleSpeed, MoveTypeStop, MoveTypeEnd:
	default:
		return errors.New(errors.ErrCycleBadTarget, "not a command move type")
	}
	b, err := e.pool.getWriteBuffer()
	if err != nil {
		return err
	}
	b.command = cmd
	if err := e.pool.commitWriteBuffer(b, cmd.Type); err != nil {
		e.pool.unwindWriteBuffer(b)
		return err
	}
	e.metrics.MovesAdmitted.Inc(typeLabel(cmd.Type))
	return nil
}

// RequestOutOfBandDwell schedules a pause that executes ahead of the
// queue on the next tick, without consuming a buffer. Feedhold resume
// uses it to let the machine settle.
func (e *Engine) RequestOutOfBandDwell(seconds float64) {
	if seconds > 0 {
		e.oobDwell = seconds / 60
	}
}

// AvailableBuffers is the backpressure signal: EMPTY slots remaining.
func (e *Engine) AvailableBuffers() int {
	return e.pool.availableBuffers()
}

// Headroom returns the reserve below which upstream should throttle.
func (e *Engine) Headroom() int {
	return e.pool.headroom
}

// HasRunnableBuffer reports whether queued or running work exists.
func (e *Engine) HasRunnableBuffer() bool {
	return e.pool.hasRunnableBuffer()
}

// RuntimeBusy reports whether a move or dwell is in flight.
func (e *Engine) RuntimeBusy() bool {
	return e.runtime.moveState != moveOff || e.oobDwell > 0
}

// RuntimeIsIdle reports the executor fully drained: nothing running
// and nothing queued.
func (e *Engine) RuntimeIsIdle() bool {
	return !e.RuntimeBusy() && !e.pool.hasRunnableBuffer()
}

// Position returns the runtime's current absolute position.
func (e *Engine) Position() [config.NumAxes]float64 {
	return e.runtime.position
}

// Velocity returns the velocity of the most recent segment, mm/min.
func (e *Engine) Velocity() float64 {
	return e.runtime.segmentVelocity
}

// SetWorkOffset installs the active work coordinate offset.
func (e *Engine) SetWorkOffset(offset [config.NumAxes]float64) {
	e.runtime.workOffset = offset
}

// WorkPosition returns the runtime position in work coordinates.
func (e *Engine) WorkPosition() [config.NumAxes]float64 {
	var out [config.NumAxes]float64
	for i := 0; i < config.NumAxes; i++ {
		out[i] = e.runtime.position[i] - e.runtime.workOffset[i]
	}
	return out
}

// FollowingError returns the per-motor following error, steps.
func (e *Engine) FollowingError() [config.NumMotors]float64 {
	return e.runtime.followingError
}

// EncoderSteps returns the most recent encoder snapshot seen by the
// executor. Cycle collaborators translate it back to cartesian via
// Transform.
func (e *Engine) EncoderSteps() [config.NumMotors]float64 {
	return e.runtime.encoderSteps
}

// Transform exposes the step-space transform for collaborators.
func (e *Engine) Transform() *kinematics.Transform {
	return e.transform
}

// AxisJerk returns the working jerk limit for an axis, mm/min^3.
func (e *Engine) AxisJerk(axis int) float64 {
	return e.cfg.Axes[axis].JerkMax
}

// AxisJerkHigh returns the high-speed jerk used by probing and homing.
func (e *Engine) AxisJerkHigh(axis int) float64 {
	return e.cfg.Axes[axis].JerkHigh
}

// SetAxisJerk overrides an axis's working jerk limit. Cycles that
// raise jerk for a probe must restore the saved value on every exit
// path.
func (e *Engine) SetAxisJerk(axis int, jerk float64) {
	if jerk > 0 {
		e.cfg.Axes[axis].JerkMax = jerk
	}
}

// FeedRate returns the configured default feed rate.
func (e *Engine) FeedRate() float64 {
	return e.cfg.FeedRate
}

func typeLabel(t MoveType) metrics.Labels {
	return metrics.Labels{"type": t.String()}
}

func rejectLabel(reason string) metrics.Labels {
	return metrics.Labels{"reason": reason}
}
