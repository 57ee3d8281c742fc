// Package cycle contains the motion-cycle sequencers built on top of
// the planner's public API. A cycle is an explicit state machine
// invoked once per scheduler pass: it never advances while the
// executor is busy, queues at most one move per invocation, and
// restores every piece of saved context on every exit path.
package cycle

import (
	"math"

	"github.com/lllars/g2/pkg/config"
	"github.com/lllars/g2/pkg/errors"
	"github.com/lllars/g2/pkg/input"
	"github.com/lllars/g2/pkg/log"
	"github.com/lllars/g2/pkg/motion"
)

// MinProbeTravel is the shortest commanded probe move, mm. Anything
// shorter cannot produce a trustworthy contact position.
const MinProbeTravel = 0.254

// Status is what one sequencer invocation reports to the driver.
type Status int

const (
	// StatusIdle means no cycle is active.
	StatusIdle Status = iota
	// StatusRunning means the cycle is in progress; invoke again next
	// pass.
	StatusRunning
	// StatusDone means the cycle finished; Result holds the outcome.
	StatusDone
	// StatusFailed means the cycle aborted; Err holds the reason.
	StatusFailed
)

type probeState int

const (
	probeOff probeState = iota
	probeInit
	probeStart
	probeWaitContact
	probeBackoff
	probeFinish
)

// Result is the outcome of a probe. A probe that travels its full
// distance without contact is a non-error outcome with Contacted
// false.
type Result struct {
	Contacted bool
	Position  [config.NumAxes]float64
}

// Probe runs a straight probing move toward a target and captures the
// contact position from the encoder snapshot at the moment the input
// goes active.
type Probe struct {
	engine *motion.Engine
	in     input.DigitalInput
	logger *log.Logger

	state probeState
	err   error

	target [config.NumAxes]float64
	flags  [config.NumAxes]bool
	feed   float64

	// Saved context, restored on every exit path.
	savedJerk [config.NumAxes]float64
	gcState   motion.GCodeState

	contacted    bool
	contactSteps [config.NumMotors]float64
	result       Result
}

// NewProbe builds a probe cycle over the given engine and input.
func NewProbe(e *motion.Engine, in input.DigitalInput) *Probe {
	return &Probe{
		engine: e,
		in:     in,
		logger: log.GetLogger("probe"),
	}
}

// Start arms the cycle. feed <= 0 selects the engine's default feed.
// The actual motion begins on subsequent Poll calls.
func (p *Probe) Start(target [config.NumAxes]float64, flags [config.NumAxes]bool, feed float64, state motion.GCodeState) error {
	if p.state != probeOff {
		return errors.New(errors.ErrCycleBusy, "probe cycle already active")
	}
	if feed <= 0 {
		feed = p.engine.FeedRate()
	}
	p.target = target
	p.flags = flags
	p.feed = feed
	p.gcState = state
	p.err = nil
	p.contacted = false
	p.result = Result{}
	p.state = probeInit
	return nil
}

// Active reports whether a cycle is in progress.
func (p *Probe) Active() bool { return p.state != probeOff }

// Result returns the outcome of the last completed probe.
func (p *Probe) Result() Result { return p.result }

// Err returns the failure reason after StatusFailed.
func (p *Probe) Err() error { return p.err }

// Poll advances the cycle by at most one step. The driver invokes it
// once per low-priority pass.
func (p *Probe) Poll() Status {
	switch p.state {
	case probeOff:
		return StatusIdle
	case probeInit:
		return p.stepInit()
	case probeStart:
		return p.stepStart()
	case probeWaitContact:
		return p.stepWaitContact()
	case probeBackoff:
		return p.stepBackoff()
	case probeFinish:
		return p.stepFinish()
	}
	return p.fail(errors.InvariantError("probe cycle in unknown state"))
}

// stepInit validates the request and swaps in the high-speed jerk.
func (p *Probe) stepInit() Status {
	if !p.engine.RuntimeIsIdle() {
		return StatusRunning
	}

	// Probing with an unreadable input would run the full travel with
	// contact detection disabled. Refuse up front.
	if _, err := p.in.Read(); err != nil {
		return p.fail(errors.New(errors.ErrCycleFailed,
			"probe input unreadable: "+err.Error()))
	}

	current := p.engine.Position()
	travelSq := 0.0
	for i := 0; i < config.NumAxes; i++ {
		if !p.flags[i] {
			continue
		}
		if config.IsRotary(i) {
			return p.fail(errors.BadTargetError("probe",
				"rotary axis "+config.AxisName(i)+" not allowed"))
		}
		d := p.target[i] - current[i]
		travelSq += d * d
	}
	if math.Sqrt(travelSq) < MinProbeTravel {
		return p.fail(errors.BadTargetError("probe", "travel below minimum"))
	}

	// Probe at the high-speed jerk so contact stops are crisp; the
	// working jerk is restored by the shared exit path.
	for i := 0; i < config.NumAxes; i++ {
		p.savedJerk[i] = p.engine.AxisJerk(i)
		if p.flags[i] {
			p.engine.SetAxisJerk(i, p.engine.AxisJerkHigh(i))
		}
	}
	p.state = probeStart
	return StatusRunning
}

// stepStart queues the probe move, unless the input is already active
// in which case the motion is skipped and the probe succeeds at the
// current position.
func (p *Probe) stepStart() Status {
	if !p.engine.RuntimeIsIdle() {
		return StatusRunning
	}

	if st, err := p.in.Read(); err == nil && st == input.StateActive {
		p.contacted = true
		p.result = Result{Contacted: true, Position: p.engine.Position()}
		p.logger.Info("probe input active at start; motion skipped")
		return p.finalize(StatusDone)
	}

	gc := p.gcState
	gc.FeedRate = p.feed
	err := p.engine.PlanLine(motion.MoveTarget{
		Position: p.target,
		Flags:    p.flags,
		FeedRate: p.feed,
		State:    gc,
	})
	if err != nil {
		if errors.IsRetryable(err) {
			return StatusRunning
		}
		return p.fail(err)
	}
	p.state = probeWaitContact
	return StatusRunning
}

// stepWaitContact watches the move. On contact it captures the
// encoder snapshot and flushes the remaining motion; on an untouched
// full-length move it proceeds with no contact.
func (p *Probe) stepWaitContact() Status {
	if !p.engine.RuntimeIsIdle() {
		if st, err := p.in.Read(); err == nil && st == input.StateActive {
			p.contactSteps = p.engine.EncoderSteps()
			p.contacted = true
			p.engine.Flush()
		}
		return StatusRunning
	}
	if !p.contacted {
		// Full travel with no contact: a distinguishable outcome, not
		// an error.
		p.result = Result{Contacted: false, Position: p.engine.Position()}
		p.state = probeFinish
		return StatusRunning
	}
	p.state = probeBackoff
	return StatusRunning
}

// stepBackoff moves back to the contact position reconstructed from
// the captured encoder snapshot.
func (p *Probe) stepBackoff() Status {
	if !p.engine.RuntimeIsIdle() {
		return StatusRunning
	}

	contact := p.engine.Position()
	p.engine.Transform().Forward(p.contactSteps[:], contact[:])
	p.result = Result{Contacted: true, Position: contact}

	gc := p.gcState
	gc.FeedRate = p.feed
	err := p.engine.PlanLine(motion.MoveTarget{
		Position: contact,
		Flags:    p.flags,
		FeedRate: p.feed,
		State:    gc,
	})
	if err != nil && !errors.IsAdmission(err) {
		if errors.IsRetryable(err) {
			return StatusRunning
		}
		return p.fail(err)
	}
	p.state = probeFinish
	return StatusRunning
}

// stepFinish waits for the final move to drain and completes.
func (p *Probe) stepFinish() Status {
	if !p.engine.RuntimeIsIdle() {
		return StatusRunning
	}
	p.logger.WithField("contacted", p.result.Contacted).Info("probe complete")
	return p.finalize(StatusDone)
}

// finalize is the shared exit path: every saved piece of context is
// restored identically for success and failure.
func (p *Probe) finalize(s Status) Status {
	for i := 0; i < config.NumAxes; i++ {
		if p.savedJerk[i] > 0 {
			p.engine.SetAxisJerk(i, p.savedJerk[i])
		}
		p.savedJerk[i] = 0
	}
	p.state = probeOff
	return s
}

func (p *Probe) fail(err error) Status {
	p.err = err
	p.logger.WithError(err).Warn("probe cycle failed")
	return p.finalize(StatusFailed)
}
