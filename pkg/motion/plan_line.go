package motion

import (
	"math"

	"github.com/lllars/g2/pkg/config"
	"github.com/lllars/g2/pkg/errors"
)

// MoveTarget is an admission request: an absolute endpoint plus the
// machine-state snapshot the move must execute under.
type MoveTarget struct {
	Position [config.NumAxes]float64
	Flags    [config.NumAxes]bool
	FeedRate float64 // mm/min; 0 falls back to the configured default
	State    GCodeState
}

// PlanLine admits one straight move against the planning tip. On
// success the move is queued and the chain is marked for replanning;
// rejections are synchronous and consume no buffer.
//
// A move whose participating axes all land on the current tip is a
// no-op, not an error.
func (e *Engine) PlanLine(t MoveTarget) error {
	feed := t.FeedRate
	if feed == 0 {
		feed = e.cfg.FeedRate
	}
	if feed <= 0 {
		e.metrics.MovesRejected.Inc(rejectLabel("zero_feed"))
		return errors.ZeroFeedError()
	}

	var delta [config.NumAxes]float64
	active := false
	lengthSq := 0.0
	for i := 0; i < config.NumAxes; i++ {
		if !t.Flags[i] {
			continue
		}
		active = true
		delta[i] = t.Position[i] - e.master.position[i]
		lengthSq += delta[i] * delta[i]
	}
	if !active {
		e.metrics.MovesRejected.Inc(rejectLabel("no_axes"))
		return errors.NoAxesError()
	}

	length := math.Sqrt(lengthSq)
	if length == 0 {
		return nil
	}
	if length < e.cfg.Planner.MinLength {
		e.metrics.MovesRejected.Inc(rejectLabel("min_length"))
		return errors.MinLengthError(length, e.cfg.Planner.MinLength)
	}

	b, err := e.pool.getWriteBuffer()
	if err != nil {
		e.metrics.MovesRejected.Inc(rejectLabel("pool_exhausted"))
		return err
	}

	b.length = length
	b.target = t.Position
	b.axisFlags = t.Flags
	b.gcState = t.State
	b.gcState.FeedRate = feed
	for i := 0; i < config.NumAxes; i++ {
		b.unit[i] = delta[i] / length
	}

	// The constraining axis is the one whose jerk limit, divided by
	// its share of the direction, is smallest.
	jerk := math.MaxFloat64
	b.jerkAxis = 0
	velocityCeiling := math.MaxFloat64
	for i := 0; i < config.NumAxes; i++ {
		u := math.Abs(b.unit[i])
		if u < 1e-12 {
			continue
		}
		if j := e.cfg.Axes[i].JerkMax / u; j < jerk {
			jerk = j
			b.jerkAxis = i
		}
		if v := e.cfg.Axes[i].VelocityMax / u; v < velocityCeiling {
			velocityCeiling = v
		}
	}
	e.master.setJerk(b, jerk)

	b.deltaVmax = targetVelocity(0, length, b)
	b.cruiseVmax = math.Min(feed, velocityCeiling)
	b.entryVmax = math.Min(b.cruiseVmax, e.junctionVmax(b))
	b.exitVmax = math.Min(b.cruiseVmax, b.entryVmax+b.deltaVmax)
	b.brakingVelocity = b.deltaVmax

	if err := e.pool.commitWriteBuffer(b, MoveTypeLine); err != nil {
		e.pool.unwindWriteBuffer(b)
		return err
	}
	e.master.position = t.Position

	e.metrics.MovesAdmitted.Inc(typeLabel(MoveTypeLine))
	e.log.WithField("length", length).
		WithField("cruise_vmax", b.cruiseVmax).
		Debug("move admitted")
	return nil
}

// junctionVmax bounds the entry velocity by the direction change at
// the junction with the previous queued move.
//
// The heuristic: with c the cosine of the junction angle, the allowed
// fraction of the slower move's cruise ceiling is ((1+c)/2)^2 shaped
// so that a straight junction (c=1) imposes no extra limit, a full
// reversal (c=-1) forces a stop, and a 90 degree corner passes at
// JunctionAggression times the cruise ceiling.
func (e *Engine) junctionVmax(b *buffer) float64 {
	pv := e.pool.prev(b)
	if pv.state != bufferQueued && pv.state != bufferRunning {
		// Chain starts from rest.
		return 0
	}

	cos := 0.0
	for i := 0; i < config.NumAxes; i++ {
		cos += pv.unit[i] * b.unit[i]
	}
	ceiling := math.Min(pv.cruiseVmax, b.cruiseVmax)
	switch {
	case cos > 0.9999:
		return ceiling
	case cos < -0.9999:
		return 0
	}
	half := (1 + cos) / 2
	// Exponent chosen so half^n = aggression at cos = 0.
	n := math.Log(e.cfg.Planner.JunctionAggression) / math.Log(0.5)
	return ceiling * math.Pow(half, n)
}
