package motion

import "math"

// Chain replanning. Revisits the replannable tail of the queue in two
// passes: backward from the newest buffer propagating braking
// constraints, forward from the oldest propagating acceleration
// constraints, then re-solves each profile. Buffers that are RUNNING
// or locked as next-to-run are never touched.

// PlanMoves runs one throttled replanning pass. It is invoked once per
// low-priority scheduler pass and does nothing when the queue is
// unchanged or the throttle defers the work.
func (e *Engine) PlanMoves() {
	e.planMoves(false)
}

// ForceReplan bypasses the throttle. Queue flush, feedhold and urgent
// admission paths use it.
func (e *Engine) ForceReplan() {
	e.planMoves(true)
}

func (e *Engine) planMoves(force bool) {
	p := e.pool
	if p.needsTimeAccounting {
		p.accountTime()
	}
	e.metrics.BuffersAvailable.Set(nil, float64(p.availableBuffers()))
	e.metrics.PlannedTime.Set(nil, p.plannedTime)

	if !p.needsReplanned {
		return
	}
	if !force {
		now := e.now()
		starving := p.plannedTime < e.cfg.Planner.MinPlannedTime
		stale := now-e.lastReplan >= e.cfg.Planner.ReplanTimeoutSec
		if !starving && !stale {
			return
		}
	}

	chain := e.replannableChain()
	if len(chain) == 0 {
		p.needsReplanned = false
		return
	}

	// Backward pass: a buffer's entry may not exceed what its own
	// length and jerk can brake to its successor's entry limit. The
	// queue must always be able to come to rest at its end.
	exitLimit := 0.0
	entryLimits := make([]float64, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		b := chain[i]
		if b.moveType != MoveTypeLine {
			// Dwells and commands are zero-velocity barriers: the
			// preceding motion must come to rest before them.
			b.brakingVelocity = 0
			entryLimits[i] = 0
			exitLimit = 0
			continue
		}
		exit := math.Min(b.exitVmax, exitLimit)
		b.brakingVelocity = targetVelocity(exit, b.length, b)
		entryLimits[i] = math.Min(b.entryVmax, b.brakingVelocity)
		exitLimit = entryLimits[i]
	}

	// Forward pass: entry is capped by the predecessor's converged
	// exit, exit by what this move can accelerate to and by the
	// successor's entry limit.
	prevExit := e.chainEntryVelocity(chain[0])
	for i, b := range chain {
		if b.moveType != MoveTypeLine {
			// No profile to solve; the cached moveTime (a dwell's
			// duration) must survive the pass.
			b.entryVelocity, b.cruiseVelocity, b.exitVelocity = 0, 0, 0
			prevExit = 0
			continue
		}
		b.entryVelocity = math.Min(entryLimits[i], prevExit)
		b.cruiseVelocity = b.cruiseVmax
		exit := math.Min(b.exitVmax, targetVelocity(b.entryVelocity, b.length, b))
		if i+1 < len(chain) {
			exit = math.Min(exit, entryLimits[i+1])
		} else {
			exit = 0
		}
		b.exitVelocity = exit
		calculateProfile(b)
		prevExit = b.exitVelocity
	}

	p.needsReplanned = false
	p.accountTime()
	e.lastReplan = e.now()
	e.metrics.Replans.Inc(nil)
	e.metrics.PlannedTime.Set(nil, p.plannedTime)
	e.log.WithField("chain", len(chain)).
		WithField("planned_min", p.plannedTime).
		Debug("replanned")
}

// replannableChain collects, in execution order, the queued buffers a
// replan may mutate: everything from the run pointer forward that is
// replannable and not locked.
func (e *Engine) replannableChain() []*buffer {
	p := e.pool
	var chain []*buffer
	b := &p.buffers[p.r]
	for range p.buffers {
		switch b.state {
		case bufferQueued:
			if b.replannable && !b.locked {
				chain = append(chain, b)
			}
		case bufferRunning:
			// Skip; its successor is locked and also skipped above.
		default:
			return chain
		}
		b = p.next(b)
	}
	return chain
}

// chainEntryVelocity is the fixed velocity the first replannable
// buffer inherits: the exit of the locked buffer before it, or zero
// when the chain starts from rest.
func (e *Engine) chainEntryVelocity(first *buffer) float64 {
	pv := e.pool.prev(first)
	if pv.state == bufferRunning || (pv.state == bufferQueued && pv.locked) {
		return pv.exitVelocity
	}
	return 0
}
