package motion

import "math"

// Profile solver. Converts a buffer's converged entry/cruise/exit
// velocities, length and jerk into head/body/tail phase lengths, where
// head and tail are each two symmetric constant-jerk sub-phases and
// body is constant-velocity cruise.
//
// Units throughout: mm, mm/min, mm/min^3, minutes.

const (
	// velocityTolerance treats velocity differences below this as
	// equal, mm/min.
	velocityTolerance = 0.05
	// lengthTolerance treats phase lengths below this as zero, mm.
	lengthTolerance = 1e-9
	// meetIterations bounds the HT meet-velocity bisection. 64 halvings
	// exhaust double precision on any realistic bracket.
	meetIterations = 64
)

// targetLength returns the distance consumed by a jerk-limited
// velocity change between vi and vf: two symmetric jerk sub-phases
// lasting sqrt(|dv|/J) each, at mean velocity (vi+vf)/2.
func targetLength(vi, vf float64, b *buffer) float64 {
	dv := math.Abs(vf - vi)
	if dv < velocityTolerance {
		return 0
	}
	return (vi + vf) * math.Sqrt(dv*b.recipJerk)
}

// targetVelocity returns the highest velocity reachable from vi over
// length under the buffer's jerk. Closed form when starting from rest
// (vf = cbrt(J*L^2)); Newton iteration otherwise.
func targetVelocity(vi, length float64, b *buffer) float64 {
	if length < lengthTolerance {
		return vi
	}
	if vi < velocityTolerance {
		return b.cbrtJerk * math.Cbrt(length*length)
	}

	// f(v) = (vi+v)*sqrt((v-vi)/J) - length, monotone increasing on
	// v > vi and bracketed by vi + cbrt(J*L^2).
	lo := vi
	hi := vi + b.cbrtJerk*math.Cbrt(length*length)
	v := hi
	for i := 0; i < 24; i++ {
		root := math.Sqrt((v - vi) * b.recipJerk)
		f := (vi+v)*root - length
		if math.Abs(f) < lengthTolerance {
			return v
		}
		if f > 0 {
			hi = v
		} else {
			lo = v
		}
		// df/dv = root + (vi+v)/(2*J*root)
		if root > 0 {
			df := root + (vi+v)*b.recipJerk/(2*root)
			next := v - f/df
			if next > lo && next < hi {
				v = next
				continue
			}
		}
		v = 0.5 * (lo + hi)
	}
	return v
}

// meetVelocity solves the head-tail-only case: the peak velocity vm
// such that accelerating entry->vm then decelerating vm->exit exactly
// consumes length. Safeguarded bisection; the consumed length is
// monotone increasing in vm.
func meetVelocity(entry, exit, length float64, b *buffer) float64 {
	lo := math.Max(entry, exit)
	hi := lo + b.cbrtJerk*math.Cbrt(length*length)
	if targetLength(entry, lo, b)+targetLength(exit, lo, b) >= length {
		// No room to accelerate above the higher endpoint.
		return lo
	}
	for i := 0; i < meetIterations; i++ {
		vm := 0.5 * (lo + hi)
		consumed := targetLength(entry, vm, b) + targetLength(exit, vm, b)
		if consumed > length {
			hi = vm
		} else {
			lo = vm
		}
	}
	return lo
}

// calculateProfile fills the buffer's phase lengths from its converged
// velocities. Degenerate solves clamp to zero rather than propagating
// negative or NaN lengths into the runtime.
func calculateProfile(b *buffer) {
	if b.length < lengthTolerance {
		b.headLength, b.bodyLength, b.tailLength = 0, 0, 0
		b.moveTime = 0
		return
	}

	// The planner guarantees cruise >= entry and cruise >= exit; clamp
	// anyway so a stale replan can never produce a negative phase.
	if b.cruiseVelocity < b.entryVelocity {
		b.cruiseVelocity = b.entryVelocity
	}
	if b.cruiseVelocity < b.exitVelocity {
		b.cruiseVelocity = b.exitVelocity
	}

	head := targetLength(b.entryVelocity, b.cruiseVelocity, b)
	tail := targetLength(b.exitVelocity, b.cruiseVelocity, b)

	if head+tail <= b.length {
		b.headLength = head
		b.tailLength = tail
		b.bodyLength = b.length - head - tail
		if b.bodyLength < lengthTolerance {
			b.bodyLength = 0
			// Keep the phase sum exact.
			b.tailLength = b.length - b.headLength
		}
	} else {
		// Too short to reach cruise: head-tail profile peaking at the
		// meet velocity.
		vm := meetVelocity(b.entryVelocity, b.exitVelocity, b.length, b)
		b.cruiseVelocity = vm
		b.bodyLength = 0
		if vm-math.Max(b.entryVelocity, b.exitVelocity) < velocityTolerance {
			// No headroom at all: the whole move is one ramp (or a
			// cruise when entry == exit).
			if b.entryVelocity >= b.exitVelocity+velocityTolerance {
				b.headLength = 0
				b.tailLength = b.length
			} else if b.exitVelocity >= b.entryVelocity+velocityTolerance {
				b.headLength = b.length
				b.tailLength = 0
			} else {
				b.bodyLength = b.length
				b.headLength = 0
				b.tailLength = 0
			}
		} else {
			b.headLength = targetLength(b.entryVelocity, vm, b)
			b.tailLength = b.length - b.headLength
		}
	}

	if b.headLength < lengthTolerance {
		b.headLength = 0
	}
	if b.tailLength < lengthTolerance {
		b.tailLength = 0
	}

	b.moveTime = profileTime(b)
}

// profileTime returns the planned execution time of the profile in
// minutes. Each ramp runs at its mean velocity.
func profileTime(b *buffer) float64 {
	t := 0.0
	if b.headLength > 0 {
		t += 2 * b.headLength / (b.entryVelocity + b.cruiseVelocity)
	}
	if b.bodyLength > 0 && b.cruiseVelocity > 0 {
		t += b.bodyLength / b.cruiseVelocity
	}
	if b.tailLength > 0 {
		t += 2 * b.tailLength / (b.cruiseVelocity + b.exitVelocity)
	}
	return t
}
