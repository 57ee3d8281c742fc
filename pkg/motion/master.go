package motion

import (
	"math"

	"github.com/lllars/g2/pkg/config"
)

// jerkMatchTolerance is the absolute jerk difference (mm/min^3) under
// which consecutive moves reuse the cached reciprocal and cube root
// instead of recomputing them.
const jerkMatchTolerance = 1000.0

// master is the planning context: the position the next admitted move
// extends from, and the jerk terms cached from the last planned move.
type master struct {
	position [config.NumAxes]float64

	jerk      float64
	recipJerk float64
	cbrtJerk  float64
}

// setJerk fills a buffer's jerk terms, reusing the cached reciprocal
// and cube root when the magnitude matches the previous move's.
func (m *master) setJerk(b *buffer, jerk float64) {
	b.jerk = jerk
	if m.jerk != 0 && math.Abs(jerk-m.jerk) < jerkMatchTolerance {
		b.recipJerk = m.recipJerk
		b.cbrtJerk = m.cbrtJerk
		return
	}
	b.recipJerk = 1.0 / jerk
	b.cbrtJerk = math.Cbrt(jerk)
	m.jerk = jerk
	m.recipJerk = b.recipJerk
	m.cbrtJerk = b.cbrtJerk
}

// reset moves the planning tip to the given position and invalidates
// the jerk cache.
func (m *master) reset(position [config.NumAxes]float64) {
	m.position = position
	m.jerk = 0
	m.recipJerk = 0
	m.cbrtJerk = 0
}
