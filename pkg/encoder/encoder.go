// Package encoder provides per-motor position feedback sampling.
//
// The executor compares its commanded step targets against the most
// recent encoder snapshot to produce a following error per motor. The
// snapshot is sampled asynchronously; the executor only ever reads the
// latest complete frame.
package encoder

import (
	"sync"
)

// Source supplies step-space encoder counts, one value per motor.
type Source interface {
	// Snapshot copies the most recent sample into out. It never
	// blocks; before the first frame arrives it reports zeros.
	Snapshot(out []float64)
}

// Simulated is a Source whose counts are set directly. Tests and dry
// runs point the executor at one and feed it the commanded steps.
type Simulated struct {
	mu    sync.RWMutex
	steps []float64
}

// NewSimulated creates a simulated source for the given motor count.
func NewSimulated(numMotors int) *Simulated {
	return &Simulated{steps: make([]float64, numMotors)}
}

// SetSteps records a new sample.
func (s *Simulated) SetSteps(steps []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.steps, steps)
}

// SetStep records a single motor's count.
func (s *Simulated) SetStep(motor int, steps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if motor >= 0 && motor < len(s.steps) {
		s.steps[motor] = steps
	}
}

func (s *Simulated) Snapshot(out []float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy(out, s.steps)
}
