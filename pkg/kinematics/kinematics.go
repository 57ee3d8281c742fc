// Package kinematics provides the step-space transforms between motor
// step counts and cartesian axis positions.
//
// The machines served here are cartesian: each motor drives exactly one
// axis through a fixed steps-per-unit ratio, so both transforms are
// per-motor scalings. The forward transform is what a probing cycle
// uses to turn an encoder snapshot back into a cartesian contact
// position; the inverse transform is what the executor uses to turn a
// continuous position into per-motor step targets.
package kinematics

import (
	"github.com/lllars/g2/pkg/config"
)

// Transform maps between motor step space and cartesian axis space for
// a fixed motor mapping.
type Transform struct {
	motors []config.MotorConfig
}

// New builds a Transform from the machine's motor mapping.
func New(motors []config.MotorConfig) *Transform {
	m := make([]config.MotorConfig, len(motors))
	copy(m, motors)
	return &Transform{motors: m}
}

// NumMotors returns the number of mapped motors.
func (t *Transform) NumMotors() int {
	return len(t.motors)
}

// Forward converts per-motor step counts into a cartesian position
// vector. Axes with no mapped motor are left at the value already in
// out. out must have config.NumAxes elements.
func (t *Transform) Forward(steps []float64, out []float64) {
	for i, m := range t.motors {
		if i >= len(steps) || m.StepsPerUnit == 0 {
			continue
		}
		out[m.Axis] = steps[i] / m.StepsPerUnit
	}
}

// Inverse converts a cartesian position vector into per-motor step
// targets. out must have one element per mapped motor.
func (t *Transform) Inverse(position []float64, out []float64) {
	for i, m := range t.motors {
		if m.Axis >= len(position) {
			continue
		}
		out[i] = position[m.Axis] * m.StepsPerUnit
	}
}

// MotorAxis returns the axis index driven by the given motor, or -1 if
// the motor is not mapped.
func (t *Transform) MotorAxis(motor int) int {
	if motor < 0 || motor >= len(t.motors) {
		return -1
	}
	return t.motors[motor].Axis
}
