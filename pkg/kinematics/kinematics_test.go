package kinematics

import (
	"math"
	"testing"

	"github.com/lllars/g2/pkg/config"
)

func testMotors() []config.MotorConfig {
	return []config.MotorConfig{
		{Axis: config.AxisX, StepsPerUnit: 80},
		{Axis: config.AxisY, StepsPerUnit: 80},
		{Axis: config.AxisZ, StepsPerUnit: 400},
		{Axis: config.AxisA, StepsPerUnit: 100},
	}
}

func TestForwardInverseRoundTrip(t *testing.T) {
	tr := New(testMotors())

	pos := make([]float64, config.NumAxes)
	pos[config.AxisX] = 12.5
	pos[config.AxisY] = -3.25
	pos[config.AxisZ] = 0.1
	pos[config.AxisA] = 90

	steps := make([]float64, tr.NumMotors())
	tr.Inverse(pos, steps)

	back := make([]float64, config.NumAxes)
	tr.Forward(steps, back)

	for i := 0; i < config.NumAxes; i++ {
		if math.Abs(back[i]-pos[i]) > 1e-12 {
			t.Errorf("axis %d: round trip %g, want %g", i, back[i], pos[i])
		}
	}
}

func TestInverseScaling(t *testing.T) {
	tr := New(testMotors())
	pos := make([]float64, config.NumAxes)
	pos[config.AxisX] = 1.0
	pos[config.AxisZ] = 2.0

	steps := make([]float64, tr.NumMotors())
	tr.Inverse(pos, steps)

	if steps[0] != 80 {
		t.Errorf("motor 0 steps = %g, want 80", steps[0])
	}
	if steps[2] != 800 {
		t.Errorf("motor 2 steps = %g, want 800", steps[2])
	}
	if steps[1] != 0 || steps[3] != 0 {
		t.Errorf("idle motors moved: %v", steps)
	}
}

func TestForwardLeavesUnmappedAxes(t *testing.T) {
	tr := New(testMotors()[:2]) // only X and Y mapped

	out := make([]float64, config.NumAxes)
	out[config.AxisZ] = 7.5
	tr.Forward([]float64{160, 80}, out)

	if out[config.AxisX] != 2.0 || out[config.AxisY] != 1.0 {
		t.Errorf("forward = %v", out)
	}
	if out[config.AxisZ] != 7.5 {
		t.Errorf("unmapped axis overwritten: %g", out[config.AxisZ])
	}
}

func TestMotorAxis(t *testing.T) {
	tr := New(testMotors())
	if got := tr.MotorAxis(2); got != config.AxisZ {
		t.Errorf("MotorAxis(2) = %d, want %d", got, config.AxisZ)
	}
	if got := tr.MotorAxis(9); got != -1 {
		t.Errorf("MotorAxis(9) = %d, want -1", got)
	}
}
