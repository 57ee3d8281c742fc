package motion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJerk = 50e6 // mm/min^3

func profileBuffer(length float64) *buffer {
	b := &buffer{
		length:    length,
		jerk:      testJerk,
		recipJerk: 1.0 / testJerk,
		cbrtJerk:  math.Cbrt(testJerk),
	}
	return b
}

func TestTargetLengthVelocityRoundTrip(t *testing.T) {
	b := profileBuffer(0)
	cases := []struct{ vi, vf float64 }{
		{0, 600},
		{0, 5000},
		{300, 900},
		{1200, 1500},
		{100, 101},
	}
	for _, tc := range cases {
		l := targetLength(tc.vi, tc.vf, b)
		require.Greater(t, l, 0.0, "vi=%g vf=%g", tc.vi, tc.vf)
		got := targetVelocity(tc.vi, l, b)
		assert.InDelta(t, tc.vf, got, tc.vf*1e-6+0.01, "vi=%g vf=%g", tc.vi, tc.vf)
	}
}

func TestTargetVelocityFromRest(t *testing.T) {
	b := profileBuffer(0)
	// From rest the closed form is vf = cbrt(J * L^2).
	for _, l := range []float64{0.5, 5, 50} {
		want := math.Cbrt(testJerk * l * l)
		assert.InDelta(t, want, targetVelocity(0, l, b), want*1e-9)
	}
}

func TestTargetVelocityDegenerate(t *testing.T) {
	b := profileBuffer(0)
	assert.Equal(t, 300.0, targetVelocity(300, 0, b))
	assert.Equal(t, 300.0, targetVelocity(300, 1e-12, b))
}

func TestMeetVelocityFitsLength(t *testing.T) {
	b := profileBuffer(0)
	entry, exit := 200.0, 400.0
	length := 0.5 // too short to cruise at any useful velocity

	vm := meetVelocity(entry, exit, length, b)
	require.GreaterOrEqual(t, vm, exit)

	consumed := targetLength(entry, vm, b) + targetLength(exit, vm, b)
	assert.InDelta(t, length, consumed, length*1e-9)
}

func TestCalculateProfileLongMove(t *testing.T) {
	b := profileBuffer(50)
	b.entryVelocity = 0
	b.cruiseVelocity = 600
	b.exitVelocity = 0

	calculateProfile(b)

	assert.InDelta(t, b.length, b.headLength+b.bodyLength+b.tailLength, 1e-9)
	assert.Greater(t, b.bodyLength, 0.0)
	assert.InDelta(t, b.headLength, b.tailLength, 1e-9, "symmetric entry/exit")
	assert.Greater(t, b.moveTime, 0.0)
}

func TestCalculateProfileShortMove(t *testing.T) {
	// Far too short to reach the requested cruise: head-tail only,
	// peaking at the meet velocity.
	b := profileBuffer(0.2)
	b.entryVelocity = 0
	b.cruiseVelocity = 10000
	b.exitVelocity = 0

	calculateProfile(b)

	assert.Zero(t, b.bodyLength)
	assert.InDelta(t, b.length, b.headLength+b.tailLength, 1e-9)
	assert.Less(t, b.cruiseVelocity, 10000.0)
	assert.Greater(t, b.cruiseVelocity, 0.0)
}

func TestCalculateProfilePureCruise(t *testing.T) {
	b := profileBuffer(10)
	b.entryVelocity = 600
	b.cruiseVelocity = 600
	b.exitVelocity = 600

	calculateProfile(b)

	assert.Zero(t, b.headLength)
	assert.Zero(t, b.tailLength)
	assert.InDelta(t, 10.0, b.bodyLength, 1e-9)
	assert.InDelta(t, 10.0/600.0, b.moveTime, 1e-12)
}

func TestCalculateProfileZeroLength(t *testing.T) {
	b := profileBuffer(0)
	b.cruiseVelocity = 600
	calculateProfile(b)
	assert.Zero(t, b.headLength)
	assert.Zero(t, b.bodyLength)
	assert.Zero(t, b.tailLength)
	assert.Zero(t, b.moveTime)
}

func TestCalculateProfileNeverNegative(t *testing.T) {
	// A stale cruise below the endpoints must clamp, not go negative.
	b := profileBuffer(1)
	b.entryVelocity = 500
	b.cruiseVelocity = 100
	b.exitVelocity = 300

	calculateProfile(b)

	assert.GreaterOrEqual(t, b.headLength, 0.0)
	assert.GreaterOrEqual(t, b.bodyLength, 0.0)
	assert.GreaterOrEqual(t, b.tailLength, 0.0)
	assert.False(t, math.IsNaN(b.headLength+b.bodyLength+b.tailLength))
	assert.InDelta(t, b.length, b.headLength+b.bodyLength+b.tailLength, 1e-9)
}

func TestProfileIntegrationMatchesLength(t *testing.T) {
	// Integrating the quintic velocity curve over the planned phase
	// times must reproduce the phase lengths.
	b := profileBuffer(50)
	b.entryVelocity = 0
	b.cruiseVelocity = 600
	b.exitVelocity = 0
	calculateProfile(b)

	integrate := func(vi, vt, duration float64) float64 {
		const n = 20000
		dt := duration / n
		sum := 0.0
		for k := 0; k < n; k++ {
			tau := (float64(k) + 0.5) / n
			s := tau * tau * tau * (tau*(tau*6-15) + 10)
			sum += (vi + (vt-vi)*s) * dt
		}
		return sum
	}

	headTime := 2 * b.headLength / (b.entryVelocity + b.cruiseVelocity)
	tailTime := 2 * b.tailLength / (b.cruiseVelocity + b.exitVelocity)
	assert.InDelta(t, b.headLength, integrate(b.entryVelocity, b.cruiseVelocity, headTime), b.headLength*1e-6)
	assert.InDelta(t, b.tailLength, integrate(b.cruiseVelocity, b.exitVelocity, tailTime), b.tailLength*1e-6)
}
