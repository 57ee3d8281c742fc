package config

import (
	"fmt"
	"strings"

	"github.com/lllars/g2/pkg/errors"
)

// Axis indices. Linear axes first, then rotary.
const (
	AxisX = iota
	AxisY
	AxisZ
	AxisA
	AxisB
	AxisC
	NumAxes
)

// NumMotors is the number of motor channels driven by the runtime.
const NumMotors = 4

// JerkMultiplier scales configured jerk values: jerk is configured in
// millions of mm/min^3 to keep the numbers human-sized.
const JerkMultiplier = 1e6

var axisNames = [NumAxes]string{"x", "y", "z", "a", "b", "c"}

// AxisName returns the lower-case name of an axis index.
func AxisName(axis int) string {
	if axis < 0 || axis >= NumAxes {
		return "?"
	}
	return axisNames[axis]
}

// AxisIndex returns the index for an axis name, or -1.
func AxisIndex(name string) int {
	name = strings.ToLower(name)
	for i, n := range axisNames {
		if n == name {
			return i
		}
	}
	return -1
}

// IsRotary reports whether the axis is a rotary (A/B/C) axis.
func IsRotary(axis int) bool { return axis >= AxisA }

// AxisConfig holds per-axis motion limits.
type AxisConfig struct {
	// JerkMax is the working jerk limit in mm/min^3 (already multiplied).
	JerkMax float64
	// JerkHigh is the high-speed jerk used by homing and probing cycles.
	JerkHigh float64
	// VelocityMax is the axis velocity ceiling in mm/min.
	VelocityMax float64
}

// MotorConfig maps a motor channel onto an axis.
type MotorConfig struct {
	// Axis is the axis index this motor follows.
	Axis int
	// StepsPerUnit converts axis units (mm or deg) to motor steps.
	StepsPerUnit float64
}

// PlannerConfig holds buffer-pool and replanning parameters.
type PlannerConfig struct {
	// PoolSize is the total number of ring buffer slots.
	PoolSize int
	// Headroom is the number of EMPTY slots reserved before the
	// admission path reports backpressure upstream.
	Headroom int
	// MinLength is the shortest admissible move in mm.
	MinLength float64
	// JunctionAggression scales the cosine junction-velocity heuristic.
	JunctionAggression float64
	// MinPlannedTime is the queued-motion horizon (in minutes) below
	// which a replan runs immediately rather than waiting the timeout.
	MinPlannedTime float64
	// ReplanTimeoutSec is the wall-clock ceiling between replans.
	ReplanTimeoutSec float64
}

// RuntimeConfig holds segment-executor parameters.
type RuntimeConfig struct {
	// NominalSegmentTime is the target segment duration in minutes.
	NominalSegmentTime float64
	// MinSegmentTime is the floor segment duration in minutes; shorter
	// remainders are absorbed into the adjacent phase.
	MinSegmentTime float64
}

// MachineConfig is the full validated machine configuration.
type MachineConfig struct {
	Axes    [NumAxes]AxisConfig
	Motors  [NumMotors]MotorConfig
	Planner PlannerConfig
	Runtime RuntimeConfig

	// FeedRate is the default feed rate in mm/min when the caller
	// supplies none.
	FeedRate float64
}

// DefaultMachineConfig returns the stock configuration. Values follow
// the classic small-gantry tuning: 28-slot pool with 4 reserved, 750us
// minimum and 1.5ms nominal segments, 20ms minimum planned horizon and
// a 50ms replan timeout.
func DefaultMachineConfig() MachineConfig {
	mc := MachineConfig{
		Planner: PlannerConfig{
			PoolSize:           28,
			Headroom:           4,
			MinLength:          0.001,
			JunctionAggression: 0.25,
			MinPlannedTime:     20000.0 / microsecondsPerMinute,
			ReplanTimeoutSec:   0.050,
		},
		Runtime: RuntimeConfig{
			NominalSegmentTime: 1500.0 / microsecondsPerMinute,
			MinSegmentTime:     750.0 / microsecondsPerMinute,
		},
		FeedRate: 1000.0,
	}
	for i := range mc.Axes {
		mc.Axes[i] = AxisConfig{
			JerkMax:     50 * JerkMultiplier,
			JerkHigh:    1000 * JerkMultiplier,
			VelocityMax: 16000.0,
		}
	}
	for i := range mc.Motors {
		mc.Motors[i] = MotorConfig{Axis: i % NumAxes, StepsPerUnit: 80.0}
	}
	return mc
}

const microsecondsPerMinute = 60e6

// FromFile overlays file settings on the defaults and validates.
func FromFile(f *File) (MachineConfig, error) {
	mc := DefaultMachineConfig()
	var err error

	p := f.GetSection("planner")
	if mc.Planner.PoolSize, err = p.GetInt("pool_size", mc.Planner.PoolSize); err != nil {
		return mc, err
	}
	if mc.Planner.Headroom, err = p.GetInt("headroom", mc.Planner.Headroom); err != nil {
		return mc, err
	}
	if mc.Planner.MinLength, err = p.GetFloat("min_length", mc.Planner.MinLength); err != nil {
		return mc, err
	}
	if mc.Planner.JunctionAggression, err = p.GetFloat("junction_aggression", mc.Planner.JunctionAggression); err != nil {
		return mc, err
	}
	if mc.Planner.ReplanTimeoutSec, err = p.GetFloat("replan_timeout", mc.Planner.ReplanTimeoutSec); err != nil {
		return mc, err
	}

	r := f.GetSection("runtime")
	if mc.Runtime.NominalSegmentTime, err = r.GetFloat("nominal_segment_time", mc.Runtime.NominalSegmentTime); err != nil {
		return mc, err
	}
	if mc.Runtime.MinSegmentTime, err = r.GetFloat("min_segment_time", mc.Runtime.MinSegmentTime); err != nil {
		return mc, err
	}

	if mc.FeedRate, err = f.GetSection("machine").GetFloat("feed_rate", mc.FeedRate); err != nil {
		return mc, err
	}

	for i := 0; i < NumAxes; i++ {
		sec := f.GetSection("axis_" + AxisName(i))
		jerk, err := sec.GetFloat("jerk_max", mc.Axes[i].JerkMax/JerkMultiplier)
		if err != nil {
			return mc, err
		}
		jerkHigh, err := sec.GetFloat("jerk_high", mc.Axes[i].JerkHigh/JerkMultiplier)
		if err != nil {
			return mc, err
		}
		vmax, err := sec.GetFloat("velocity_max", mc.Axes[i].VelocityMax)
		if err != nil {
			return mc, err
		}
		mc.Axes[i] = AxisConfig{
			JerkMax:     jerk * JerkMultiplier,
			JerkHigh:    jerkHigh * JerkMultiplier,
			VelocityMax: vmax,
		}
	}

	for i := 0; i < NumMotors; i++ {
		sec := f.GetSection(fmt.Sprintf("motor_%d", i))
		axisName := sec.Get("axis", AxisName(mc.Motors[i].Axis))
		axis := AxisIndex(axisName)
		if axis < 0 {
			return mc, errors.ConfigError(sec.Name(), "axis", "unknown axis "+axisName)
		}
		spu, err := sec.GetFloat("steps_per_unit", mc.Motors[i].StepsPerUnit)
		if err != nil {
			return mc, err
		}
		mc.Motors[i] = MotorConfig{Axis: axis, StepsPerUnit: spu}
	}

	return mc, mc.Validate()
}

// LoadMachine loads and validates a machine config from disk.
func LoadMachine(path string) (MachineConfig, error) {
	f, err := Load(path)
	if err != nil {
		return MachineConfig{}, err
	}
	return FromFile(f)
}

// Validate checks cross-field constraints.
func (mc *MachineConfig) Validate() error {
	if mc.Planner.PoolSize < 4 || mc.Planner.PoolSize > 255 {
		return errors.ConfigError("planner", "pool_size", "must be in [4, 255]")
	}
	if mc.Planner.Headroom < 0 || mc.Planner.Headroom >= mc.Planner.PoolSize {
		return errors.ConfigError("planner", "headroom", "must be in [0, pool_size)")
	}
	if mc.Planner.JunctionAggression <= 0 {
		return errors.ConfigError("planner", "junction_aggression", "must be positive")
	}
	if mc.Runtime.MinSegmentTime <= 0 || mc.Runtime.MinSegmentTime > mc.Runtime.NominalSegmentTime {
		return errors.ConfigError("runtime", "min_segment_time", "must be in (0, nominal_segment_time]")
	}
	for i, a := range mc.Axes {
		if a.JerkMax <= 0 {
			return errors.ConfigError("axis_"+AxisName(i), "jerk_max", "must be positive")
		}
		if a.VelocityMax <= 0 {
			return errors.ConfigError("axis_"+AxisName(i), "velocity_max", "must be positive")
		}
	}
	for i, m := range mc.Motors {
		if m.StepsPerUnit == 0 {
			return errors.ConfigError(fmt.Sprintf("motor_%d", i), "steps_per_unit", "must be non-zero")
		}
	}
	return nil
}
