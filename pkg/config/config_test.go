package config

import (
	"testing"
)

const sampleConfig = `
# test machine
[planner]
pool_size: 16
headroom: 2
junction_aggression: 0.5

[runtime]
min_segment_time = 0.00001

[machine]
feed_rate: 2400

[axis_x]
jerk_max: 100
velocity_max: 20000

[axis_a]
jerk_max: 20

[motor_0]
axis: x
steps_per_unit: 160

[motor_3]
axis: a
steps_per_unit: -88.9
`

func TestParseSections(t *testing.T) {
	f, err := Parse(sampleConfig)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !f.HasSection("planner") || !f.HasSection("axis_x") {
		t.Fatalf("missing sections, got %v", f.SectionNames())
	}
	if f.HasSection("axis_q") {
		t.Error("HasSection(axis_q) = true")
	}
	v, err := f.GetSection("planner").GetInt("pool_size", 0)
	if err != nil || v != 16 {
		t.Errorf("pool_size = %d, %v; want 16", v, err)
	}
	// '=' separator works too
	fv, err := f.GetSection("runtime").GetFloat("min_segment_time", 0)
	if err != nil || fv != 0.00001 {
		t.Errorf("min_segment_time = %g, %v", fv, err)
	}
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"[planner\npool_size: 1",
		"pool_size: 1",
		"[planner]\nnonsense line",
	}
	for _, data := range bad {
		if _, err := Parse(data); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", data)
		}
	}
}

func TestFromFileOverlaysDefaults(t *testing.T) {
	f, err := Parse(sampleConfig)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	mc, err := FromFile(f)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	if mc.Planner.PoolSize != 16 || mc.Planner.Headroom != 2 {
		t.Errorf("planner = %+v", mc.Planner)
	}
	if mc.Axes[AxisX].JerkMax != 100*JerkMultiplier {
		t.Errorf("axis x jerk = %g", mc.Axes[AxisX].JerkMax)
	}
	// axis_y untouched, keeps default
	if mc.Axes[AxisY].JerkMax != 50*JerkMultiplier {
		t.Errorf("axis y jerk = %g, want default", mc.Axes[AxisY].JerkMax)
	}
	if mc.Motors[0].Axis != AxisX || mc.Motors[0].StepsPerUnit != 160 {
		t.Errorf("motor_0 = %+v", mc.Motors[0])
	}
	if mc.Motors[3].Axis != AxisA || mc.Motors[3].StepsPerUnit != -88.9 {
		t.Errorf("motor_3 = %+v", mc.Motors[3])
	}
	if mc.FeedRate != 2400 {
		t.Errorf("feed_rate = %g", mc.FeedRate)
	}
}

func TestValidate(t *testing.T) {
	mc := DefaultMachineConfig()
	if err := mc.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultMachineConfig()
	bad.Planner.Headroom = bad.Planner.PoolSize
	if err := bad.Validate(); err == nil {
		t.Error("headroom >= pool_size accepted")
	}

	bad = DefaultMachineConfig()
	bad.Axes[AxisZ].JerkMax = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero jerk accepted")
	}

	bad = DefaultMachineConfig()
	bad.Runtime.MinSegmentTime = bad.Runtime.NominalSegmentTime * 2
	if err := bad.Validate(); err == nil {
		t.Error("min segment > nominal accepted")
	}
}

func TestAxisHelpers(t *testing.T) {
	if AxisIndex("z") != AxisZ || AxisIndex("C") != AxisC {
		t.Error("AxisIndex mismatch")
	}
	if AxisIndex("w") != -1 {
		t.Error("AxisIndex(w) should be -1")
	}
	if !IsRotary(AxisA) || IsRotary(AxisZ) {
		t.Error("IsRotary mismatch")
	}
	if AxisName(AxisB) != "b" {
		t.Error("AxisName mismatch")
	}
}
