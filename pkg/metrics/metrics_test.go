package metrics

import (
	"strings"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_total", "test counter")
	c.Inc(nil)
	c.Add(nil, 4)
	if got := c.Get(nil); got != 5 {
		t.Errorf("Get = %d, want 5", got)
	}
	c.Inc(Labels{"type": "line"})
	if got := c.Get(Labels{"type": "line"}); got != 1 {
		t.Errorf("labeled Get = %d, want 1", got)
	}

	var sb strings.Builder
	c.Write(&sb)
	out := sb.String()
	if !strings.Contains(out, "# TYPE test_total counter") {
		t.Errorf("missing TYPE line: %q", out)
	}
	if !strings.Contains(out, `test_total{type="line"} 1`) {
		t.Errorf("missing labeled sample: %q", out)
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "test gauge")
	g.Set(nil, 3.5)
	if got := g.Get(nil); got != 3.5 {
		t.Errorf("Get = %g, want 3.5", got)
	}
	g.Set(nil, -1)
	if got := g.Get(nil); got != -1 {
		t.Errorf("Get = %g, want -1", got)
	}
	if got := g.Get(Labels{"motor": "0"}); got != 0 {
		t.Errorf("unset labeled Get = %g, want 0", got)
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_seconds", "test histogram", []float64{0.001, 0.01})
	h.Observe(0.0005)
	h.Observe(0.005)
	h.Observe(0.5)
	if h.Count() != 3 {
		t.Errorf("Count = %d, want 3", h.Count())
	}

	var sb strings.Builder
	h.Write(&sb)
	out := sb.String()
	for _, want := range []string{
		`test_seconds_bucket{le="0.001"} 1`,
		`test_seconds_bucket{le="0.01"} 2`,
		`test_seconds_bucket{le="+Inf"} 3`,
		"test_seconds_count 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %q", want, out)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	c := NewCounter("a_total", "a")
	if err := r.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(NewCounter("a_total", "dup")); err == nil {
		t.Error("duplicate Register succeeded")
	}
	c.Inc(nil)
	if !strings.Contains(r.Gather(), "a_total 1") {
		t.Errorf("Gather output = %q", r.Gather())
	}
}

func TestMotionMetricsRegistersAll(t *testing.T) {
	m := NewMotionMetrics()
	out := m.Registry.Gather()
	for _, name := range []string{
		"g2_moves_admitted_total",
		"g2_moves_rejected_total",
		"g2_replans_total",
		"g2_queue_flushes_total",
		"g2_planner_buffers_available",
		"g2_segments_executed_total",
		"g2_segment_time_seconds",
		"g2_following_error_steps",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("Gather missing %s", name)
		}
	}
}
