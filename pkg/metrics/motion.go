package metrics

// MotionMetrics is the metric set maintained by the planner and runtime.
type MotionMetrics struct {
	Registry *Registry

	// Planner side
	MovesAdmitted    *Counter // label: type
	MovesRejected    *Counter // label: reason
	Replans          *Counter
	Flushes          *Counter
	BuffersAvailable *Gauge
	PlannedTime      *Gauge // queued motion horizon, minutes

	// Runtime side
	SegmentsExecuted *Counter
	SegmentTime      *Histogram // seconds
	FollowingError   *Gauge     // label: motor, steps
	RuntimeVelocity  *Gauge
}

// NewMotionMetrics builds and registers the motion metric set.
func NewMotionMetrics() *MotionMetrics {
	r := NewRegistry()
	m := &MotionMetrics{
		Registry: r,
		MovesAdmitted: NewCounter("g2_moves_admitted_total",
			"Moves accepted into the planner queue"),
		MovesRejected: NewCounter("g2_moves_rejected_total",
			"Moves rejected at admission"),
		Replans: NewCounter("g2_replans_total",
			"Velocity replanning passes over the queue"),
		Flushes: NewCounter("g2_queue_flushes_total",
			"Queue flush operations"),
		BuffersAvailable: NewGauge("g2_planner_buffers_available",
			"EMPTY planner buffers remaining"),
		PlannedTime: NewGauge("g2_planner_time_minutes",
			"Motion time currently queued in the planner"),
		SegmentsExecuted: NewCounter("g2_segments_executed_total",
			"Runtime segments integrated"),
		SegmentTime: NewHistogram("g2_segment_time_seconds",
			"Executed segment durations",
			[]float64{0.0005, 0.00075, 0.001, 0.0015, 0.002, 0.005}),
		FollowingError: NewGauge("g2_following_error_steps",
			"Commanded minus encoder position per motor"),
		RuntimeVelocity: NewGauge("g2_runtime_velocity",
			"Current segment velocity"),
	}
	r.MustRegister(
		m.MovesAdmitted, m.MovesRejected, m.Replans, m.Flushes,
		m.BuffersAvailable, m.PlannedTime,
		m.SegmentsExecuted, m.SegmentTime, m.FollowingError, m.RuntimeVelocity,
	)
	return m
}
