// Metrics collection for the g2 motion core
//
// Counters, gauges and histograms exposed in Prometheus text format.
// The runtime executor updates metrics from its tick path, so writes
// are lock-free (atomics) or take a single short mutex.

package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// MetricType represents the type of metric
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Labels represents metric labels as key-value pairs
type Labels map[string]string

func labelKey(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(labels[k])
	}
	return sb.String()
}

func formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteString("=\"")
		sb.WriteString(strings.ReplaceAll(labels[k], "\"", "\\\""))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')
	return sb.String()
}

func formatFloat(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Metric is the interface for all metric types
type Metric interface {
	Name() string
	Help() string
	Type() MetricType
	Write(sb *strings.Builder)
}

// Counter is a monotonically increasing metric
type Counter struct {
	name   string
	help   string
	values sync.Map // labelKey -> *counterValue
}

type counterValue struct {
	labels Labels
	value  uint64
}

// NewCounter creates a new counter metric
func NewCounter(name, help string) *Counter {
	return &Counter{name: name, help: help}
}

func (c *Counter) Name() string     { return c.name }
func (c *Counter) Help() string     { return c.help }
func (c *Counter) Type() MetricType { return TypeCounter }

// Inc increments the counter by 1
func (c *Counter) Inc(labels Labels) { c.Add(labels, 1) }

// Add increments the counter by the given value
func (c *Counter) Add(labels Labels, delta uint64) {
	val, _ := c.values.LoadOrStore(labelKey(labels), &counterValue{labels: labels})
	atomic.AddUint64(&val.(*counterValue).value, delta)
}

// Get returns the current counter value for labels
func (c *Counter) Get(labels Labels) uint64 {
	val, ok := c.values.Load(labelKey(labels))
	if !ok {
		return 0
	}
	return atomic.LoadUint64(&val.(*counterValue).value)
}

func (c *Counter) Write(sb *strings.Builder) {
	writeHeader(sb, c.name, c.help, "counter")
	c.values.Range(func(_, value interface{}) bool {
		cv := value.(*counterValue)
		fmt.Fprintf(sb, "%s%s %d\n", c.name, formatLabels(cv.labels), atomic.LoadUint64(&cv.value))
		return true
	})
}

// Gauge is a metric that can go up and down
type Gauge struct {
	name   string
	help   string
	values sync.Map // labelKey -> *gaugeValue
}

type gaugeValue struct {
	labels Labels
	bits   uint64 // float64 bits, accessed atomically
}

// NewGauge creates a new gauge metric
func NewGauge(name, help string) *Gauge {
	return &Gauge{name: name, help: help}
}

func (g *Gauge) Name() string     { return g.name }
func (g *Gauge) Help() string     { return g.help }
func (g *Gauge) Type() MetricType { return TypeGauge }

// Set sets the gauge to the given value
func (g *Gauge) Set(labels Labels, value float64) {
	val, _ := g.values.LoadOrStore(labelKey(labels), &gaugeValue{labels: labels})
	atomic.StoreUint64(&val.(*gaugeValue).bits, math.Float64bits(value))
}

// Get returns the current gauge value for labels
func (g *Gauge) Get(labels Labels) float64 {
	val, ok := g.values.Load(labelKey(labels))
	if !ok {
		return 0
	}
	return math.Float64frombits(atomic.LoadUint64(&val.(*gaugeValue).bits))
}

func (g *Gauge) Write(sb *strings.Builder) {
	writeHeader(sb, g.name, g.help, "gauge")
	g.values.Range(func(_, value interface{}) bool {
		gv := value.(*gaugeValue)
		v := math.Float64frombits(atomic.LoadUint64(&gv.bits))
		fmt.Fprintf(sb, "%s%s %s\n", g.name, formatLabels(gv.labels), formatFloat(v))
		return true
	})
}

// Histogram tracks the distribution of observations in fixed buckets
type Histogram struct {
	name    string
	help    string
	buckets []float64

	mu     sync.Mutex
	counts []uint64
	sum    float64
	count  uint64
}

// NewHistogram creates a new histogram with the given upper bounds.
// Bounds must be sorted ascending; a +Inf bucket is implicit.
func NewHistogram(name, help string, buckets []float64) *Histogram {
	b := make([]float64, len(buckets))
	copy(b, buckets)
	return &Histogram{
		name:    name,
		help:    help,
		buckets: b,
		counts:  make([]uint64, len(b)+1),
	}
}

func (h *Histogram) Name() string     { return h.name }
func (h *Histogram) Help() string     { return h.help }
func (h *Histogram) Type() MetricType { return TypeHistogram }

// Observe records a single observation
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	idx := len(h.buckets)
	for i, b := range h.buckets {
		if v <= b {
			idx = i
			break
		}
	}
	h.counts[idx]++
	h.sum += v
	h.count++
}

// Count returns the total number of observations
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Histogram) Write(sb *strings.Builder) {
	writeHeader(sb, h.name, h.help, "histogram")
	h.mu.Lock()
	defer h.mu.Unlock()
	cumulative := uint64(0)
	for i, b := range h.buckets {
		cumulative += h.counts[i]
		fmt.Fprintf(sb, "%s_bucket{le=\"%s\"} %d\n", h.name, formatFloat(b), cumulative)
	}
	cumulative += h.counts[len(h.buckets)]
	fmt.Fprintf(sb, "%s_bucket{le=\"+Inf\"} %d\n", h.name, cumulative)
	fmt.Fprintf(sb, "%s_sum %s\n", h.name, formatFloat(h.sum))
	fmt.Fprintf(sb, "%s_count %d\n", h.name, h.count)
}

func writeHeader(sb *strings.Builder, name, help, typ string) {
	sb.WriteString("# HELP ")
	sb.WriteString(name)
	sb.WriteByte(' ')
	sb.WriteString(help)
	sb.WriteByte('\n')
	sb.WriteString("# TYPE ")
	sb.WriteString(name)
	sb.WriteByte(' ')
	sb.WriteString(typ)
	sb.WriteByte('\n')
}

// Registry holds a set of metrics for exposition
type Registry struct {
	mu      sync.RWMutex
	metrics []Metric
	byName  map[string]Metric
}

// NewRegistry creates an empty metrics registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Metric)}
}

// Register adds a metric to the registry. Re-registering a name is an error.
func (r *Registry) Register(m Metric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[m.Name()]; ok {
		return fmt.Errorf("metrics: duplicate metric %q", m.Name())
	}
	r.byName[m.Name()] = m
	r.metrics = append(r.metrics, m)
	return nil
}

// MustRegister registers metrics, panicking on duplicates.
func (r *Registry) MustRegister(ms ...Metric) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Gather renders all registered metrics in Prometheus text format.
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sb strings.Builder
	for _, m := range r.metrics {
		m.Write(&sb)
	}
	return sb.String()
}
