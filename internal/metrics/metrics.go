// Package metrics collects in-process counters and timings for API usage.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and manages metrics.
type Collector struct {
	mu        sync.RWMutex
	counters  map[string]*Counter
	gauges    map[string]*Gauge
	timers    map[string]*Timer
	startTime time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		counters:  make(map[string]*Counter),
		gauges:    make(map[string]*Gauge),
		timers:    make(map[string]*Timer),
		startTime: time.Now(),
	}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	atomic.AddInt64(&c.value, 1)
}

// Add adds n to the counter.
func (c *Counter) Add(n int64) {
	atomic.AddInt64(&c.value, n)
}

// Value returns the current counter value.
func (c *Counter) Value() int64 {
	return atomic.LoadInt64(&c.value)
}

// Gauge represents a value that can go up or down.
type Gauge struct {
	value float64
	mu    sync.Mutex
}

// Set sets the gauge value.
func (g *Gauge) Set(v float64) {
	g.mu.Lock()
	g.value = v
	g.mu.Unlock()
}

// Value returns the current gauge value.
func (g *Gauge) Value() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

// Timer keeps a bounded window of observed durations, in seconds.
type Timer struct {
	mu     sync.Mutex
	values []float64
	max    int
}

func newTimer(maxValues int) *Timer {
	return &Timer{values: make([]float64, 0, maxValues), max: maxValues}
}

// Observe records a duration.
func (t *Timer) Observe(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.values) >= t.max {
		t.values = t.values[1:]
	}
	t.values = append(t.values, d.Seconds())
}

// Start starts a new timer context.
func (t *Timer) Start() *TimerContext {
	return &TimerContext{timer: t, start: time.Now()}
}

// Stats returns statistics over the observed window.
func (t *Timer) Stats() TimerStats {
	t.mu.Lock()
	sorted := make([]float64, len(t.values))
	copy(sorted, t.values)
	t.mu.Unlock()

	if len(sorted) == 0 {
		return TimerStats{}
	}
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	return TimerStats{
		Count: n,
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[(n-1)*50/100],
		P90:   sorted[(n-1)*90/100],
		P99:   sorted[(n-1)*99/100],
	}
}

// TimerStats contains timer statistics in seconds.
type TimerStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P99   float64 `json:"p99"`
}

// TimerContext represents an active timer.
type TimerContext struct {
	timer *Timer
	start time.Time
}

// Stop stops the timer and records the duration.
func (tc *TimerContext) Stop() time.Duration {
	d := time.Since(tc.start)
	tc.timer.Observe(d)
	return d
}

// Counter returns or creates a counter.
func (c *Collector) Counter(name string) *Counter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, ok := c.counters[name]; ok {
		return counter
	}

	counter := &Counter{}
	c.counters[name] = counter
	return counter
}

// Gauge returns or creates a gauge.
func (c *Collector) Gauge(name string) *Gauge {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gauge, ok := c.gauges[name]; ok {
		return gauge
	}

	gauge := &Gauge{}
	c.gauges[name] = gauge
	return gauge
}

// Timer returns or creates a timer.
func (c *Collector) Timer(name string) *Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timer, ok := c.timers[name]; ok {
		return timer
	}

	timer := newTimer(1000)
	c.timers[name] = timer
	return timer
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Uptime   string                `json:"uptime"`
	Counters map[string]int64      `json:"counters"`
	Gauges   map[string]float64    `json:"gauges"`
	Timers   map[string]TimerStats `json:"timers"`
}

// Snapshot copies the current values.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:   time.Since(c.startTime).Round(time.Millisecond).String(),
		Counters: make(map[string]int64, len(c.counters)),
		Gauges:   make(map[string]float64, len(c.gauges)),
		Timers:   make(map[string]TimerStats, len(c.timers)),
	}
	for name, counter := range c.counters {
		s.Counters[name] = counter.Value()
	}
	for name, gauge := range c.gauges {
		s.Gauges[name] = gauge.Value()
	}
	for name, timer := range c.timers {
		s.Timers[name] = timer.Stats()
	}
	return s
}

// Export exports metrics to JSON.
func (c *Collector) Export() ([]byte, error) {
	return json.MarshalIndent(c.Snapshot(), "", "  ")
}

// ExportPrometheus exports metrics in Prometheus text format, sorted by name.
func (c *Collector) ExportPrometheus() string {
	s := c.Snapshot()
	var sb strings.Builder

	for _, name := range sortedKeys(s.Counters) {
		fmt.Fprintf(&sb, "# TYPE %s counter\n%s %d\n", name, name, s.Counters[name])
	}

	for _, name := range sortedKeys(s.Gauges) {
		fmt.Fprintf(&sb, "# TYPE %s gauge\n%s %f\n", name, name, s.Gauges[name])
	}

	for _, name := range sortedKeys(s.Timers) {
		stats := s.Timers[name]
		fmt.Fprintf(&sb, "# TYPE %s_seconds summary\n", name)
		fmt.Fprintf(&sb, "%s_seconds_count %d\n", name, stats.Count)
		fmt.Fprintf(&sb, "%s_seconds{quantile=\"0.5\"} %f\n", name, stats.P50)
		fmt.Fprintf(&sb, "%s_seconds{quantile=\"0.9\"} %f\n", name, stats.P90)
		fmt.Fprintf(&sb, "%s_seconds{quantile=\"0.99\"} %f\n", name, stats.P99)
	}

	return sb.String()
}

// WriteTo writes the metrics as "json" or "prometheus".
func (c *Collector) WriteTo(w io.Writer, format string) error {
	switch format {
	case "prometheus", "prom":
		_, err := io.WriteString(w, c.ExportPrometheus())
		return err
	case "", "json":
		data, err := c.Export()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return fmt.Errorf("unknown metrics format: %s", format)
	}
}

// Reset resets all metrics.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters = make(map[string]*Counter)
	c.gauges = make(map[string]*Gauge)
	c.timers = make(map[string]*Timer)
	c.startTime = time.Now()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
