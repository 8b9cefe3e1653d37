// Package profiler - Stage timings, counters and periodic reports for the pose pipeline.
package profiler

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Counter names recorded by the pipeline.
const (
	CounterFrames      = "frames"
	CounterDropped     = "dropped"
	CounterShapeErrors = "shape_errors"
	CounterErrors      = "errors"
	CounterDetections  = "detections"
)

// Operation names recorded outside of the model stages.
const (
	OperationInference = "inference"
	OperationTotal     = "total"
)

// Metric names recorded by the pipeline.
const (
	MetricDetectionsPerFrame  = "detections_per_frame"
	MetricConfidenceThreshold = "confidence_threshold"
	MetricOverlapThreshold    = "overlap_threshold"
)

// MetricsCollector defines the interface for collecting custom metrics.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// Options configures the profiler.
type Options struct {
	// ReportInterval specifies how often to emit status reports (default: 10s).
	ReportInterval time.Duration `json:"report_interval" yaml:"report_interval"`
	// MaxSamples specifies the maximum number of samples kept per metric (default: 600).
	MaxSamples int `json:"max_samples" yaml:"max_samples"`
	// Logger receives the reports. Nil discards them.
	Logger *zap.SugaredLogger `json:"-" yaml:"-"`
}

// Profiler tracks operation timings, counters and custom metrics.
//
// All methods are safe for concurrent use. The zero value is not usable; create
// one with New.
type Profiler struct {
	reportInterval time.Duration
	maxSamples     int
	logger         *zap.SugaredLogger

	mu         sync.RWMutex
	startTime  time.Time
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	counters   map[string]int64
	metrics    map[string]*tracker[float64]
	operations map[string]*tracker[time.Duration]
	collectors []MetricsCollector
}

// tracker keeps a bounded window of samples plus lifetime min/max/count.
type tracker[T float64 | time.Duration] struct {
	values []T
	sum    T
	min    T
	max    T
	count  int64
}

func (t *tracker[T]) add(value T, maxSamples int) {
	if t.count == 0 || value < t.min {
		t.min = value
	}
	if t.count == 0 || value > t.max {
		t.max = value
	}
	t.values = append(t.values, value)
	t.sum += value
	if len(t.values) > maxSamples {
		t.sum -= t.values[0]
		t.values = t.values[1:]
	}
	t.count++
}

func (t *tracker[T]) avg() T {
	if len(t.values) == 0 {
		return 0
	}
	return t.sum / T(len(t.values))
}

// New creates a new profiler with the specified options.
//
// Arguments:
//   - opts: Configuration options for the profiler.
//
// Returns:
//   - *Profiler: A profiler that records immediately and reports once started.
func New(opts Options) *Profiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 10 * time.Second
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	return &Profiler{
		reportInterval: opts.ReportInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		startTime:      time.Now(),
		counters:       make(map[string]int64),
		metrics:        make(map[string]*tracker[float64]),
		operations:     make(map[string]*tracker[time.Duration]),
	}
}

// Start begins emitting periodic reports. Calling Start on a running profiler
// is a no-op.
func (p *Profiler) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.reportInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Report()
			}
		}
	}()
}

// Stop stops the report loop and waits for it to exit.
func (p *Profiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

// AddMetricsCollector registers a collector that is sampled on every report.
func (p *Profiler) AddMetricsCollector(collector MetricsCollector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectors = append(p.collectors, collector)
}

// Increment adds one to the named counter.
func (p *Profiler) Increment(name string) {
	p.Add(name, 1)
}

// Add adds delta to the named counter.
func (p *Profiler) Add(name string, delta int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters[name] += delta
}

// RecordMetric records a custom metric value.
//
// Arguments:
//   - name: The name of the metric.
//   - value: The metric value to record.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordMetricLocked(name, value)
}

func (p *Profiler) recordMetricLocked(name string, value float64) {
	t, ok := p.metrics[name]
	if !ok {
		t = &tracker[float64]{}
		p.metrics[name] = t
	}
	t.add(value, p.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Stops the timer and records the elapsed time.
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration records the duration of one run of the named operation.
func (p *Profiler) RecordDuration(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.operations[name]
	if !ok {
		t = &tracker[time.Duration]{}
		p.operations[name] = t
	}
	t.add(d, p.maxSamples)
}

// OperationStats summarizes the timings of one operation over the sample window.
type OperationStats struct {
	Count int64         `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// MetricStats summarizes one custom metric over the sample window.
type MetricStats struct {
	Samples int     `json:"samples"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Snapshot is a point-in-time copy of everything the profiler has recorded.
type Snapshot struct {
	Uptime     time.Duration             `json:"uptime"`
	Goroutines int                       `json:"goroutines"`
	Counters   map[string]int64          `json:"counters"`
	Operations map[string]OperationStats `json:"operations"`
	Metrics    map[string]MetricStats    `json:"metrics"`
}

// Snapshot returns the current statistics.
//
// Returns:
//   - Snapshot: A copy that is safe to keep after further recording.
func (p *Profiler) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		Uptime:     time.Since(p.startTime),
		Goroutines: runtime.NumGoroutine(),
		Counters:   make(map[string]int64, len(p.counters)),
		Operations: make(map[string]OperationStats, len(p.operations)),
		Metrics:    make(map[string]MetricStats, len(p.metrics)),
	}
	for name, v := range p.counters {
		s.Counters[name] = v
	}
	for name, t := range p.operations {
		s.Operations[name] = OperationStats{Count: t.count, Avg: t.avg(), Min: t.min, Max: t.max}
	}
	for name, t := range p.metrics {
		s.Metrics[name] = MetricStats{Samples: len(t.values), Avg: t.avg(), Min: t.min, Max: t.max}
	}
	return s
}

// Report samples the registered collectors and logs one status report.
func (p *Profiler) Report() {
	p.mu.Lock()
	for _, c := range p.collectors {
		for name, value := range c.CollectMetrics() {
			p.recordMetricLocked(name, value)
		}
	}
	p.mu.Unlock()

	s := p.Snapshot()

	fields := []interface{}{
		"uptime", s.Uptime.Truncate(time.Millisecond),
		"goroutines", s.Goroutines,
	}
	for _, name := range sortedKeys(s.Counters) {
		fields = append(fields, name, s.Counters[name])
	}
	for _, name := range sortedKeys(s.Operations) {
		op := s.Operations[name]
		fields = append(fields, name+"_avg", op.Avg.Truncate(time.Microsecond), name+"_max", op.Max.Truncate(time.Microsecond))
	}
	for _, name := range sortedKeys(s.Metrics) {
		fields = append(fields, name, s.Metrics[name].Avg)
	}

	p.logger.Infow("profiler report", fields...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
