package diag

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Profiler times named sections and keeps running min/max/average
// statistics, for measuring where a graph's control-side work (compile,
// node construction) spends its time. Not for use on the audio thread:
// Start/record take a mutex.
type Profiler struct {
	mu         sync.RWMutex
	measurements map[string]*Measurement
	enabled    atomic.Bool
	maxSamples int
}

// Measurement holds timing statistics for one profiled section name.
type Measurement struct {
	name        string
	count       uint64
	totalTime   time.Duration
	minTime     time.Duration
	maxTime     time.Duration
	lastTime    time.Duration
	samples     []time.Duration
	sampleIndex int
}

// NewProfiler creates a profiler retaining up to maxSamples recent
// timings per section for percentile queries.
func NewProfiler(maxSamples int) *Profiler {
	p := &Profiler{
		measurements: make(map[string]*Measurement),
		maxSamples:   maxSamples,
	}
	p.enabled.Store(true)
	return p
}

func (p *Profiler) SetEnabled(enabled bool) { p.enabled.Store(enabled) }
func (p *Profiler) IsEnabled() bool         { return p.enabled.Load() }

// Start begins timing name and returns a function that stops it; a
// no-op when the profiler is disabled.
func (p *Profiler) Start(name string) func() {
	if !p.enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() {
		p.record(name, time.Since(start))
	}
}

// Time runs fn and records its elapsed time under name.
func (p *Profiler) Time(name string, fn func()) {
	stop := p.Start(name)
	defer stop()
	fn()
}

func (p *Profiler) record(name string, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, exists := p.measurements[name]
	if !exists {
		m = &Measurement{
			name:    name,
			minTime: elapsed,
			maxTime: elapsed,
			samples: make([]time.Duration, p.maxSamples),
		}
		p.measurements[name] = m
	}

	m.count++
	m.totalTime += elapsed
	m.lastTime = elapsed
	if elapsed < m.minTime {
		m.minTime = elapsed
	}
	if elapsed > m.maxTime {
		m.maxTime = elapsed
	}

	m.samples[m.sampleIndex] = elapsed
	m.sampleIndex = (m.sampleIndex + 1) % p.maxSamples
}

// GetMeasurement returns a copy of the measurement for name.
func (p *Profiler) GetMeasurement(name string) (*Measurement, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	m, exists := p.measurements[name]
	if !exists {
		return nil, false
	}
	copy := *m
	return &copy, true
}

// GetAllMeasurements returns a copy of every measurement this profiler
// holds.
func (p *Profiler) GetAllMeasurements() map[string]*Measurement {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string]*Measurement, len(p.measurements))
	for k, v := range p.measurements {
		copy := *v
		result[k] = &copy
	}
	return result
}

// Reset clears all recorded measurements.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.measurements = make(map[string]*Measurement)
}

// Report renders every measurement as a human-readable block.
func (p *Profiler) Report() string {
	measurements := p.GetAllMeasurements()
	if len(measurements) == 0 {
		return "no measurements recorded"
	}

	report := "performance report:\n====================\n\n"
	for name, m := range measurements {
		avg := time.Duration(0)
		if m.count > 0 {
			avg = m.totalTime / time.Duration(m.count)
		}
		report += fmt.Sprintf("%s:\n", name)
		report += fmt.Sprintf("  count:   %d\n", m.count)
		report += fmt.Sprintf("  total:   %v\n", m.totalTime)
		report += fmt.Sprintf("  average: %v\n", avg)
		report += fmt.Sprintf("  min:     %v\n", m.minTime)
		report += fmt.Sprintf("  max:     %v\n", m.maxTime)
		report += fmt.Sprintf("  last:    %v\n", m.lastTime)
		report += "\n"
	}
	return report
}

// Average returns the mean elapsed time recorded for this measurement.
func (m *Measurement) Average() time.Duration {
	if m.count == 0 {
		return 0
	}
	return m.totalTime / time.Duration(m.count)
}

// Percentile returns an approximate p-th percentile (0-100) of the
// retained recent samples.
func (m *Measurement) Percentile(p float64) time.Duration {
	if m.count == 0 {
		return 0
	}
	validSamples := make([]time.Duration, 0, len(m.samples))
	for i := 0; i < len(m.samples) && i < int(m.count); i++ {
		if m.samples[i] > 0 {
			validSamples = append(validSamples, m.samples[i])
		}
	}
	if len(validSamples) == 0 {
		return 0
	}
	sort.Slice(validSamples, func(i, j int) bool { return validSamples[i] < validSamples[j] })
	index := int(float64(len(validSamples)-1) * p / 100.0)
	return validSamples[index]
}

// ProcessorProfiler specializes Profiler for tracking a graph's
// real-time CPU load: the fraction of each block's available time that
// process_interleaved actually spent computing.
type ProcessorProfiler struct {
	*Profiler
	bufferSize     int
	sampleRate     float64
	cpuLoadPercent atomic.Uint64
}

// NewProcessorProfiler creates a CPU-load profiler for a stream running
// at sampleRate with bufferSize frames per block.
func NewProcessorProfiler(sampleRate float64, bufferSize int) *ProcessorProfiler {
	return &ProcessorProfiler{
		Profiler:   NewProfiler(1000),
		sampleRate: sampleRate,
		bufferSize: bufferSize,
	}
}

// UpdateCPULoad recomputes the CPU load percentage from the
// "ProcessInterleaved" measurement's running average, given the
// buffer's wall-clock duration at this stream's sample rate.
func (a *ProcessorProfiler) UpdateCPULoad() {
	m, exists := a.GetMeasurement("ProcessInterleaved")
	if !exists || m.count == 0 {
		return
	}

	bufferDuration := time.Duration(float64(a.bufferSize) / a.sampleRate * float64(time.Second))
	avgProcessTime := m.Average()
	cpuLoad := float64(avgProcessTime) / float64(bufferDuration) * 100.0

	a.cpuLoadPercent.Store(uint64(cpuLoad * 100))
}

// GetCPULoad returns the most recently computed CPU load percentage.
func (a *ProcessorProfiler) GetCPULoad() float64 {
	return float64(a.cpuLoadPercent.Load()) / 100.0
}

// Report renders the base report plus stream-specific CPU load stats.
func (a *ProcessorProfiler) Report() string {
	report := a.Profiler.Report()
	report += fmt.Sprintf("\nstream stats:\n")
	report += fmt.Sprintf("  sample rate: %.0f Hz\n", a.sampleRate)
	report += fmt.Sprintf("  buffer size: %d samples\n", a.bufferSize)
	report += fmt.Sprintf("  CPU load:    %.2f%%\n", a.GetCPULoad())
	return report
}
