package telemetry

import (
	"log/slog"
	"time"
)

// PerfCollector tracks wall-clock tick durations over a rolling window, for
// judging how far the engine is from real-time rate.
type PerfCollector struct {
	windowSize  int
	samples     []time.Duration
	writeIndex  int
	sampleCount int
	tickStart   time.Time
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]time.Duration, windowSize),
	}
}

// StartTick marks the beginning of a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
}

// EndTick records the elapsed time since StartTick.
func (p *PerfCollector) EndTick() {
	p.samples[p.writeIndex] = time.Since(p.tickStart)
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated tick timing over the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64
}

// Stats computes aggregate timing over the recorded window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{}
	}

	var total, min, max time.Duration
	for i := 0; i < p.sampleCount; i++ {
		d := p.samples[i]
		total += d
		if i == 0 || d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}

	avg := total / time.Duration(p.sampleCount)
	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}
	return PerfStats{
		AvgTickDuration: avg,
		MinTickDuration: min,
		MaxTickDuration: max,
		TicksPerSecond:  perSec,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("min_tick_us", s.MinTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
	)
}
