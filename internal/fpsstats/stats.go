// Package fpsstats measures presentation rate and stability from frame
// timestamps.
package fpsstats

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of mean FPS.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected inter-frame interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20
)

// Stats summarises a run of frame timestamps
type Stats struct {
	Frames   int
	Duration time.Duration

	FPSMean   float64
	FPSStdDev float64
	FPSMin    float64
	FPSMax    float64

	// Jitter statistics (seconds)
	JitterMean   float64
	JitterStdDev float64
	JitterMax    float64

	IsStable bool
}

// Calculate computes FPS statistics from frame timestamps
//
// This function:
//  1. Calculates mean FPS over totalDuration
//  2. Calculates instantaneous FPS for each frame interval
//  3. Finds min/max instantaneous FPS and their standard deviation
//  4. Calculates jitter (distance from the expected interval)
//  5. Determines stability (stddev < 15% of mean AND jitter < 20%)
func Calculate(frameTimes []time.Time, totalDuration time.Duration) Stats {
	n := len(frameTimes)
	stats := Stats{Frames: n, Duration: totalDuration}

	if n == 0 || totalDuration <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		if interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds(); interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return stats
	}

	stats.FPSMin = instantaneous[0]
	stats.FPSMax = instantaneous[0]
	var sumSquares float64
	for _, fps := range instantaneous {
		stats.FPSMin = min(stats.FPSMin, fps)
		stats.FPSMax = max(stats.FPSMax, fps)
		diff := fps - stats.FPSMean
		sumSquares += diff * diff
	}
	stats.FPSStdDev = math.Sqrt(sumSquares / float64(len(instantaneous)))

	expectedInterval := 1.0 / stats.FPSMean
	jitters := make([]float64, 0, n-1)
	var jitterSum float64
	for i := 1; i < n; i++ {
		j := math.Abs(frameTimes[i].Sub(frameTimes[i-1]).Seconds() - expectedInterval)
		jitters = append(jitters, j)
		jitterSum += j
		stats.JitterMax = max(stats.JitterMax, j)
	}
	stats.JitterMean = jitterSum / float64(len(jitters))

	var jitterSumSquares float64
	for _, j := range jitters {
		diff := j - stats.JitterMean
		jitterSumSquares += diff * diff
	}
	stats.JitterStdDev = math.Sqrt(jitterSumSquares / float64(len(jitters)))

	fpsStable := stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold
	jitterStable := stats.JitterMean < expectedInterval*jitterStabilityThreshold
	stats.IsStable = fpsStable && jitterStable

	return stats
}

// Window keeps the most recent frame timestamps in a fixed-size ring.
//
// Thread-safe: Record is called from the render thread while Stats may be
// read from any goroutine.
type Window struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

// NewWindow creates a window holding up to size timestamps (minimum 2).
func NewWindow(size int) *Window {
	return &Window{times: make([]time.Time, max(size, 2))}
}

// Record adds a timestamp, evicting the oldest when the window is full.
func (w *Window) Record(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.times[w.next] = t
	w.next++
	if w.next == len(w.times) {
		w.next = 0
		w.full = true
	}
}

// Reset drops every recorded timestamp.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	clear(w.times)
	w.next = 0
	w.full = false
}

// Stats computes statistics over the window's timestamps, oldest first.
// Duration spans from the first to the last recorded timestamp.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	ordered := w.ordered()
	w.mu.Unlock()

	if len(ordered) < 2 {
		return Stats{Frames: len(ordered)}
	}
	span := ordered[len(ordered)-1].Sub(ordered[0])
	// n timestamps bound n-1 intervals; stretch the span by one mean
	// interval so FPSMean matches the interval rate.
	duration := span + span/time.Duration(len(ordered)-1)
	return Calculate(ordered, duration)
}

func (w *Window) ordered() []time.Time {
	if !w.full {
		return append([]time.Time(nil), w.times[:w.next]...)
	}
	out := make([]time.Time, 0, len(w.times))
	out = append(out, w.times[w.next:]...)
	return append(out, w.times[:w.next]...)
}
