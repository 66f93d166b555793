package camerarender

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/fpsstats"
)

// PresentationStats describes the rate and regularity of presented frames.
type PresentationStats struct {
	Frames   int
	Duration time.Duration

	FPSMean   float64
	FPSStdDev float64
	FPSMin    float64
	FPSMax    float64

	// Jitter is the distance between actual and expected frame intervals (seconds)
	JitterMean   float64
	JitterStdDev float64
	JitterMax    float64

	// IsStable reports FPS stddev < 15% of mean AND mean jitter < 20% of
	// the expected interval
	IsStable bool
}

// CalculatePresentationStats computes presentation statistics from frame
// timestamps spanning totalDuration.
//
// Public wrapper around internal/fpsstats.Calculate.
//
// Example: 30 FPS mean → stable if stddev < 4.5 AND jitter < 6.6ms
func CalculatePresentationStats(frameTimes []time.Time, totalDuration time.Duration) PresentationStats {
	return presentationStats(fpsstats.Calculate(frameTimes, totalDuration))
}

func presentationStats(s fpsstats.Stats) PresentationStats {
	return PresentationStats{
		Frames:       s.Frames,
		Duration:     s.Duration,
		FPSMean:      s.FPSMean,
		FPSStdDev:    s.FPSStdDev,
		FPSMin:       s.FPSMin,
		FPSMax:       s.FPSMax,
		JitterMean:   s.JitterMean,
		JitterStdDev: s.JitterStdDev,
		JitterMax:    s.JitterMax,
		IsStable:     s.IsStable,
	}
}
