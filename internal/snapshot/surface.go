package snapshot

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/present"
)

// Reader reads a render target back as a top-down RGBA image.
// The software backend satisfies it.
type Reader interface {
	Snapshot(target camerarender.ImageID) (*image.RGBA, error)
}

// Publisher accepts frames without blocking.
type Publisher interface {
	Publish(frame *present.Frame)
}

// SurfaceStats is a snapshot of surface activity
type SurfaceStats struct {
	Enabled   bool
	Presented uint64
	Published uint64
	Skipped   uint64
	Failed    uint64
}

// Surface is a camerarender.Surface that hands every Nth presented frame
// to a Publisher while enabled.
//
// Present runs on the render thread; the only work it does there is the
// read-back copy, which must happen before the compositor reuses the
// render target.
type Surface struct {
	reader    Reader
	publisher Publisher
	everyN    uint64

	enabled   atomic.Bool
	presented atomic.Uint64
	published atomic.Uint64
	skipped   atomic.Uint64
	failed    atomic.Uint64
}

var _ camerarender.Surface = (*Surface)(nil)

// NewSurface creates a disabled surface. everyN < 1 is treated as 1.
func NewSurface(reader Reader, publisher Publisher, everyN int) (*Surface, error) {
	if reader == nil {
		return nil, fmt.Errorf("snapshot: reader is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("snapshot: publisher is required")
	}
	return &Surface{
		reader:    reader,
		publisher: publisher,
		everyN:    uint64(max(everyN, 1)),
	}, nil
}

// SetEnabled shows or hides the surface.
func (s *Surface) SetEnabled(enabled bool) {
	if s.enabled.Swap(enabled) != enabled {
		slog.Info("snapshot: surface toggled", "enabled", enabled)
	}
}

// Present reads the frame back and publishes it when enabled and
// frame.Seq is a multiple of everyN.
func (s *Surface) Present(frame camerarender.OutputFrame) {
	s.presented.Add(1)

	if !s.enabled.Load() || frame.Seq%s.everyN != 0 {
		s.skipped.Add(1)
		return
	}

	img, err := s.reader.Snapshot(frame.Image)
	if err != nil {
		s.failed.Add(1)
		slog.Warn("snapshot: read back failed",
			"seq", frame.Seq,
			"error", err,
		)
		return
	}

	s.publisher.Publish(&present.Frame{
		Image:     img,
		Seq:       frame.Seq,
		Timestamp: frame.Timestamp,
		TraceID:   frame.TraceID,
		SessionID: frame.SessionID,
	})
	s.published.Add(1)
}

// Stats returns a snapshot of surface counters.
func (s *Surface) Stats() SurfaceStats {
	return SurfaceStats{
		Enabled:   s.enabled.Load(),
		Presented: s.presented.Load(),
		Published: s.published.Load(),
		Skipped:   s.skipped.Load(),
		Failed:    s.failed.Load(),
	}
}
