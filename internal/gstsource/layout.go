package gstsource

import (
	"fmt"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

func roundUp2(n int) int { return (n + 1) &^ 1 }
func roundUp4(n int) int { return (n + 3) &^ 3 }

// FrameLayout is the geometry GStreamer gives a raw 4:2:0 buffer when no
// video meta overrides it: every row is rounded up to 4 bytes and chroma
// starts after an even number of luma rows.
type FrameLayout struct {
	Stride       int
	ChromaStride int
	ChromaOffset int
	Size         int
}

// DefaultLayout returns the default buffer geometry for width×height.
func DefaultLayout(width, height int, layout camerarender.Layout) (FrameLayout, error) {
	if width <= 0 || height <= 0 {
		return FrameLayout{}, fmt.Errorf("gstsource: invalid size %dx%d", width, height)
	}

	stride := roundUp4(width)
	offset := stride * roundUp2(height)
	chromaRows := roundUp2(height) / 2

	switch layout {
	case camerarender.LayoutI420:
		cs := roundUp4(roundUp2(width) / 2)
		return FrameLayout{
			Stride:       stride,
			ChromaStride: cs,
			ChromaOffset: offset,
			Size:         offset + 2*cs*chromaRows,
		}, nil
	case camerarender.LayoutNV12, camerarender.LayoutNV21:
		return FrameLayout{
			Stride:       stride,
			ChromaStride: stride,
			ChromaOffset: offset,
			Size:         offset + stride*chromaRows,
		}, nil
	default:
		return FrameLayout{}, fmt.Errorf("%w: %d", camerarender.ErrInvalidLayout, int(layout))
	}
}

// CombinedFrame wraps data as a CombinedFrame with the given geometry.
// data is not copied.
func (l FrameLayout) CombinedFrame(data []byte, width, height int, layout camerarender.Layout) camerarender.CombinedFrame {
	return camerarender.CombinedFrame{
		Data:         data,
		Width:        width,
		Height:       height,
		Stride:       l.Stride,
		ChromaStride: l.ChromaStride,
		ChromaOffset: l.ChromaOffset,
		Layout:       layout,
	}
}

// buildCaps builds the raw video caps string for the capsfilter.
//
// Handles fractional framerates:
//   - fps >= 1.0: framerate = fps/1 (e.g., 5.0 → 5/1)
//   - fps < 1.0: framerate = 1/(1/fps) (e.g., 0.5 → 1/2)
func buildCaps(width, height int, fps float64, layout camerarender.Layout) string {
	numerator, denominator := 1, 1
	if fps < 1.0 {
		denominator = int(1.0 / fps)
	} else {
		numerator = int(fps)
	}

	return fmt.Sprintf(
		"video/x-raw,format=%s,width=%d,height=%d,framerate=%d/%d",
		layout, width, height, numerator, denominator,
	)
}
