package camerarender

import "fmt"

// FrameSource normalises the producer's frame representation into the
// Y, U, V plane triple the compositor consumes.
//
// Two producer APIs exist: one delivers three independent planes
// (ThreePlaneFrame), the other a single buffer holding luma followed by
// chroma that is reached through stride arithmetic (CombinedFrame).
type FrameSource interface {
	Planes() (y, u, v Plane, err error)
}

// ThreePlaneFrame carries three independently strided planes.
type ThreePlaneFrame struct {
	Y Plane
	U Plane
	V Plane
}

// Planes returns the frame's planes unchanged.
func (f ThreePlaneFrame) Planes() (Plane, Plane, Plane, error) {
	return f.Y, f.U, f.V, nil
}

// Layout is the memory layout of a CombinedFrame
type Layout int

const (
	// LayoutI420 is planar 4:2:0: Y, then U, then V, each its own plane
	LayoutI420 Layout = iota
	// LayoutNV12 is semi-planar 4:2:0: Y, then interleaved U/V pairs
	LayoutNV12
	// LayoutNV21 is semi-planar 4:2:0: Y, then interleaved V/U pairs
	LayoutNV21
)

// String returns the fourcc-style name used in configuration and caps
func (l Layout) String() string {
	switch l {
	case LayoutI420:
		return "I420"
	case LayoutNV12:
		return "NV12"
	case LayoutNV21:
		return "NV21"
	default:
		return "unknown"
	}
}

// ParseLayout converts a fourcc-style name into a Layout.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "I420", "i420":
		return LayoutI420, nil
	case "NV12", "nv12":
		return LayoutNV12, nil
	case "NV21", "nv21":
		return LayoutNV21, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLayout, s)
	}
}

// CombinedFrame is a single buffer holding a luma plane followed by chroma.
//
// Chroma is 4:2:0 sub-sampled: (Width+1)/2 × (Height+1)/2 samples per
// chroma channel. ChromaStride defaults to (Stride+1)/2 for I420 and to Stride
// for the semi-planar layouts; ChromaOffset defaults to Stride*Height.
type CombinedFrame struct {
	Data         []byte
	Width        int
	Height       int
	Stride       int
	ChromaStride int
	ChromaOffset int
	Layout       Layout
}

// Planes derives the three plane views of the buffer.
//
// I420:
//
//	Y  [0, Stride*H)                               elementSize 1
//	U  [off, off+cs*ch)                            elementSize 1
//	V  [off+cs*ch, off+2*cs*ch)                    elementSize 1
//
// NV12 (NV21 swaps U and V):
//
//	Y  [0, Stride*H)                               elementSize 1
//	U  [off, end)                                  elementSize 2
//	V  [off+1, end)                                elementSize 2
//
// No bytes are copied; every plane aliases Data.
func (f CombinedFrame) Planes() (Plane, Plane, Plane, error) {
	if f.Width <= 0 || f.Height <= 0 || f.Stride < f.Width {
		return Plane{}, Plane{}, Plane{}, fmt.Errorf("%w: combined frame %dx%d stride %d",
			ErrMalformedPlane, f.Width, f.Height, f.Stride)
	}

	cw := (f.Width + 1) / 2
	ch := (f.Height + 1) / 2

	offset := f.ChromaOffset
	if offset == 0 {
		offset = f.Stride * f.Height
	}

	y := Plane{
		Data:        view(f.Data, 0, f.Stride*f.Height),
		Width:       f.Width,
		Height:      f.Height,
		Stride:      f.Stride,
		ElementSize: 1,
	}

	switch f.Layout {
	case LayoutI420:
		cs := f.ChromaStride
		if cs == 0 {
			cs = (f.Stride + 1) / 2
		}
		u := Plane{Data: view(f.Data, offset, cs*ch), Width: cw, Height: ch, Stride: cs, ElementSize: 1}
		v := Plane{Data: view(f.Data, offset+cs*ch, cs*ch), Width: cw, Height: ch, Stride: cs, ElementSize: 1}
		return y, u, v, nil

	case LayoutNV12, LayoutNV21:
		cs := f.ChromaStride
		if cs == 0 {
			cs = f.Stride
		}
		first := Plane{Data: view(f.Data, offset, cs*ch), Width: cw, Height: ch, Stride: cs, ElementSize: 2}
		second := Plane{Data: view(f.Data, offset+1, cs*ch-1), Width: cw, Height: ch, Stride: cs, ElementSize: 2}
		if f.Layout == LayoutNV21 {
			return y, second, first, nil
		}
		return y, first, second, nil

	default:
		return Plane{}, Plane{}, Plane{}, fmt.Errorf("%w: %d", ErrInvalidLayout, int(f.Layout))
	}
}

// view returns data[off:off+n], clamped to the buffer. Short views are
// reported later by Plane.Validate.
func view(data []byte, off, n int) []byte {
	if off >= len(data) {
		return nil
	}
	end := min(off+n, len(data))
	return data[off:end]
}
