package camerarender

import (
	"errors"
	"fmt"
	"time"
)

// Public API errors
var (
	// ErrMalformedPlane is returned when a plane's geometry or buffer length
	// cannot describe the pixels it claims to hold.
	ErrMalformedPlane = errors.New("camera-render: malformed plane")
	// ErrNotConfigured is returned by Visualizer.Start when a required
	// collaborator (surface or indicator) is missing.
	ErrNotConfigured = errors.New("camera-render: required collaborator not configured")
	// ErrUnknownShader is returned by a backend asked for a shader it does not know.
	ErrUnknownShader = errors.New("camera-render: unknown shader")
	// ErrUnknownImage is returned by a backend handed an image it does not own.
	ErrUnknownImage = errors.New("camera-render: unknown image")
	// ErrInvalidLayout is returned when a combined frame has an unsupported layout.
	ErrInvalidLayout = errors.New("camera-render: invalid frame layout")
)

// Plane describes one image plane delivered by the camera driver.
//
// Plane data belongs to the producer and is only valid for the duration of
// the call that delivers it. Nothing in this module retains Data after
// that call returns.
type Plane struct {
	// Data holds the raw plane bytes, row after row, Stride bytes apart
	Data []byte
	// Width in logical pixels
	Width int
	// Height in logical pixels
	Height int
	// Stride is the number of bytes between the start of two rows
	Stride int
	// ElementSize is the number of bytes per logical pixel (pixel stride):
	// 1 for 8-bit planes, 2 for interleaved chroma
	ElementSize int
}

// PackedRowBytes returns the length of one row without padding.
func (p Plane) PackedRowBytes() int {
	return p.Width * p.ElementSize
}

// PackedSize returns the length of the plane once padding is removed.
func (p Plane) PackedSize() int {
	return p.PackedRowBytes() * p.Height
}

// IsPacked reports whether rows carry no padding.
func (p Plane) IsPacked() bool {
	return p.Stride == p.PackedRowBytes()
}

// Validate checks the plane geometry against its buffer.
//
// The last row does not need a full stride, and its last element only needs
// its first byte: the V view of a semi-planar buffer starts one byte into
// the interleaved plane and therefore ends one byte early. The missing byte
// is zero-filled when the plane is repacked.
//
// Returns an error wrapping ErrMalformedPlane if:
//   - Width, Height or ElementSize is not positive
//   - Stride is smaller than Width*ElementSize
//   - Data is shorter than Stride*(Height-1) + (Width-1)*ElementSize + 1
func (p Plane) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrMalformedPlane, p.Width, p.Height)
	}
	if p.ElementSize <= 0 {
		return fmt.Errorf("%w: invalid element size %d", ErrMalformedPlane, p.ElementSize)
	}
	if p.Stride < p.PackedRowBytes() {
		return fmt.Errorf("%w: stride %d smaller than row of %d bytes",
			ErrMalformedPlane, p.Stride, p.PackedRowBytes())
	}
	need := p.Stride*(p.Height-1) + (p.Width-1)*p.ElementSize + 1
	if len(p.Data) < need {
		return fmt.Errorf("%w: buffer holds %d bytes, need %d",
			ErrMalformedPlane, len(p.Data), need)
	}
	return nil
}

// Dimensions returns the plane's logical size.
func (p Plane) Dimensions() Dimensions {
	return Dimensions{Width: p.Width, Height: p.Height}
}

// Dimensions is a width/height pair in pixels
type Dimensions struct {
	Width  int
	Height int
}

// String returns the "WxH" form used in logs.
func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Channel identifies one of the three colour channels fed to the shader.
type Channel int

const (
	// ChannelY is the luma channel
	ChannelY Channel = iota
	// ChannelU is the blue-difference chroma channel
	ChannelU
	// ChannelV is the red-difference chroma channel
	ChannelV
)

// Sampler names the conversion shader binds each channel to.
const (
	SamplerLuma    = "_MainTex"
	SamplerChromaU = "_UTex"
	SamplerChromaV = "_VTex"
)

// Shader names registered by backends.
const (
	// ShaderYUVCamera combines three channel images into RGB
	ShaderYUVCamera = "Unlit/YUV_Camera_Shader"
	// ShaderLumaPreview renders a single-channel image as grey
	ShaderLumaPreview = "Unlit/Luma_Preview_Shader"
)

// UniformTextureScale is the per-frame texture scale uniform.
const UniformTextureScale = "_MainTex_Scale"

// SamplerName returns the fixed sampler slot name for the channel.
func (c Channel) SamplerName() string {
	switch c {
	case ChannelY:
		return SamplerLuma
	case ChannelU:
		return SamplerChromaU
	case ChannelV:
		return SamplerChromaV
	default:
		return SamplerLuma
	}
}

// String returns a human-readable channel name
func (c Channel) String() string {
	switch c {
	case ChannelY:
		return "Y"
	case ChannelU:
		return "U"
	case ChannelV:
		return "V"
	default:
		return "unknown"
	}
}

// OutputFrame is handed to the display surface after every composite.
//
// Image refers to the compositor's output render target, which is updated
// in place; a surface that needs the pixels after Present returns must copy
// them.
type OutputFrame struct {
	// Image is the backend handle of the RGBA render target
	Image ImageID
	// Width in pixels (luma width)
	Width int
	// Height in pixels (luma height)
	Height int
	// Seq is the monotonic composite counter
	Seq uint64
	// Timestamp is when the composite finished
	Timestamp time.Time
	// TraceID is a unique identifier for this composite
	TraceID string
	// SessionID identifies the capture session that produced the frame
	SessionID string
}
