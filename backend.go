package camerarender

// ImageID is an opaque backend handle for an image or render target.
// The zero value never refers to a live image.
type ImageID uint32

// ProgramID is an opaque backend handle for a shader program instance.
// The zero value never refers to a live program.
type ProgramID uint32

// PixelFormat is the backing format of a channel image
type PixelFormat int

const (
	// FormatSingleChannel stores one byte per texel (Alpha8/R8)
	FormatSingleChannel PixelFormat = iota
	// FormatDualChannel stores two bytes per texel (RG16)
	FormatDualChannel
	// FormatRGBA32 stores four bytes per texel (render targets)
	FormatRGBA32
)

// FormatForElementSize selects the channel image format for a plane.
// Element size 2 maps to a dual-channel format, anything else to single-channel.
func FormatForElementSize(elementSize int) PixelFormat {
	if elementSize == 2 {
		return FormatDualChannel
	}
	return FormatSingleChannel
}

// BytesPerTexel returns the storage size of one texel.
func (f PixelFormat) BytesPerTexel() int {
	switch f {
	case FormatDualChannel:
		return 2
	case FormatRGBA32:
		return 4
	default:
		return 1
	}
}

// String returns a human-readable format name
func (f PixelFormat) String() string {
	switch f {
	case FormatSingleChannel:
		return "single-channel"
	case FormatDualChannel:
		return "dual-channel"
	case FormatRGBA32:
		return "rgba32"
	default:
		return "unknown"
	}
}

// FilterMode selects how an image is interpolated when sampled
type FilterMode int

const (
	// FilterPoint samples the nearest texel
	FilterPoint FilterMode = iota
	// FilterBilinear interpolates between neighbouring texels
	FilterBilinear
)

// ImageSpec describes an image to allocate
type ImageSpec struct {
	Width  int
	Height int
	Format PixelFormat
	Filter FilterMode
}

// Vec2 is a two-component uniform value
type Vec2 struct {
	X float32
	Y float32
}

// GraphicsBackend is the rendering capability the core depends on.
//
// Implementations own every image, program and render target they hand out.
// The core never touches engine types directly; it drives the backend from
// the single frame-processing thread, so implementations need not be safe
// for concurrent use unless they document otherwise.
type GraphicsBackend interface {
	// CreateImage allocates a sampled image.
	CreateImage(spec ImageSpec) (ImageID, error)

	// DestroyImage releases an image. Unknown handles are ignored.
	DestroyImage(id ImageID)

	// UploadPixels replaces the full content of an image and commits it so
	// later draws observe the new pixels. len(pixels) must equal
	// width*height*BytesPerTexel.
	UploadPixels(id ImageID, pixels []byte) error

	// CreateProgram instantiates the shader registered under name.
	CreateProgram(shaderName string) (ProgramID, error)

	// BindSampler attaches an image to a named sampler slot of a program.
	BindSampler(program ProgramID, sampler string, image ImageID) error

	// SetUniform sets a named two-component uniform on a program.
	SetUniform(program ProgramID, name string, value Vec2) error

	// CreateRenderTarget allocates an RGBA render target.
	CreateRenderTarget(width, height int) (ImageID, error)

	// SubmitDraw runs the program over every texel of target, synchronously.
	SubmitDraw(program ProgramID, target ImageID) error
}
