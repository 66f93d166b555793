package camerarender

import (
	"fmt"
	"log/slog"
)

// RawPreviewStats is a snapshot of raw preview activity
type RawPreviewStats struct {
	Draws             uint64
	ImageAllocations  uint64
	OutputAllocations uint64
	Output            Dimensions
	TextureScale      Vec2
}

// RawPreview renders the luma plane alone as a grey image, row padding
// included in the upload and cropped by the texture scale.
//
// The luma plane is copied into a private buffer before the optional
// posterization pass, so the producer's buffer is never modified.
//
// Thread-safety: none, same as FrameCompositor.
type RawPreview struct {
	backend GraphicsBackend
	levels  uint8

	program    ProgramID
	image      *ChannelImage
	buf        []byte
	output     ImageID
	outputDims Dimensions
	scale      Vec2

	draws        uint64
	imageAllocs  uint64
	outputAllocs uint64
}

// NewRawPreview creates a raw preview drawing through backend.
// levels is the posterization level count; 0 disables posterization.
func NewRawPreview(backend GraphicsBackend, levels uint8) (*RawPreview, error) {
	if backend == nil {
		return nil, fmt.Errorf("camera-render: graphics backend is required")
	}
	return &RawPreview{backend: backend, levels: levels}, nil
}

// Composite renders the luma plane of src.
func (p *RawPreview) Composite(src FrameSource) error {
	y, _, _, err := src.Planes()
	if err != nil {
		return err
	}
	return p.OnFrame(y)
}

// OnFrame uploads the luma plane as a stride×height single-channel image
// with point filtering and draws it into a width×height output with
// texture scale (width*elementSize/stride, -1).
func (p *RawPreview) OnFrame(y Plane) error {
	if err := y.Validate(); err != nil {
		return fmt.Errorf("raw preview: %w", err)
	}

	if p.program == 0 {
		program, err := p.backend.CreateProgram(ShaderLumaPreview)
		if err != nil {
			return fmt.Errorf("camera-render: create preview program: %w", err)
		}
		p.program = program
	}

	if err := p.ensureOutput(y.Dimensions()); err != nil {
		return err
	}
	if err := p.ensureImage(y.Stride, y.Height); err != nil {
		return err
	}

	size := y.Stride * y.Height
	if len(p.buf) != size {
		p.buf = make([]byte, size)
	}
	if n := copy(p.buf, y.Data); n < size {
		clear(p.buf[n:])
	}
	if p.levels > 0 {
		if err := Posterize(p.buf, p.levels); err != nil {
			return err
		}
	}

	if err := p.backend.UploadPixels(p.image.ID, p.buf); err != nil {
		return fmt.Errorf("camera-render: upload preview: %w", err)
	}

	p.scale = Vec2{X: float32(y.PackedRowBytes()) / float32(y.Stride), Y: -1}
	if err := p.backend.SetUniform(p.program, UniformTextureScale, p.scale); err != nil {
		return fmt.Errorf("camera-render: set preview scale: %w", err)
	}
	if err := p.backend.SubmitDraw(p.program, p.output); err != nil {
		return fmt.Errorf("camera-render: preview draw: %w", err)
	}
	p.draws++

	return nil
}

func (p *RawPreview) ensureOutput(dims Dimensions) error {
	if p.output != 0 && p.outputDims == dims {
		return nil
	}
	if p.output != 0 {
		p.backend.DestroyImage(p.output)
		p.output = 0
	}

	target, err := p.backend.CreateRenderTarget(dims.Width, dims.Height)
	if err != nil {
		return fmt.Errorf("camera-render: create preview output %s: %w", dims, err)
	}
	p.output = target
	p.outputDims = dims
	p.outputAllocs++

	slog.Info("camera-render: preview output allocated", "size", dims.String())
	return nil
}

func (p *RawPreview) ensureImage(width, height int) error {
	if p.image != nil && p.image.Width == width && p.image.Height == height {
		return nil
	}
	if p.image != nil {
		p.backend.DestroyImage(p.image.ID)
		p.image = nil
	}

	id, err := p.backend.CreateImage(ImageSpec{
		Width:  width,
		Height: height,
		Format: FormatSingleChannel,
		Filter: FilterPoint,
	})
	if err != nil {
		return fmt.Errorf("camera-render: create preview image: %w", err)
	}
	if err := p.backend.BindSampler(p.program, SamplerLuma, id); err != nil {
		p.backend.DestroyImage(id)
		return fmt.Errorf("camera-render: bind preview sampler: %w", err)
	}

	p.image = &ChannelImage{ID: id, Width: width, Height: height, Format: FormatSingleChannel}
	p.imageAllocs++
	return nil
}

// Output returns the preview render target and its size.
func (p *RawPreview) Output() (ImageID, Dimensions) {
	return p.output, p.outputDims
}

// Stats returns a snapshot of preview counters.
func (p *RawPreview) Stats() RawPreviewStats {
	return RawPreviewStats{
		Draws:             p.draws,
		ImageAllocations:  p.imageAllocs,
		OutputAllocations: p.outputAllocs,
		Output:            p.outputDims,
		TextureScale:      p.scale,
	}
}

// Close releases the preview's images. The next frame re-creates them.
func (p *RawPreview) Close() {
	if p.image != nil {
		p.backend.DestroyImage(p.image.ID)
		p.image = nil
	}
	if p.output != 0 {
		p.backend.DestroyImage(p.output)
		p.output = 0
		p.outputDims = Dimensions{}
	}
	p.buf = nil
	p.program = 0
}
