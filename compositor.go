package camerarender

import (
	"fmt"
	"log/slog"
)

// CompositorStats is a snapshot of compositor activity
type CompositorStats struct {
	// Draws counts composite draw submissions
	Draws uint64
	// OutputAllocations counts output render target (re)allocations
	OutputAllocations uint64
	// ImageAllocations counts channel image (re)allocations per channel (Y, U, V)
	ImageAllocations [3]uint64
	// ScratchAllocations counts scratch buffer (re)allocations per channel (Y, U, V)
	ScratchAllocations [3]uint64
	// Output is the current output size (zero before the first frame)
	Output Dimensions
	// TextureScale is the last texture-scale uniform submitted
	TextureScale Vec2
}

// conversionContext is the reusable program instance the composite runs
// through, created once on first use.
type conversionContext struct {
	program ProgramID
	scale   Vec2
}

// FrameCompositor converts Y/U/V planes into one RGBA output image.
//
// Ownership:
//   - the three channel slots (images + scratch buffers)
//   - the output render target
//   - the conversion context (program instance)
//
// All of them are created lazily on the first frame and reused afterwards.
// Channel images are replaced only when a plane's dimensions change and the
// output only when the luma dimensions change.
//
// Thread-safety: none. A compositor is driven from a single thread, one
// frame at a time; OnFrame runs repack → composite to completion before
// returning.
type FrameCompositor struct {
	backend GraphicsBackend
	slots   [3]*ChannelSlot

	conv       *conversionContext
	output     ImageID
	outputDims Dimensions

	draws        uint64
	outputAllocs uint64
}

// NewFrameCompositor creates a compositor drawing through backend.
//
// Returns an error if backend is nil.
func NewFrameCompositor(backend GraphicsBackend) (*FrameCompositor, error) {
	if backend == nil {
		return nil, fmt.Errorf("camera-render: graphics backend is required")
	}

	return &FrameCompositor{
		backend: backend,
		slots: [3]*ChannelSlot{
			NewChannelSlot(ChannelY),
			NewChannelSlot(ChannelU),
			NewChannelSlot(ChannelV),
		},
	}, nil
}

// EnsureInitialized creates the conversion context on first use and
// (re)creates the output render target when its size differs from dims.
//
// Idempotent: calling it again with the same dimensions does nothing.
func (c *FrameCompositor) EnsureInitialized(dims Dimensions) error {
	if c.conv == nil {
		program, err := c.backend.CreateProgram(ShaderYUVCamera)
		if err != nil {
			return fmt.Errorf("camera-render: create conversion program: %w", err)
		}
		c.conv = &conversionContext{program: program}

		slog.Info("camera-render: conversion context created",
			"shader", ShaderYUVCamera,
		)
	}

	if c.output != 0 && c.outputDims == dims {
		return nil
	}

	if c.output != 0 {
		c.backend.DestroyImage(c.output)
		c.output = 0
	}

	target, err := c.backend.CreateRenderTarget(dims.Width, dims.Height)
	if err != nil {
		return fmt.Errorf("camera-render: create output %s: %w", dims, err)
	}
	c.output = target
	c.outputDims = dims
	c.outputAllocs++

	slog.Info("camera-render: output image allocated",
		"size", dims.String(),
		"allocations", c.outputAllocs,
	)

	return nil
}

// Composite renders a frame from any FrameSource.
func (c *FrameCompositor) Composite(src FrameSource) error {
	y, u, v, err := src.Planes()
	if err != nil {
		return err
	}
	return c.OnFrame(y, u, v)
}

// OnFrame updates the three channel images and composites them into the output.
//
// Sequence:
//  1. Validate all three planes (a malformed frame changes nothing)
//  2. EnsureInitialized with the luma dimensions
//  3. Repack Y, then U, then V into their channel images
//  4. Set the texture scale uniform to (1/chromaElementSize, -1): horizontal
//     chroma addressing steps one element at a time and rows are flipped
//     from the camera's top-down order to the display's bottom-up order
//  5. Submit one draw of the conversion program into the output
func (c *FrameCompositor) OnFrame(y, u, v Plane) error {
	planes := [3]Plane{y, u, v}
	for i, p := range planes {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("channel %s: %w", Channel(i), err)
		}
	}

	if err := c.EnsureInitialized(y.Dimensions()); err != nil {
		return err
	}

	for i, p := range planes {
		if err := RepackPlane(c.backend, c.conv.program, p, c.slots[i]); err != nil {
			return err
		}
	}

	c.conv.scale = Vec2{X: 1 / float32(u.ElementSize), Y: -1}
	if err := c.backend.SetUniform(c.conv.program, UniformTextureScale, c.conv.scale); err != nil {
		return fmt.Errorf("camera-render: set texture scale: %w", err)
	}

	if err := c.backend.SubmitDraw(c.conv.program, c.output); err != nil {
		return fmt.Errorf("camera-render: composite draw: %w", err)
	}
	c.draws++

	slog.Debug("camera-render: frame composited",
		"size", c.outputDims.String(),
		"scale_x", c.conv.scale.X,
		"draws", c.draws,
	)

	return nil
}

// Output returns the output render target and its size.
// The handle is zero until the first frame has been composited.
func (c *FrameCompositor) Output() (ImageID, Dimensions) {
	return c.output, c.outputDims
}

// Slot returns the compositor's slot for a channel.
func (c *FrameCompositor) Slot(ch Channel) *ChannelSlot {
	return c.slots[ch]
}

// Stats returns a snapshot of compositor counters.
func (c *FrameCompositor) Stats() CompositorStats {
	stats := CompositorStats{
		Draws:             c.draws,
		OutputAllocations: c.outputAllocs,
		Output:            c.outputDims,
	}
	if c.conv != nil {
		stats.TextureScale = c.conv.scale
	}
	for i, s := range c.slots {
		stats.ImageAllocations[i] = s.ImageAllocations()
		stats.ScratchAllocations[i] = s.ScratchAllocations()
	}
	return stats
}

// Close releases every image the compositor owns.
//
// Safe to call multiple times. The compositor can be reused afterwards;
// the next frame re-creates everything.
func (c *FrameCompositor) Close() {
	for _, s := range c.slots {
		s.release(c.backend)
	}
	if c.output != 0 {
		c.backend.DestroyImage(c.output)
		c.output = 0
		c.outputDims = Dimensions{}
	}
	c.conv = nil
}
