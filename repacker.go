package camerarender

import (
	"fmt"
	"log/slog"

	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/repack"
)

// ChannelImage is a backend image holding one channel of the current frame.
type ChannelImage struct {
	ID     ImageID
	Width  int
	Height int
	Format PixelFormat
}

// ChannelSlot is the per-channel state the compositor keeps between frames:
// the channel image bound to the shader and the scratch buffer used to
// remove row padding.
//
// A slot is exclusively owned by one compositor and mutated only through
// RepackPlane on the frame-processing thread.
type ChannelSlot struct {
	channel Channel
	image   *ChannelImage
	scratch repack.Scratch

	imageAllocs uint64
}

// NewChannelSlot creates an empty slot for the given channel.
func NewChannelSlot(channel Channel) *ChannelSlot {
	return &ChannelSlot{channel: channel}
}

// Channel returns the channel this slot feeds.
func (s *ChannelSlot) Channel() Channel {
	return s.channel
}

// Image returns the current channel image, if any.
func (s *ChannelSlot) Image() (ChannelImage, bool) {
	if s.image == nil {
		return ChannelImage{}, false
	}
	return *s.image, true
}

// ImageAllocations returns how many channel images this slot has created.
func (s *ChannelSlot) ImageAllocations() uint64 {
	return s.imageAllocs
}

// ScratchAllocations returns how many times the scratch buffer was (re)allocated.
func (s *ChannelSlot) ScratchAllocations() uint64 {
	return s.scratch.Allocations()
}

// release destroys the slot's image and drops its scratch buffer.
func (s *ChannelSlot) release(backend GraphicsBackend) {
	if s.image != nil {
		backend.DestroyImage(s.image.ID)
		s.image = nil
	}
	s.scratch.Reset()
}

// RepackPlane copies one camera plane into the slot's channel image.
//
// Steps:
//  1. Validate the plane (ErrMalformedPlane on failure, nothing is touched)
//  2. If the slot's image has different dimensions or format, destroy it
//  3. If the slot has no image, create one sized to the plane with a format
//     chosen by element size (2 → dual-channel, else single-channel),
//     bilinear filtering, and bind it to the channel's sampler on program
//  4. Remove row padding (scratch reused unless the packed size changes;
//     packed planes are uploaded directly)
//  5. Upload and commit the pixels
//
// The plane's data is not retained after RepackPlane returns.
func RepackPlane(backend GraphicsBackend, program ProgramID, plane Plane, slot *ChannelSlot) error {
	if err := plane.Validate(); err != nil {
		return fmt.Errorf("channel %s: %w", slot.channel, err)
	}

	format := FormatForElementSize(plane.ElementSize)
	if slot.image != nil && (slot.image.Width != plane.Width || slot.image.Height != plane.Height || slot.image.Format != format) {
		slog.Info("camera-render: channel geometry changed, releasing image",
			"channel", slot.channel.String(),
			"from", Dimensions{Width: slot.image.Width, Height: slot.image.Height}.String(),
			"to", plane.Dimensions().String(),
			"from_format", slot.image.Format.String(),
			"to_format", format.String(),
		)
		backend.DestroyImage(slot.image.ID)
		slot.image = nil
	}

	if slot.image == nil {
		id, err := backend.CreateImage(ImageSpec{
			Width:  plane.Width,
			Height: plane.Height,
			Format: format,
			Filter: FilterBilinear,
		})
		if err != nil {
			return fmt.Errorf("camera-render: create %s channel image: %w", slot.channel, err)
		}

		if err := backend.BindSampler(program, slot.channel.SamplerName(), id); err != nil {
			backend.DestroyImage(id)
			return fmt.Errorf("camera-render: bind %s sampler: %w", slot.channel.SamplerName(), err)
		}

		slot.image = &ChannelImage{
			ID:     id,
			Width:  plane.Width,
			Height: plane.Height,
			Format: format,
		}
		slot.imageAllocs++

		slog.Debug("camera-render: channel image allocated",
			"channel", slot.channel.String(),
			"size", plane.Dimensions().String(),
			"format", format.String(),
			"sampler", slot.channel.SamplerName(),
		)
	}

	packed := repack.Destride(plane.Data, plane.Width, plane.Height, plane.Stride, plane.ElementSize, &slot.scratch)

	if err := backend.UploadPixels(slot.image.ID, packed); err != nil {
		return fmt.Errorf("camera-render: upload %s channel: %w", slot.channel, err)
	}

	return nil
}
