// Package snapshot writes presented frames to disk.
//
// Two halves meet at a present.Mailbox: Surface runs on the render thread,
// reads the composited pixels back from the backend and publishes them;
// Saver runs on its own goroutine and encodes whatever frame is newest.
// A slow disk therefore costs dropped snapshots, never render time.
package snapshot

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/present"
)

// Supported output formats
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// createFile opens the destination of one snapshot.
var createFile = func(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Saver encodes frames to PNG or JPEG files.
//
// Thread-safe: SaveFrame can be called from multiple goroutines.
type Saver struct {
	outputDir   string
	format      string
	jpegQuality int

	framesSaved   atomic.Uint64
	framesDropped atomic.Uint64
}

// NewSaver creates a saver writing into outputDir, creating it if needed.
//
// format is "png" or "jpeg"; jpegQuality (1-100) only applies to JPEG.
func NewSaver(outputDir, format string, jpegQuality int) (*Saver, error) {
	if format != FormatPNG && format != FormatJPEG {
		return nil, fmt.Errorf("snapshot: unsupported format %q (must be png or jpeg)", format)
	}
	if format == FormatJPEG && (jpegQuality < 1 || jpegQuality > 100) {
		return nil, fmt.Errorf("snapshot: jpeg quality %d out of range 1-100", jpegQuality)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("snapshot: create output directory: %w", err)
	}

	return &Saver{
		outputDir:   outputDir,
		format:      format,
		jpegQuality: jpegQuality,
	}, nil
}

// Filename returns the file name a frame is saved under:
// frame_{seq:06d}_{timestamp}.{ext}, e.g. frame_000042_20251105_234517.123.png
func (s *Saver) Filename(frame *present.Frame) string {
	return fmt.Sprintf("frame_%06d_%s.%s",
		frame.Seq,
		frame.Timestamp.Format("20060102_150405.000"),
		s.format)
}

// SaveFrame encodes one frame and returns the path written.
func (s *Saver) SaveFrame(frame *present.Frame) (string, error) {
	if frame == nil || frame.Image == nil {
		s.framesDropped.Add(1)
		return "", fmt.Errorf("snapshot: frame has no image")
	}

	path := filepath.Join(s.outputDir, s.Filename(frame))
	file, err := createFile(path)
	if err != nil {
		s.framesDropped.Add(1)
		return "", fmt.Errorf("snapshot: create file: %w", err)
	}

	switch s.format {
	case FormatPNG:
		err = png.Encode(file, frame.Image)
	case FormatJPEG:
		err = jpeg.Encode(file, frame.Image, &jpeg.Options{Quality: s.jpegQuality})
	}
	if err != nil {
		file.Close()
		os.Remove(path)
		s.framesDropped.Add(1)
		return "", fmt.Errorf("snapshot: %s encode: %w", s.format, err)
	}

	if err := file.Close(); err != nil {
		os.Remove(path)
		s.framesDropped.Add(1)
		return "", fmt.Errorf("snapshot: close %s: %w", path, err)
	}

	s.framesSaved.Add(1)
	return path, nil
}

// Run saves every frame read until ctx is cancelled or read returns nil
// (mailbox stopped or consumer unsubscribed).
func (s *Saver) Run(ctx context.Context, read func() *present.Frame) error {
	slog.Info("snapshot: saver started",
		"output_dir", s.outputDir,
		"format", s.format,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("snapshot: saver stopping")
			return ctx.Err()
		default:
		}

		frame := read()
		if frame == nil {
			slog.Info("snapshot: saver released")
			return nil
		}

		path, err := s.SaveFrame(frame)
		if err != nil {
			slog.Warn("snapshot: save failed",
				"seq", frame.Seq,
				"error", err,
			)
			continue
		}

		slog.Debug("snapshot: frame saved",
			"seq", frame.Seq,
			"trace_id", frame.TraceID,
			"path", path,
		)
	}
}

// Stats returns current save statistics.
func (s *Saver) Stats() (saved, dropped uint64) {
	return s.framesSaved.Load(), s.framesDropped.Load()
}
