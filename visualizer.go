package camerarender

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/fpsstats"
)

// Surface is the externally owned display surface that shows output frames.
type Surface interface {
	// SetEnabled shows or hides the surface.
	SetEnabled(enabled bool)
	// Present hands over the frame just composited. It is called on the
	// frame-processing thread and must not block.
	Present(frame OutputFrame)
}

// Indicator is the externally owned recording indicator.
type Indicator interface {
	SetActive(active bool)
}

// SessionObserver is optionally implemented by a Surface or Indicator that
// wants the capture session id. SessionChanged is called before the
// collaborator is enabled (with the new id) and after it is disabled
// (with "").
type SessionObserver interface {
	SessionChanged(sessionID string)
}

// CaptureState is the capture lifecycle state
type CaptureState int

const (
	// StateIdle ignores frames
	StateIdle CaptureState = iota
	// StateCapturing composites and presents frames
	StateCapturing
)

// String returns a human-readable state name
func (s CaptureState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// RenderMode selects how frames are turned into output images
type RenderMode int

const (
	// ModeColour composites Y, U and V through the YUV conversion shader
	ModeColour RenderMode = iota
	// ModeRawLuma previews the luma plane only
	ModeRawLuma
)

// String returns a human-readable mode name
func (m RenderMode) String() string {
	switch m {
	case ModeColour:
		return "colour"
	case ModeRawLuma:
		return "raw-luma"
	default:
		return "unknown"
	}
}

// defaultStatsWindow is the number of presentation timestamps kept for FPS stats.
const defaultStatsWindow = 120

// VisualizerConfig configures a Visualizer
type VisualizerConfig struct {
	// Backend draws every image (required)
	Backend GraphicsBackend
	// Surface receives output frames (checked by Start)
	Surface Surface
	// Indicator shows capture activity (checked by Start)
	Indicator Indicator
	// Mode selects colour compositing or raw luma preview
	Mode RenderMode
	// PosterizationLevels applies to ModeRawLuma; 0 disables it
	PosterizationLevels uint8
	// StatsWindow is the number of recent frames FPS stats cover (default 120)
	StatsWindow int
}

// VisualizerStats is a snapshot of visualizer activity
type VisualizerStats struct {
	State     CaptureState
	Mode      RenderMode
	Enabled   bool
	SessionID string

	// Sessions counts CaptureStarted transitions
	Sessions uint64
	// FramesPresented counts frames composited and handed to the surface
	FramesPresented uint64
	// FramesIgnored counts frames delivered while idle or disabled
	FramesIgnored uint64
	// FramesRejected counts frames that failed validation or rendering
	FramesRejected uint64

	// Compositor is set in ModeColour
	Compositor CompositorStats
	// RawPreview is set in ModeRawLuma
	RawPreview RawPreviewStats

	// Presentation covers the most recent StatsWindow frames
	Presentation PresentationStats
}

// frameRenderer turns a FrameSource into an output render target.
type frameRenderer interface {
	Composite(src FrameSource) error
	Output() (ImageID, Dimensions)
	Close()
}

// Visualizer drives a renderer through the capture lifecycle.
//
// State machine:
//
//	Idle ──CaptureStarted──▶ Capturing ──CaptureEnded / RawCaptureEnded──▶ Idle
//
// Entering Capturing enables the surface and activates the indicator;
// leaving it does the reverse. Frames are only rendered while Capturing.
//
// Thread-safety: all methods are safe for concurrent use. Lifecycle
// notifications and frames are serialised; OnFrame holds the lock for the
// full repack → composite → present sequence.
type Visualizer struct {
	mu sync.Mutex

	mode      RenderMode
	renderer  frameRenderer
	surface   Surface
	indicator Indicator

	enabled   bool
	state     CaptureState
	sessionID string

	seq      uint64
	sessions uint64
	ignored  uint64
	rejected uint64
	window   *fpsstats.Window
}

// NewVisualizer creates a visualizer in the Idle state.
//
// Returns an error if the backend is missing or the renderer cannot be
// built. Missing surface or indicator are reported by Start.
func NewVisualizer(cfg VisualizerConfig) (*Visualizer, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("camera-render: graphics backend is required")
	}

	var renderer frameRenderer
	switch cfg.Mode {
	case ModeColour:
		c, err := NewFrameCompositor(cfg.Backend)
		if err != nil {
			return nil, err
		}
		renderer = c
	case ModeRawLuma:
		p, err := NewRawPreview(cfg.Backend, cfg.PosterizationLevels)
		if err != nil {
			return nil, err
		}
		renderer = p
	default:
		return nil, fmt.Errorf("camera-render: unknown render mode %d", cfg.Mode)
	}

	window := cfg.StatsWindow
	if window <= 0 {
		window = defaultStatsWindow
	}

	return &Visualizer{
		mode:      cfg.Mode,
		renderer:  renderer,
		surface:   cfg.Surface,
		indicator: cfg.Indicator,
		window:    fpsstats.NewWindow(window),
	}, nil
}

// Start checks the external collaborators and arms the visualizer.
//
// If the surface or the indicator is missing the visualizer stays disabled
// for its whole lifetime: every later frame is ignored. The returned error
// wraps ErrNotConfigured.
func (v *Visualizer) Start() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	var missing []error
	if v.surface == nil {
		missing = append(missing, fmt.Errorf("%w: surface", ErrNotConfigured))
	}
	if v.indicator == nil {
		missing = append(missing, fmt.Errorf("%w: indicator", ErrNotConfigured))
	}
	if len(missing) > 0 {
		err := errors.Join(missing...)
		v.enabled = false
		slog.Error("camera-render: visualizer disabled, missing collaborators",
			"error", err,
		)
		return err
	}

	v.enabled = true
	v.surface.SetEnabled(false)
	v.indicator.SetActive(false)

	slog.Info("camera-render: visualizer started",
		"mode", v.mode.String(),
	)
	return nil
}

// CaptureStarted enters Capturing with a new session id.
// Ignored while disabled or already capturing.
func (v *Visualizer) CaptureStarted() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.enabled {
		slog.Warn("camera-render: capture started on disabled visualizer, ignoring")
		return
	}
	if v.state == StateCapturing {
		slog.Debug("camera-render: capture already started", "session_id", v.sessionID)
		return
	}

	v.state = StateCapturing
	v.sessionID = uuid.New().String()
	v.sessions++
	v.window.Reset()

	v.notifySession(v.sessionID)
	v.surface.SetEnabled(true)
	v.indicator.SetActive(true)

	slog.Info("camera-render: capture started",
		"session_id", v.sessionID,
		"mode", v.mode.String(),
	)
}

// CaptureEnded returns to Idle. Does nothing when already Idle.
func (v *Visualizer) CaptureEnded() {
	v.end("capture")
}

// RawCaptureEnded returns to Idle after a raw capture.
func (v *Visualizer) RawCaptureEnded() {
	v.end("raw_capture")
}

func (v *Visualizer) end(kind string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.enabled || v.state == StateIdle {
		return
	}

	session := v.sessionID
	v.state = StateIdle
	v.sessionID = ""

	v.indicator.SetActive(false)
	v.surface.SetEnabled(false)
	v.notifySession("")

	slog.Info("camera-render: capture ended",
		"kind", kind,
		"session_id", session,
		"frames_presented", v.seq,
	)
}

func (v *Visualizer) notifySession(id string) {
	if o, ok := v.surface.(SessionObserver); ok {
		o.SessionChanged(id)
	}
	if o, ok := v.indicator.(SessionObserver); ok {
		o.SessionChanged(id)
	}
}

// OnFrame renders and presents one frame.
//
// Frames delivered while Idle or disabled are dropped and counted. A frame
// that fails validation or rendering is counted as rejected and its error
// returned; the visualizer stays in its current state.
func (v *Visualizer) OnFrame(src FrameSource) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.enabled || v.state != StateCapturing {
		v.ignored++
		slog.Debug("camera-render: frame ignored",
			"state", v.state.String(),
			"enabled", v.enabled,
		)
		return nil
	}

	if err := v.renderer.Composite(src); err != nil {
		v.rejected++
		slog.Warn("camera-render: frame rejected",
			"error", err,
			"session_id", v.sessionID,
		)
		return err
	}

	out, dims := v.renderer.Output()
	now := time.Now()
	v.seq++
	v.window.Record(now)

	frame := OutputFrame{
		Image:     out,
		Width:     dims.Width,
		Height:    dims.Height,
		Seq:       v.seq,
		Timestamp: now,
		TraceID:   uuid.New().String(),
		SessionID: v.sessionID,
	}
	v.surface.Present(frame)

	slog.Debug("camera-render: frame presented",
		"seq", frame.Seq,
		"trace_id", frame.TraceID,
		"size", dims.String(),
	)
	return nil
}

// State returns the current lifecycle state.
func (v *Visualizer) State() CaptureState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Stats returns a snapshot of visualizer counters.
func (v *Visualizer) Stats() VisualizerStats {
	v.mu.Lock()
	defer v.mu.Unlock()

	stats := VisualizerStats{
		State:           v.state,
		Mode:            v.mode,
		Enabled:         v.enabled,
		SessionID:       v.sessionID,
		Sessions:        v.sessions,
		FramesPresented: v.seq,
		FramesIgnored:   v.ignored,
		FramesRejected:  v.rejected,
		Presentation:    presentationStats(v.window.Stats()),
	}

	switch r := v.renderer.(type) {
	case *FrameCompositor:
		stats.Compositor = r.Stats()
	case *RawPreview:
		stats.RawPreview = r.Stats()
	}

	return stats
}

// Close releases every image the renderer owns.
func (v *Visualizer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.renderer.Close()
	slog.Info("camera-render: visualizer closed",
		"frames_presented", v.seq,
		"frames_ignored", v.ignored,
		"frames_rejected", v.rejected,
	)
}
