// Package gstsource drives a GStreamer capture pipeline and delivers raw
// 4:2:0 frames to a handler as camerarender.CombinedFrame values.
//
// Every pipeline session (start, PLAYING, error or shutdown) is reported
// through Hooks so the caller can map sessions onto capture lifecycle
// notifications. Failed sessions are rebuilt with exponential backoff.
package gstsource

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

// Config configures a Source
type Config struct {
	Kind   string // test, v4l2, rtsp
	Device string
	URL    string
	Width  int
	Height int
	FPS    float64
	Layout camerarender.Layout

	Reconnect ReconnectConfig
}

// Hooks are called from the bus-monitoring goroutine
type Hooks struct {
	// Playing is called when a pipeline session reaches PLAYING
	Playing func()
	// Stopped is called when a session that reached PLAYING ends
	Stopped func(err error)
}

// Stats contains current source statistics
type Stats struct {
	Frames     uint64
	Rejected   uint64
	Short      uint64
	BytesRead  uint64
	Reconnects uint32
	Playing    bool

	ErrorsResource    uint64
	ErrorsCodec       uint64
	ErrorsNegotiation uint64
	ErrorsUnknown     uint64
}

// Source is a reconnecting GStreamer capture pipeline.
type Source struct {
	cfg      Config
	handler  Handler
	hooks    Hooks
	geometry FrameLayout

	mu       sync.Mutex
	elements *PipelineElements
	running  bool

	counters       Counters
	reconnectState ReconnectState
	playing        atomic.Bool

	errorsResource    atomic.Uint64
	errorsCodec       atomic.Uint64
	errorsNegotiation atomic.Uint64
	errorsUnknown     atomic.Uint64
}

func (c *Config) validate() error {
	switch c.Kind {
	case KindTest:
	case KindV4L2:
		if c.Device == "" {
			return fmt.Errorf("gstsource: v4l2 device is required")
		}
	case KindRTSP:
		if c.URL == "" {
			return fmt.Errorf("gstsource: RTSP URL is required")
		}
	default:
		return fmt.Errorf("gstsource: unknown source kind %q", c.Kind)
	}
	if c.FPS < 0.1 || c.FPS > 120 {
		return fmt.Errorf("gstsource: invalid FPS %.2f (must be 0.1-120)", c.FPS)
	}
	if c.Reconnect == (ReconnectConfig{}) {
		c.Reconnect = DefaultReconnectConfig()
	}
	return nil
}

// NewSource creates a source with fail-fast validation, including a check
// that GStreamer is installed.
func NewSource(cfg Config, handler Handler, hooks Hooks) (*Source, error) {
	if handler == nil {
		return nil, fmt.Errorf("gstsource: frame handler is required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	geometry, err := DefaultLayout(cfg.Width, cfg.Height, cfg.Layout)
	if err != nil {
		return nil, err
	}
	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("gstsource: %w", err)
	}

	slog.Info("gstsource: source created",
		"kind", cfg.Kind,
		"resolution", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"layout", cfg.Layout.String(),
		"target_fps", cfg.FPS,
	)

	return &Source{
		cfg:      cfg,
		handler:  handler,
		hooks:    hooks,
		geometry: geometry,
	}, nil
}

// Run captures until ctx is cancelled or reconnection gives up. It
// blocks; frames are delivered on GStreamer's streaming thread.
func (s *Source) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("gstsource: source already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	err := RunWithReconnect(ctx, s.session, s.cfg.Reconnect, &s.reconnectState)
	if err != nil && ctx.Err() == nil {
		slog.Error("gstsource: capture stopped after reconnection failure",
			"error", err,
			"frames_processed", s.counters.Frames.Load(),
			"reconnects", s.reconnectState.Reconnects.Load(),
		)
		return err
	}
	return nil
}

// session builds a pipeline, plays it and monitors its bus until an error
// (returned) or ctx cancellation (nil).
func (s *Source) session(ctx context.Context) (err error) {
	elements, err := CreatePipeline(PipelineConfig{
		Kind:   s.cfg.Kind,
		Device: s.cfg.Device,
		URL:    s.cfg.URL,
		Width:  s.cfg.Width,
		Height: s.cfg.Height,
		FPS:    s.cfg.FPS,
		Layout: s.cfg.Layout,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.elements = elements
	s.mu.Unlock()

	defer func() {
		if s.playing.Swap(false) && s.hooks.Stopped != nil {
			s.hooks.Stopped(err)
		}
		if derr := DestroyPipeline(elements); derr != nil {
			slog.Error("gstsource: failed to destroy pipeline", "error", derr)
		}
		s.mu.Lock()
		s.elements = nil
		s.mu.Unlock()
	}()

	callbackCtx := &CallbackContext{
		Handler:  s.handler,
		Width:    s.cfg.Width,
		Height:   s.cfg.Height,
		Layout:   s.cfg.Layout,
		Geometry: s.geometry,
		Counters: &s.counters,
	}
	elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return OnNewSample(sink, callbackCtx)
		},
	})

	if elements.Depay != nil {
		depay := elements.Depay
		elements.Source.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
			OnPadAdded(srcPad, depay)
		})
	}

	if err := elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	return s.monitor(ctx, elements.Pipeline)
}

// monitor polls the pipeline bus. Returns an error on EOS or a pipeline
// error, nil when ctx is cancelled.
func (s *Source) monitor(ctx context.Context, pipeline *gst.Pipeline) error {
	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("gstsource: context cancelled, stopping pipeline monitor")
			return nil
		default:
		}

		// short timeout for responsive shutdown
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gstsource: end of stream received",
				"frames_processed", s.counters.Frames.Load(),
			)
			return fmt.Errorf("end of stream")

		case gst.MessageError:
			gerr := msg.ParseError()
			category := ClassifyGStreamerError(gerr)
			s.countError(category)

			slog.Error("gstsource: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", category.String(),
				"frames_processed", s.counters.Frames.Load(),
				"reconnects", s.reconnectState.Reconnects.Load(),
			)
			return fmt.Errorf("pipeline error [%s]: %s", category, gerr.Error())

		case gst.MessageStateChanged:
			if msg.Source() != pipeline.GetName() {
				continue
			}
			old, state := msg.ParseStateChanged()
			slog.Debug("gstsource: pipeline state changed",
				"from", old,
				"to", state,
			)
			if state == gst.StatePlaying && !s.playing.Swap(true) {
				s.reconnectState.Reset()
				slog.Info("gstsource: pipeline playing, reconnect state reset")
				if s.hooks.Playing != nil {
					s.hooks.Playing()
				}
			}
		}
	}
}

func (s *Source) countError(category ErrorCategory) {
	switch category {
	case ErrCategoryResource:
		s.errorsResource.Add(1)
	case ErrCategoryCodec:
		s.errorsCodec.Add(1)
	case ErrCategoryNegotiation:
		s.errorsNegotiation.Add(1)
	default:
		s.errorsUnknown.Add(1)
	}
}

// Stats returns current source statistics.
func (s *Source) Stats() Stats {
	return Stats{
		Frames:            s.counters.Frames.Load(),
		Rejected:          s.counters.Rejected.Load(),
		Short:             s.counters.Short.Load(),
		BytesRead:         s.counters.BytesRead.Load(),
		Reconnects:        s.reconnectState.Reconnects.Load(),
		Playing:           s.playing.Load(),
		ErrorsResource:    s.errorsResource.Load(),
		ErrorsCodec:       s.errorsCodec.Load(),
		ErrorsNegotiation: s.errorsNegotiation.Load(),
		ErrorsUnknown:     s.errorsUnknown.Load(),
	}
}
