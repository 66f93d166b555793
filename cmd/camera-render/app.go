package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/gstsource"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/present"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/snapshot"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/softgpu"
)

const snapshotConsumerID = "snapshot-saver"

// app wires the capture source, the visualizer and its collaborators.
type app struct {
	cfg *config.Config

	backend    *softgpu.Backend
	visualizer *camerarender.Visualizer
	source     *gstsource.Source

	// snapshot pipeline, nil when snapshot.output_dir is empty
	mailbox   *present.Mailbox
	saver     *snapshot.Saver
	snapshots *snapshot.Surface
	frames    *countingSurface

	mqtt *emitter.MQTTIndicator // nil when mqtt.broker is empty

	wg sync.WaitGroup
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{
		cfg:     cfg,
		backend: softgpu.New(),
	}

	var surface camerarender.Surface
	if cfg.Snapshot.OutputDir != "" {
		saver, err := snapshot.NewSaver(cfg.Snapshot.OutputDir, cfg.Snapshot.Format, cfg.Snapshot.JPEGQuality)
		if err != nil {
			return nil, err
		}
		a.saver = saver
		a.mailbox = present.New()
		a.snapshots, err = snapshot.NewSurface(a.backend, a.mailbox, cfg.Snapshot.EveryN)
		if err != nil {
			return nil, err
		}
		surface = a.snapshots
	} else {
		a.frames = &countingSurface{}
		surface = a.frames
	}

	var indicator camerarender.Indicator
	if cfg.MQTT.Broker != "" {
		m, err := emitter.NewMQTTIndicator(emitter.Config{
			Broker:         cfg.MQTT.Broker,
			ClientID:       cfg.InstanceID,
			IndicatorTopic: cfg.MQTT.Topics.Indicator,
			EventsTopic:    cfg.MQTT.Topics.Events,
			QoS:            cfg.MQTT.QoS,
		})
		if err != nil {
			return nil, err
		}
		a.mqtt = m
		indicator = m
	} else {
		indicator = &emitter.LogIndicator{}
	}

	mode := camerarender.ModeColour
	if cfg.Render.RawPreview {
		mode = camerarender.ModeRawLuma
	}
	v, err := camerarender.NewVisualizer(camerarender.VisualizerConfig{
		Backend:             a.backend,
		Surface:             surface,
		Indicator:           indicator,
		Mode:                mode,
		PosterizationLevels: uint8(cfg.Render.PosterizationLevels),
		StatsWindow:         cfg.Render.StatsWindow,
	})
	if err != nil {
		return nil, err
	}
	a.visualizer = v

	layout, err := camerarender.ParseLayout(cfg.Source.Layout)
	if err != nil {
		return nil, err
	}

	end := v.CaptureEnded
	if mode == camerarender.ModeRawLuma {
		end = v.RawCaptureEnded
	}
	a.source, err = gstsource.NewSource(gstsource.Config{
		Kind:   cfg.Source.Kind,
		Device: cfg.Source.Device,
		URL:    cfg.Source.URL,
		Width:  cfg.Source.Width,
		Height: cfg.Source.Height,
		FPS:    cfg.Source.FPS,
		Layout: layout,
	}, v.OnFrame, gstsource.Hooks{
		Playing: v.CaptureStarted,
		Stopped: func(err error) {
			if err != nil {
				slog.Warn("capture session interrupted", "error", err)
			}
			end()
		},
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Run starts every collaborator and blocks in the capture loop until ctx
// is cancelled or the source gives up reconnecting.
func (a *app) Run(ctx context.Context) error {
	if a.mqtt != nil {
		if err := a.mqtt.Connect(ctx); err != nil {
			return err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.mqtt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("indicator stopped", "error", err)
			}
		}()
	}

	if err := a.visualizer.Start(); err != nil {
		return err
	}

	if a.mailbox != nil {
		if err := a.mailbox.Start(ctx); err != nil {
			return err
		}
		read := a.mailbox.Subscribe(snapshotConsumerID)
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.saver.Run(ctx, read); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("snapshot saver stopped", "error", err)
			}
		}()
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.reportStats(ctx)
	}()

	return a.source.Run(ctx)
}

// Shutdown ends the capture session and releases every resource.
func (a *app) Shutdown(ctx context.Context) error {
	a.visualizer.CaptureEnded()

	if a.mailbox != nil {
		_ = a.mailbox.Stop()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}

	a.logStats()
	a.visualizer.Close()
	if a.mqtt != nil {
		a.mqtt.Disconnect()
	}
	return err
}

// countingSurface stands in for a display when no snapshot directory is
// configured: frames are counted and dropped.
type countingSurface struct {
	enabled   atomic.Bool
	presented atomic.Uint64
}

func (s *countingSurface) SetEnabled(enabled bool) {
	s.enabled.Store(enabled)
	slog.Info("surface toggled", "enabled", enabled)
}

func (s *countingSurface) Present(frame camerarender.OutputFrame) {
	if s.enabled.Load() {
		s.presented.Add(1)
	}
}
