package config

import (
	"fmt"
	"regexp"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Source kinds
const (
	SourceTest = "test"
	SourceV4L2 = "v4l2"
	SourceRTSP = "rtsp"
)

// Validate checks the configuration and fills defaults
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}
	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	if err := validateSource(&cfg.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := validateRender(&cfg.Render); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	if err := validateSnapshot(&cfg.Snapshot); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if cfg.MQTT.Topics.Indicator == "" {
		cfg.MQTT.Topics.Indicator = fmt.Sprintf("care/camera/%s/indicator", cfg.InstanceID)
	}
	if cfg.MQTT.Topics.Events == "" {
		cfg.MQTT.Topics.Events = fmt.Sprintf("care/camera/%s/events", cfg.InstanceID)
	}
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}

	return nil
}

func validateSource(s *SourceConfig) error {
	if s.Kind == "" {
		s.Kind = SourceTest
	}
	switch s.Kind {
	case SourceTest:
	case SourceV4L2:
		if s.Device == "" {
			s.Device = "/dev/video0"
		}
	case SourceRTSP:
		if s.URL == "" {
			return fmt.Errorf("url is required for rtsp")
		}
	default:
		return fmt.Errorf("unknown kind %q (must be test, v4l2 or rtsp)", s.Kind)
	}

	if s.Width == 0 && s.Height == 0 {
		s.Width, s.Height = 640, 480
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", s.Width, s.Height)
	}
	if s.FPS == 0 {
		s.FPS = 30
	}
	if s.FPS < 0.1 || s.FPS > 120 {
		return fmt.Errorf("fps %.2f out of range 0.1-120", s.FPS)
	}

	if s.Layout == "" {
		s.Layout = camerarender.LayoutI420.String()
	}
	layout, err := camerarender.ParseLayout(s.Layout)
	if err != nil {
		return err
	}
	s.Layout = layout.String()
	return nil
}

func validateRender(r *RenderConfig) error {
	if r.PosterizationLevels < 0 || r.PosterizationLevels > 255 {
		return fmt.Errorf("posterization_levels must be 0-255, got %d", r.PosterizationLevels)
	}
	if r.StatsIntervalS <= 0 {
		r.StatsIntervalS = 5
	}
	if r.StatsWindow <= 0 {
		r.StatsWindow = 120
	}
	return nil
}

func validateSnapshot(s *SnapshotConfig) error {
	if s.OutputDir == "" {
		return nil
	}
	if s.Format == "" {
		s.Format = "png"
	}
	if s.Format != "png" && s.Format != "jpeg" {
		return fmt.Errorf("invalid format %s (must be png or jpeg)", s.Format)
	}
	if s.JPEGQuality == 0 {
		s.JPEGQuality = 90
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg_quality %d (must be 1-100)", s.JPEGQuality)
	}
	if s.EveryN <= 0 {
		s.EveryN = 30
	}
	return nil
}
