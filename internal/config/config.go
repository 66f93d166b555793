package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete camera-render configuration
type Config struct {
	InstanceID       string         `yaml:"instance_id"`
	ShutdownTimeoutS int            `yaml:"shutdown_timeout_s"` // graceful shutdown timeout in seconds (default: 5)
	Source           SourceConfig   `yaml:"source"`
	Render           RenderConfig   `yaml:"render"`
	Snapshot         SnapshotConfig `yaml:"snapshot"`
	MQTT             MQTTConfig     `yaml:"mqtt"`
}

// SourceConfig selects the camera driver input
type SourceConfig struct {
	Kind   string  `yaml:"kind"`   // test, v4l2, rtsp
	Device string  `yaml:"device"` // v4l2 device node
	URL    string  `yaml:"url"`    // rtsp url
	Width  int     `yaml:"width"`
	Height int     `yaml:"height"`
	FPS    float64 `yaml:"fps"`
	Layout string  `yaml:"layout"` // I420, NV12, NV21
}

// RenderConfig controls the visualizer
type RenderConfig struct {
	RawPreview          bool `yaml:"raw_preview"`          // luma-only preview instead of colour
	PosterizationLevels int  `yaml:"posterization_levels"` // raw preview only; 0 disables
	StatsIntervalS      int  `yaml:"stats_interval_s"`     // periodic stats log (default: 5)
	StatsWindow         int  `yaml:"stats_window"`         // frames covered by FPS stats (default: 120)
}

// SnapshotConfig controls saving presented frames; disabled when OutputDir is empty
type SnapshotConfig struct {
	OutputDir   string `yaml:"output_dir"`
	Format      string `yaml:"format"`       // png or jpeg
	JPEGQuality int    `yaml:"jpeg_quality"` // 1-100
	EveryN      int    `yaml:"every_n"`      // save one frame out of N (default: 30)
}

// MQTTConfig contains MQTT broker settings; the indicator only logs when Broker is empty
type MQTTConfig struct {
	Broker string     `yaml:"broker"`
	Topics MQTTTopics `yaml:"topics"`
	QoS    byte       `yaml:"qos"`
}

// MQTTTopics contains topic templates
type MQTTTopics struct {
	Indicator string `yaml:"indicator"`
	Events    string `yaml:"events"`
}

// ShutdownTimeout returns the graceful shutdown timeout
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// StatsInterval returns the periodic stats interval
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.Render.StatsIntervalS) * time.Second
}

// Load reads, parses and validates a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
