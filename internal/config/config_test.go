package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camera-render.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "instance_id: cam-01\n"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := &Config{
		InstanceID:       "cam-01",
		ShutdownTimeoutS: 5,
		Source: SourceConfig{
			Kind:   SourceTest,
			Width:  640,
			Height: 480,
			FPS:    30,
			Layout: "I420",
		},
		Render: RenderConfig{StatsIntervalS: 5, StatsWindow: 120},
		MQTT: MQTTConfig{
			Topics: MQTTTopics{
				Indicator: "care/camera/cam-01/indicator",
				Events:    "care/camera/cam-01/events",
			},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if cfg.ShutdownTimeout() != 5*time.Second || cfg.StatsInterval() != 5*time.Second {
		t.Errorf("durations = %v, %v", cfg.ShutdownTimeout(), cfg.StatsInterval())
	}
}

func TestLoad_FullFile(t *testing.T) {
	body := `
instance_id: bedroom-2
source:
  kind: v4l2
  width: 1280
  height: 720
  fps: 15
  layout: nv12
render:
  raw_preview: true
  posterization_levels: 8
snapshot:
  output_dir: /tmp/frames
  format: jpeg
  every_n: 10
mqtt:
  broker: localhost:1883
  qos: 1
`
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Device != "/dev/video0" {
		t.Errorf("Source.Device = %q, want default /dev/video0", cfg.Source.Device)
	}
	if cfg.Source.Layout != "NV12" {
		t.Errorf("Source.Layout = %q, want normalised NV12", cfg.Source.Layout)
	}
	if !cfg.Render.RawPreview || cfg.Render.PosterizationLevels != 8 {
		t.Errorf("Render = %+v", cfg.Render)
	}
	want := SnapshotConfig{OutputDir: "/tmp/frames", Format: "jpeg", JPEGQuality: 90, EveryN: 10}
	if diff := cmp.Diff(want, cfg.Snapshot); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
	if cfg.MQTT.Broker != "localhost:1883" || cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"missing instance", Config{}, "instance_id is required"},
		{"bad instance", Config{InstanceID: "Cam_01"}, "instance_id must match"},
		{"unknown kind", Config{InstanceID: "c", Source: SourceConfig{Kind: "usb"}}, "unknown kind"},
		{"rtsp without url", Config{InstanceID: "c", Source: SourceConfig{Kind: SourceRTSP}}, "url is required"},
		{"negative size", Config{InstanceID: "c", Source: SourceConfig{Width: -1, Height: 480}}, "invalid size"},
		{"fps too high", Config{InstanceID: "c", Source: SourceConfig{FPS: 500}}, "out of range"},
		{"bad layout", Config{InstanceID: "c", Source: SourceConfig{Layout: "YUY2"}}, "invalid frame layout"},
		{"posterization", Config{InstanceID: "c", Render: RenderConfig{PosterizationLevels: 300}}, "posterization_levels"},
		{"snapshot format", Config{InstanceID: "c", Snapshot: SnapshotConfig{OutputDir: "x", Format: "gif"}}, "invalid format"},
		{"jpeg quality", Config{InstanceID: "c", Snapshot: SnapshotConfig{OutputDir: "x", JPEGQuality: 101}}, "jpeg_quality"},
		{"qos", Config{InstanceID: "c", MQTT: MQTTConfig{QoS: 3}}, "mqtt.qos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) expected error, got nil")
	}
	if _, err := Load(writeConfig(t, "instance_id: [unterminated\n")); err == nil {
		t.Error("Load(bad yaml) expected error, got nil")
	}
}
