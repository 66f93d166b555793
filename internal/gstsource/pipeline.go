package gstsource

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

// Source kinds
const (
	KindTest = "test"
	KindV4L2 = "v4l2"
	KindRTSP = "rtsp"
)

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	Kind   string
	Device string
	URL    string
	Width  int
	Height int
	FPS    float64
	Layout camerarender.Layout
}

// PipelineElements holds references to GStreamer pipeline elements
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	Source     *gst.Element
	CapsFilter *gst.Element
	// Depay receives rtspsrc's dynamic pads; nil for other kinds
	Depay *gst.Element
}

// CreatePipeline creates a raw 4:2:0 capture pipeline:
//
//	src → videoconvert → videoscale → videorate → capsfilter → appsink
//
// with src one of
//
//	videotestsrc
//	v4l2src device=<device>
//	rtspsrc → rtph264depay → avdec_h264
//
// The pipeline is configured but NOT started (state remains NULL).
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	head, err := sourceElements(cfg)
	if err != nil {
		return nil, err
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0)

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)
	videorate.SetProperty("skip-to-first", true)

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsStr := buildCaps(cfg.Width, cfg.Height, cfg.FPS, cfg.Layout)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames
	appsink.SetProperty("qos", true)

	elements := append(head, converter, scaler, videorate, capsfilter, appsink.Element)
	if err := pipeline.AddMany(elements...); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}

	// rtspsrc has dynamic pads, linked in the pad-added callback
	linked := elements
	var depay *gst.Element
	if cfg.Kind == KindRTSP {
		linked = elements[1:]
		depay = elements[1]
	}
	if err := gst.ElementLinkMany(linked...); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Info("gstsource: pipeline created",
		"kind", cfg.Kind,
		"caps", capsStr,
	)

	return &PipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		Source:     head[0],
		CapsFilter: capsfilter,
		Depay:      depay,
	}, nil
}

func sourceElements(cfg PipelineConfig) ([]*gst.Element, error) {
	switch cfg.Kind {
	case KindTest:
		src, err := gst.NewElement("videotestsrc")
		if err != nil {
			return nil, fmt.Errorf("failed to create videotestsrc: %w", err)
		}
		src.SetProperty("is-live", true)
		return []*gst.Element{src}, nil

	case KindV4L2:
		src, err := gst.NewElement("v4l2src")
		if err != nil {
			return nil, fmt.Errorf("failed to create v4l2src: %w", err)
		}
		src.SetProperty("device", cfg.Device)
		return []*gst.Element{src}, nil

	case KindRTSP:
		src, err := gst.NewElement("rtspsrc")
		if err != nil {
			return nil, fmt.Errorf("failed to create rtspsrc: %w", err)
		}
		src.SetProperty("location", cfg.URL)
		src.SetProperty("protocols", 4) // TCP only
		src.SetProperty("latency", 200)

		depay, err := gst.NewElement("rtph264depay")
		if err != nil {
			return nil, fmt.Errorf("failed to create rtph264depay: %w", err)
		}
		depay.SetProperty("request-keyframe", true)

		decoder, err := gst.NewElement("avdec_h264")
		if err != nil {
			return nil, fmt.Errorf("failed to create avdec_h264: %w", err)
		}
		decoder.SetProperty("max-threads", 0)
		decoder.SetProperty("output-corrupt", false)

		return []*gst.Element{src, depay, decoder}, nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// DestroyPipeline sets the pipeline to NULL and releases its resources.
// Safe to call with nil.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}

func checkGStreamerAvailable() error {
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
