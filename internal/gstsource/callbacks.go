package gstsource

import (
	"log/slog"
	"sync/atomic"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

// Handler receives every captured frame on the GStreamer streaming
// thread. The frame aliases the mapped buffer and is only valid until the
// handler returns.
type Handler func(src camerarender.FrameSource) error

// Counters are the per-source frame counters, updated atomically
type Counters struct {
	Frames    atomic.Uint64
	Rejected  atomic.Uint64
	Short     atomic.Uint64
	BytesRead atomic.Uint64
}

// CallbackContext holds state needed by GStreamer callbacks
type CallbackContext struct {
	Handler  Handler
	Width    int
	Height   int
	Layout   camerarender.Layout
	Geometry FrameLayout
	Counters *Counters
}

// OnNewSample is called by GStreamer when a new frame is available.
//
// The buffer is mapped, wrapped as a CombinedFrame without copying, handed
// to the handler synchronously and unmapped afterwards. A frame rejected
// by the handler is counted and skipped; the stream continues.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstsource: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("gstsource: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	defer buffer.Unmap()

	data := mapInfo.Bytes()
	if len(data) == 0 {
		slog.Warn("gstsource: empty buffer received")
		return gst.FlowOK
	}

	deliver(ctx, data)
	return gst.FlowOK
}

// deliver hands one mapped buffer to the handler.
func deliver(ctx *CallbackContext, data []byte) {
	seq := ctx.Counters.Frames.Add(1)
	ctx.Counters.BytesRead.Add(uint64(len(data)))

	if len(data) < ctx.Geometry.Size {
		ctx.Counters.Short.Add(1)
		slog.Debug("gstsource: buffer shorter than default layout",
			"seq", seq,
			"size_bytes", len(data),
			"expected_bytes", ctx.Geometry.Size,
		)
	}

	frame := ctx.Geometry.CombinedFrame(data, ctx.Width, ctx.Height, ctx.Layout)
	if err := ctx.Handler(frame); err != nil {
		ctx.Counters.Rejected.Add(1)
		slog.Debug("gstsource: frame rejected by handler",
			"seq", seq,
			"error", err,
		)
	}
}

// OnPadAdded links a dynamic rtspsrc pad to the depayloader.
func OnPadAdded(srcPad *gst.Pad, sinkElement *gst.Element) {
	slog.Debug("gstsource: pad-added signal received", "pad", srcPad.GetName())

	sinkPad := sinkElement.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("gstsource: failed to get sink pad from rtph264depay")
		return
	}
	if sinkPad.IsLinked() {
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("gstsource: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("gstsource: pads linked",
		"src_pad", srcPad.GetName(),
		"sink_pad", sinkPad.GetName(),
	)
}
