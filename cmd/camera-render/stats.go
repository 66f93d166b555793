package main

import (
	"context"
	"log/slog"
	"time"
)

// reportStats logs statistics from every component once per stats interval.
func (a *app) reportStats(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.StatsInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.logStats()
		}
	}
}

func (a *app) logStats() {
	vs := a.visualizer.Stats()
	p := vs.Presentation
	slog.Info("visualizer stats",
		"state", vs.State.String(),
		"mode", vs.Mode.String(),
		"session_id", vs.SessionID,
		"sessions", vs.Sessions,
		"frames_presented", vs.FramesPresented,
		"frames_ignored", vs.FramesIgnored,
		"frames_rejected", vs.FramesRejected,
		"fps_mean", p.FPSMean,
		"fps_stddev", p.FPSStdDev,
		"jitter_mean_ms", p.JitterMean*1000,
		"stable", p.IsStable,
	)

	switch {
	case vs.Compositor.Draws > 0:
		slog.Info("compositor stats",
			"draws", vs.Compositor.Draws,
			"output", vs.Compositor.Output.String(),
			"output_allocations", vs.Compositor.OutputAllocations,
		)
	case vs.RawPreview.Draws > 0:
		slog.Info("raw preview stats",
			"draws", vs.RawPreview.Draws,
			"output", vs.RawPreview.Output.String(),
			"image_allocations", vs.RawPreview.ImageAllocations,
		)
	}

	ss := a.source.Stats()
	slog.Info("source stats",
		"frames", ss.Frames,
		"rejected", ss.Rejected,
		"short_buffers", ss.Short,
		"bytes_read", ss.BytesRead,
		"reconnects", ss.Reconnects,
		"playing", ss.Playing,
		"errors_resource", ss.ErrorsResource,
		"errors_codec", ss.ErrorsCodec,
		"errors_negotiation", ss.ErrorsNegotiation,
		"errors_unknown", ss.ErrorsUnknown,
	)

	bs := a.backend.Stats()
	slog.Debug("backend stats",
		"live_images", bs.LiveImages,
		"programs", bs.Programs,
		"uploads", bs.Uploads,
		"draws", bs.Draws,
	)

	if a.snapshots != nil {
		sf := a.snapshots.Stats()
		saved, dropped := a.saver.Stats()
		ms := a.mailbox.Stats()
		slog.Info("snapshot stats",
			"published", sf.Published,
			"read_back_failures", sf.Failed,
			"saved", saved,
			"save_failures", dropped,
			"inbox_drops", ms.InboxDrops,
			"consumer_drops", ms.Consumers[snapshotConsumerID].TotalDrops,
		)
	}
	if a.frames != nil {
		slog.Debug("surface stats", "presented", a.frames.presented.Load())
	}

	if a.mqtt != nil {
		is := a.mqtt.Stats()
		slog.Info("indicator stats",
			"connected", is.Connected,
			"errors", is.Errors,
			"dropped", is.Dropped,
		)
	}
}
