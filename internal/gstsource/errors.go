package gstsource

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory represents the classification of GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryResource indicates an unavailable device, host or stream
	ErrCategoryResource ErrorCategory = iota
	// ErrCategoryCodec indicates decode failures or missing decoders
	ErrCategoryCodec
	// ErrCategoryNegotiation indicates caps that cannot be satisfied
	ErrCategoryNegotiation
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryResource:
		return "resource"
	case ErrCategoryCodec:
		return "codec"
	case ErrCategoryNegotiation:
		return "negotiation"
	default:
		return "unknown"
	}
}

var (
	negotiationKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"no common format",
	}
	codecKeywords = []string{
		"codec",
		"decode",
		"h264",
		"h265",
		"no decoder",
		"missing plugin",
		"stream format",
	}
	resourceKeywords = []string{
		"device",
		"/dev/video",
		"busy",
		"permission",
		"connection",
		"timeout",
		"unreachable",
		"resolve",
		"socket",
		"rtsp",
		"not found",
		"could not open",
		"could not connect",
		"failed to connect",
		"unauthorized",
		"401",
		"403",
	}
)

// ClassifyGStreamerError categorizes a bus error for telemetry.
//
// go-gst's GError does not expose the error domain, so classification
// relies on the message and debug strings.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return classify(gerr.Error(), gerr.DebugString())
}

// classify checks negotiation first: a caps failure often mentions the
// decoder or device too.
func classify(errMsg, debugStr string) ErrorCategory {
	combined := strings.ToLower(errMsg + " " + debugStr)

	switch {
	case containsAny(combined, negotiationKeywords):
		return ErrCategoryNegotiation
	case containsAny(combined, codecKeywords):
		return ErrCategoryCodec
	case containsAny(combined, resourceKeywords):
		return ErrCategoryResource
	default:
		return ErrCategoryUnknown
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
