package camerarender_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/colorconv"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/softgpu"
)

func newCompositor(t *testing.T, b camerarender.GraphicsBackend) *camerarender.FrameCompositor {
	t.Helper()
	c, err := camerarender.NewFrameCompositor(b)
	if err != nil {
		t.Fatalf("NewFrameCompositor() error = %v", err)
	}
	return c
}

func TestNewFrameCompositor_NilBackend(t *testing.T) {
	if _, err := camerarender.NewFrameCompositor(nil); err == nil {
		t.Error("NewFrameCompositor(nil) expected error, got nil")
	}
}

// TestOnFrame_VGAInterleavedChroma delivers one 640x480 frame with
// interleaved 320x240 chroma planes.
func TestOnFrame_VGAInterleavedChroma(t *testing.T) {
	b := newRecordingBackend()
	c := newCompositor(t, b)

	y := testPlane(640, 480, 640, 1, 0)
	u := testPlane(320, 240, 640, 2, 0)
	v := testPlane(320, 240, 640, 2, 1)

	if err := c.OnFrame(y, u, v); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}

	if got := b.count("SubmitDraw", ""); got != 1 {
		t.Errorf("SubmitDraw calls = %d, want 1", got)
	}
	if got := b.count("CreateRenderTarget", ""); got != 1 {
		t.Errorf("CreateRenderTarget calls = %d, want 1", got)
	}

	out, dims := c.Output()
	if out == 0 {
		t.Fatal("Output() image is zero after a frame")
	}
	if diff := cmp.Diff(camerarender.Dimensions{Width: 640, Height: 480}, dims); diff != "" {
		t.Errorf("Output() dims mismatch (-want +got):\n%s", diff)
	}

	for _, call := range b.calls {
		if call.Op == "SubmitDraw" && call.Image != out {
			t.Errorf("SubmitDraw target = %d, want output %d", call.Image, out)
		}
	}

	stats := c.Stats()
	if stats.Draws != 1 || stats.OutputAllocations != 1 {
		t.Errorf("Stats() draws=%d outputs=%d, want 1 and 1", stats.Draws, stats.OutputAllocations)
	}
}

func TestOnFrame_TextureScale(t *testing.T) {
	tests := []struct {
		name string
		elem int
		want camerarender.Vec2
	}{
		{"interleaved chroma", 2, camerarender.Vec2{X: 0.5, Y: -1}},
		{"planar chroma", 1, camerarender.Vec2{X: 1, Y: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newRecordingBackend()
			c := newCompositor(t, b)

			y := testPlane(8, 4, 8, 1, 0)
			u := testPlane(4, 2, 4*tt.elem, tt.elem, 0)
			v := testPlane(4, 2, 4*tt.elem, tt.elem, 0)
			if err := c.OnFrame(y, u, v); err != nil {
				t.Fatalf("OnFrame() error = %v", err)
			}

			if diff := cmp.Diff(tt.want, b.uniforms[camerarender.UniformTextureScale]); diff != "" {
				t.Errorf("texture scale mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, c.Stats().TextureScale); diff != "" {
				t.Errorf("Stats().TextureScale mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOnFrame_CallOrder(t *testing.T) {
	b := newRecordingBackend()
	c := newCompositor(t, b)

	y := testPlane(4, 2, 4, 1, 0)
	u := testPlane(2, 1, 4, 2, 0)
	v := testPlane(2, 1, 4, 2, 0)

	if err := c.OnFrame(y, u, v); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}
	first := []string{
		"CreateProgram", "CreateRenderTarget",
		"CreateImage", "BindSampler", "UploadPixels",
		"CreateImage", "BindSampler", "UploadPixels",
		"CreateImage", "BindSampler", "UploadPixels",
		"SetUniform", "SubmitDraw",
	}
	if diff := cmp.Diff(first, b.ops()); diff != "" {
		t.Errorf("first frame call order mismatch (-want +got):\n%s", diff)
	}

	b.reset()
	if err := c.OnFrame(y, u, v); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}
	steady := []string{"UploadPixels", "UploadPixels", "UploadPixels", "SetUniform", "SubmitDraw"}
	if diff := cmp.Diff(steady, b.ops()); diff != "" {
		t.Errorf("steady-state call order mismatch (-want +got):\n%s", diff)
	}

	var samplers []string
	for _, call := range b.calls {
		if call.Op == "BindSampler" {
			samplers = append(samplers, call.Name)
		}
	}
	if len(samplers) != 0 {
		t.Errorf("steady state rebound samplers %v", samplers)
	}
}

func TestOnFrame_ResizeReallocates(t *testing.T) {
	b := newRecordingBackend()
	c := newCompositor(t, b)

	small := [3]camerarender.Plane{
		testPlane(4, 4, 4, 1, 0),
		testPlane(2, 2, 2, 1, 0),
		testPlane(2, 2, 2, 1, 0),
	}
	large := [3]camerarender.Plane{
		testPlane(8, 8, 8, 1, 0),
		testPlane(4, 4, 4, 1, 0),
		testPlane(4, 4, 4, 1, 0),
	}

	for i := 0; i < 3; i++ {
		if err := c.OnFrame(small[0], small[1], small[2]); err != nil {
			t.Fatalf("OnFrame(small) error = %v", err)
		}
	}
	lumaBefore := b.bound[camerarender.SamplerLuma]

	if err := c.OnFrame(large[0], large[1], large[2]); err != nil {
		t.Fatalf("OnFrame(large) error = %v", err)
	}

	stats := c.Stats()
	if diff := cmp.Diff([3]uint64{2, 2, 2}, stats.ImageAllocations); diff != "" {
		t.Errorf("ImageAllocations mismatch (-want +got):\n%s", diff)
	}
	if stats.OutputAllocations != 2 {
		t.Errorf("OutputAllocations = %d, want 2", stats.OutputAllocations)
	}
	for _, name := range []string{camerarender.SamplerLuma, camerarender.SamplerChromaU, camerarender.SamplerChromaV} {
		if got := b.count("BindSampler", name); got != 2 {
			t.Errorf("BindSampler(%q) calls = %d, want 2", name, got)
		}
	}

	lumaAfter := b.bound[camerarender.SamplerLuma]
	if lumaAfter == lumaBefore {
		t.Error("luma sampler still bound to the released image")
	}
	if _, alive := b.specs[lumaBefore]; alive {
		t.Error("old luma image was not destroyed")
	}
	if got := b.count("DestroyImage", ""); got != 4 {
		t.Errorf("DestroyImage calls = %d, want 4 (three channels and the output)", got)
	}
}

func TestOnFrame_ChannelFormats(t *testing.T) {
	b := newRecordingBackend()
	c := newCompositor(t, b)

	if err := c.OnFrame(
		testPlane(4, 2, 4, 1, 0),
		testPlane(2, 1, 4, 2, 0),
		testPlane(2, 1, 2, 1, 0),
	); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}

	want := map[camerarender.Channel]camerarender.PixelFormat{
		camerarender.ChannelY: camerarender.FormatSingleChannel,
		camerarender.ChannelU: camerarender.FormatDualChannel,
		camerarender.ChannelV: camerarender.FormatSingleChannel,
	}
	for ch, format := range want {
		img, ok := c.Slot(ch).Image()
		if !ok {
			t.Fatalf("channel %s has no image", ch)
		}
		if img.Format != format {
			t.Errorf("channel %s format = %s, want %s", ch, img.Format, format)
		}
		if spec := b.specs[img.ID]; spec.Filter != camerarender.FilterBilinear {
			t.Errorf("channel %s filter = %v, want bilinear", ch, spec.Filter)
		}
	}
}

// A source switching from planar to semi-planar chroma keeps the chroma
// dimensions but changes element size; the channel images must follow.
func TestOnFrame_ElementSizeChangeReallocates(t *testing.T) {
	b := softgpu.New()
	c := newCompositor(t, b)
	y := testPlane(4, 4, 4, 1, 0)

	if err := c.OnFrame(y, testPlane(2, 2, 2, 1, 0), testPlane(2, 2, 2, 1, 0)); err != nil {
		t.Fatalf("OnFrame(I420) error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := c.OnFrame(y, testPlane(2, 2, 4, 2, 0), testPlane(2, 2, 4, 2, 1)); err != nil {
			t.Fatalf("OnFrame(NV12) #%d error = %v", i, err)
		}
	}

	for _, ch := range []camerarender.Channel{camerarender.ChannelU, camerarender.ChannelV} {
		img, ok := c.Slot(ch).Image()
		if !ok {
			t.Fatalf("channel %s has no image", ch)
		}
		if img.Format != camerarender.FormatDualChannel {
			t.Errorf("channel %s format = %s, want %s", ch, img.Format, camerarender.FormatDualChannel)
		}
	}

	stats := c.Stats()
	if diff := cmp.Diff([3]uint64{1, 2, 2}, stats.ImageAllocations); diff != "" {
		t.Errorf("ImageAllocations mismatch (-want +got):\n%s", diff)
	}
	if stats.Draws != 4 {
		t.Errorf("Draws = %d, want 4", stats.Draws)
	}
	if got := b.Stats().LiveImages; got != 4 {
		t.Errorf("LiveImages = %d, want 4 (3 channels + output)", got)
	}
}

func TestOnFrame_MalformedPlaneChangesNothing(t *testing.T) {
	b := newRecordingBackend()
	c := newCompositor(t, b)

	y := testPlane(4, 2, 4, 1, 0)
	u := testPlane(2, 1, 2, 1, 0)
	short := testPlane(2, 1, 2, 1, 0)
	short.Data = short.Data[:1]

	err := c.OnFrame(y, u, short)
	if !errors.Is(err, camerarender.ErrMalformedPlane) {
		t.Fatalf("OnFrame() error = %v, want ErrMalformedPlane", err)
	}
	if want := "channel V: camera-render: malformed plane: buffer holds 1 bytes, need 2"; err.Error() != want {
		t.Errorf("OnFrame() error = %q, want %q", err, want)
	}
	if len(b.calls) != 0 {
		t.Errorf("backend touched by a malformed frame: %v", b.ops())
	}
	if out, _ := c.Output(); out != 0 {
		t.Errorf("Output() = %d after malformed frame, want 0", out)
	}
}

func TestOnFrame_ProgramFailure(t *testing.T) {
	b := newRecordingBackend()
	b.failProgram = camerarender.ErrUnknownShader
	c := newCompositor(t, b)

	err := c.OnFrame(testPlane(2, 2, 2, 1, 0), testPlane(1, 1, 1, 1, 0), testPlane(1, 1, 1, 1, 0))
	if !errors.Is(err, camerarender.ErrUnknownShader) {
		t.Errorf("OnFrame() error = %v, want ErrUnknownShader", err)
	}
}

func TestEnsureInitialized_Idempotent(t *testing.T) {
	b := newRecordingBackend()
	c := newCompositor(t, b)
	dims := camerarender.Dimensions{Width: 16, Height: 8}

	for i := 0; i < 3; i++ {
		if err := c.EnsureInitialized(dims); err != nil {
			t.Fatalf("EnsureInitialized() error = %v", err)
		}
	}

	if got := b.count("CreateProgram", camerarender.ShaderYUVCamera); got != 1 {
		t.Errorf("CreateProgram calls = %d, want 1", got)
	}
	if got := b.count("CreateRenderTarget", ""); got != 1 {
		t.Errorf("CreateRenderTarget calls = %d, want 1", got)
	}
}

func TestClose_ReleasesEverything(t *testing.T) {
	b := softgpu.New()
	c := newCompositor(t, b)

	frame := camerarender.ThreePlaneFrame{
		Y: testPlane(4, 2, 8, 1, 0),
		U: testPlane(2, 1, 4, 1, 0),
		V: testPlane(2, 1, 4, 1, 0),
	}
	if err := c.Composite(frame); err != nil {
		t.Fatalf("Composite() error = %v", err)
	}
	if got := b.Stats().LiveImages; got != 4 {
		t.Fatalf("LiveImages = %d, want 4", got)
	}

	c.Close()
	c.Close()
	if got := b.Stats().LiveImages; got != 0 {
		t.Errorf("LiveImages after Close = %d, want 0", got)
	}

	// reusable after Close
	if err := c.Composite(frame); err != nil {
		t.Fatalf("Composite() after Close error = %v", err)
	}
	if got := b.Stats().LiveImages; got != 4 {
		t.Errorf("LiveImages after reuse = %d, want 4", got)
	}
}

// TestComposite_SoftwareBackendColour renders a solid-colour NV12 frame
// with padded rows and checks every output pixel.
func TestComposite_SoftwareBackendColour(t *testing.T) {
	const w, h, stride = 8, 4, 12

	yv, uv, vv := colorconv.RGBToYUV(200, 40, 90)
	data := make([]byte, stride*h+stride*h/2)
	for i := 0; i < stride*h; i++ {
		data[i] = yv
	}
	for i := stride * h; i < len(data); i += 2 {
		data[i] = uv
		data[i+1] = vv
	}

	b := softgpu.New()
	c := newCompositor(t, b)
	frame := camerarender.CombinedFrame{Data: data, Width: w, Height: h, Stride: stride, Layout: camerarender.LayoutNV12}
	if err := c.Composite(frame); err != nil {
		t.Fatalf("Composite() error = %v", err)
	}

	out, _ := c.Output()
	img, err := b.Snapshot(out)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	wr, wg, wb := colorconv.YUVToRGB(yv, uv, vv)
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			got := img.RGBAAt(px, py)
			if got.R != wr || got.G != wg || got.B != wb || got.A != 0xff {
				t.Fatalf("pixel (%d,%d) = %v, want (%d,%d,%d,255)", px, py, got, wr, wg, wb)
			}
		}
	}
}

// TestComposite_SoftwareBackendOrientation checks the top camera row lands
// at the top of the snapshot and chroma columns map onto luma pairs.
func TestComposite_SoftwareBackendOrientation(t *testing.T) {
	const w, h = 4, 2

	// luma: top row white, bottom row black
	y := camerarender.Plane{Data: []byte{235, 235, 235, 235, 16, 16, 16, 16}, Width: w, Height: h, Stride: w, ElementSize: 1}
	// chroma: left half blue-ish, right half red-ish
	u := camerarender.Plane{Data: []byte{240, 128, 16, 128}, Width: 2, Height: 1, Stride: 4, ElementSize: 2}
	v := camerarender.Plane{Data: []byte{128, 0, 128, 0}, Width: 2, Height: 1, Stride: 4, ElementSize: 2}

	b := softgpu.New()
	c := newCompositor(t, b)
	if err := c.OnFrame(y, u, v); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}

	out, _ := c.Output()
	img, err := b.Snapshot(out)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	if top, bottom := img.RGBAAt(0, 0), img.RGBAAt(0, 1); int(top.G) <= int(bottom.G) {
		t.Errorf("top row (%v) not brighter than bottom row (%v)", top, bottom)
	}

	left, right := img.RGBAAt(1, 0), img.RGBAAt(2, 0)
	if left.B <= right.B {
		t.Errorf("left pixel %v should carry more blue than right %v", left, right)
	}
	if img.RGBAAt(0, 0) != left || img.RGBAAt(3, 0) != right {
		t.Error("chroma element not shared by its luma pair")
	}
}
