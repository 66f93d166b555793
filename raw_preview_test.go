package camerarender_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/softgpu"
)

func TestRawPreview_UploadsFullStride(t *testing.T) {
	b := newRecordingBackend()
	p, err := camerarender.NewRawPreview(b, 0)
	if err != nil {
		t.Fatalf("NewRawPreview() error = %v", err)
	}

	y := camerarender.Plane{Data: []byte("ABCDXXEFGHXX"), Width: 4, Height: 2, Stride: 6, ElementSize: 1}
	if err := p.OnFrame(y); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}

	id := b.bound[camerarender.SamplerLuma]
	spec := b.specs[id]
	if spec.Width != 6 || spec.Height != 2 || spec.Filter != camerarender.FilterPoint || spec.Format != camerarender.FormatSingleChannel {
		t.Errorf("preview image spec = %+v, want 6x2 single-channel point", spec)
	}
	if diff := cmp.Diff([]byte("ABCDXXEFGHXX"), b.uploads[id]); diff != "" {
		t.Errorf("upload mismatch (-want +got):\n%s", diff)
	}

	stats := p.Stats()
	want := camerarender.Vec2{X: 4.0 / 6.0, Y: -1}
	if diff := cmp.Diff(want, stats.TextureScale); diff != "" {
		t.Errorf("TextureScale mismatch (-want +got):\n%s", diff)
	}
	if stats.Output != (camerarender.Dimensions{Width: 4, Height: 2}) {
		t.Errorf("Output = %s, want 4x2", stats.Output)
	}
	if got := b.count("CreateProgram", camerarender.ShaderLumaPreview); got != 1 {
		t.Errorf("CreateProgram(luma preview) calls = %d, want 1", got)
	}
}

func TestRawPreview_PosterizesPrivateCopy(t *testing.T) {
	b := newRecordingBackend()
	p, _ := camerarender.NewRawPreview(b, 4)

	data := []byte{10, 70, 130, 250}
	y := camerarender.Plane{Data: data, Width: 4, Height: 1, Stride: 4, ElementSize: 1}
	if err := p.OnFrame(y); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}

	if diff := cmp.Diff([]byte{10, 70, 130, 250}, data); diff != "" {
		t.Errorf("producer buffer modified (-want +got):\n%s", diff)
	}
	id := b.bound[camerarender.SamplerLuma]
	if diff := cmp.Diff([]byte{0, 63, 126, 189}, b.uploads[id]); diff != "" {
		t.Errorf("posterized upload mismatch (-want +got):\n%s", diff)
	}
}

func TestRawPreview_ReusesImagesUntilResize(t *testing.T) {
	b := newRecordingBackend()
	p, _ := camerarender.NewRawPreview(b, 0)

	for i := 0; i < 3; i++ {
		if err := p.OnFrame(testPlane(4, 2, 8, 1, 0)); err != nil {
			t.Fatalf("OnFrame() error = %v", err)
		}
	}
	if err := p.OnFrame(testPlane(6, 3, 8, 1, 0)); err != nil {
		t.Fatalf("OnFrame(resized) error = %v", err)
	}

	stats := p.Stats()
	if stats.Draws != 4 {
		t.Errorf("Draws = %d, want 4", stats.Draws)
	}
	if stats.ImageAllocations != 2 || stats.OutputAllocations != 2 {
		t.Errorf("allocations image=%d output=%d, want 2 and 2", stats.ImageAllocations, stats.OutputAllocations)
	}
}

func TestRawPreview_SoftwareBackendCropsPadding(t *testing.T) {
	b := softgpu.New()
	p, _ := camerarender.NewRawPreview(b, 0)

	y := camerarender.Plane{
		Data:        []byte{10, 20, 30, 255, 40, 50, 60, 255},
		Width:       3,
		Height:      2,
		Stride:      4,
		ElementSize: 1,
	}
	if err := p.OnFrame(y); err != nil {
		t.Fatalf("OnFrame() error = %v", err)
	}

	out, _ := p.Output()
	img, err := b.Snapshot(out)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}

	var got []byte
	for py := 0; py < 2; py++ {
		for px := 0; px < 3; px++ {
			got = append(got, img.RGBAAt(px, py).R)
		}
	}
	if diff := cmp.Diff([]byte{10, 20, 30, 40, 50, 60}, got); diff != "" {
		t.Errorf("preview pixels mismatch (-want +got):\n%s", diff)
	}

	p.Close()
	if live := b.Stats().LiveImages; live != 0 {
		t.Errorf("LiveImages after Close = %d, want 0", live)
	}
}
