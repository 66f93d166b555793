package camerarender_test

import (
	"fmt"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

// backendCall is one recorded GraphicsBackend invocation.
type backendCall struct {
	Op    string
	Image camerarender.ImageID
	Name  string
	Spec  camerarender.ImageSpec
	Value camerarender.Vec2
}

// recordingBackend is a GraphicsBackend that only records what it is asked
// to do.
type recordingBackend struct {
	next     uint32
	calls    []backendCall
	specs    map[camerarender.ImageID]camerarender.ImageSpec
	uploads  map[camerarender.ImageID][]byte
	bound    map[string]camerarender.ImageID
	uniforms map[string]camerarender.Vec2

	failProgram error
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{
		specs:    make(map[camerarender.ImageID]camerarender.ImageSpec),
		uploads:  make(map[camerarender.ImageID][]byte),
		bound:    make(map[string]camerarender.ImageID),
		uniforms: make(map[string]camerarender.Vec2),
	}
}

func (r *recordingBackend) CreateImage(spec camerarender.ImageSpec) (camerarender.ImageID, error) {
	r.next++
	id := camerarender.ImageID(r.next)
	r.specs[id] = spec
	r.calls = append(r.calls, backendCall{Op: "CreateImage", Image: id, Spec: spec})
	return id, nil
}

func (r *recordingBackend) DestroyImage(id camerarender.ImageID) {
	delete(r.specs, id)
	delete(r.uploads, id)
	r.calls = append(r.calls, backendCall{Op: "DestroyImage", Image: id})
}

func (r *recordingBackend) UploadPixels(id camerarender.ImageID, pixels []byte) error {
	spec, ok := r.specs[id]
	if !ok {
		return camerarender.ErrUnknownImage
	}
	if want := spec.Width * spec.Height * spec.Format.BytesPerTexel(); len(pixels) != want {
		return fmt.Errorf("upload of %d bytes, want %d", len(pixels), want)
	}
	r.uploads[id] = append([]byte(nil), pixels...)
	r.calls = append(r.calls, backendCall{Op: "UploadPixels", Image: id})
	return nil
}

func (r *recordingBackend) CreateProgram(name string) (camerarender.ProgramID, error) {
	if r.failProgram != nil {
		return 0, r.failProgram
	}
	r.next++
	r.calls = append(r.calls, backendCall{Op: "CreateProgram", Name: name})
	return camerarender.ProgramID(r.next), nil
}

func (r *recordingBackend) BindSampler(_ camerarender.ProgramID, sampler string, id camerarender.ImageID) error {
	r.bound[sampler] = id
	r.calls = append(r.calls, backendCall{Op: "BindSampler", Name: sampler, Image: id})
	return nil
}

func (r *recordingBackend) SetUniform(_ camerarender.ProgramID, name string, v camerarender.Vec2) error {
	r.uniforms[name] = v
	r.calls = append(r.calls, backendCall{Op: "SetUniform", Name: name, Value: v})
	return nil
}

func (r *recordingBackend) CreateRenderTarget(w, h int) (camerarender.ImageID, error) {
	r.next++
	id := camerarender.ImageID(r.next)
	spec := camerarender.ImageSpec{Width: w, Height: h, Format: camerarender.FormatRGBA32}
	r.specs[id] = spec
	r.calls = append(r.calls, backendCall{Op: "CreateRenderTarget", Image: id, Spec: spec})
	return id, nil
}

func (r *recordingBackend) SubmitDraw(_ camerarender.ProgramID, target camerarender.ImageID) error {
	r.calls = append(r.calls, backendCall{Op: "SubmitDraw", Image: target})
	return nil
}

// count returns how many calls of op were recorded, optionally filtered by name.
func (r *recordingBackend) count(op, name string) int {
	n := 0
	for _, c := range r.calls {
		if c.Op == op && (name == "" || c.Name == name) {
			n++
		}
	}
	return n
}

// ops returns the recorded operation names in order.
func (r *recordingBackend) ops() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.Op)
	}
	return out
}

func (r *recordingBackend) reset() {
	r.calls = nil
}

// testPlane returns a plane whose row bytes count up from seed and whose
// padding bytes are 0xEE.
func testPlane(w, h, stride, elem int, seed byte) camerarender.Plane {
	data := make([]byte, stride*h)
	v := seed
	for row := 0; row < h; row++ {
		for i := 0; i < stride; i++ {
			if i < w*elem {
				data[row*stride+i] = v
				v++
			} else {
				data[row*stride+i] = 0xEE
			}
		}
	}
	return camerarender.Plane{Data: data, Width: w, Height: h, Stride: stride, ElementSize: elem}
}
