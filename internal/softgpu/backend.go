// Package softgpu is a CPU implementation of camerarender.GraphicsBackend.
//
// Images are plain byte slices owned by the backend. Render targets are
// stored bottom-up, the way a display raster is addressed, and Snapshot
// converts them back to a top-down image.RGBA. Draws run synchronously on
// the calling goroutine.
package softgpu

import (
	"fmt"
	"image"
	"sync"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
)

type texture struct {
	spec         camerarender.ImageSpec
	pix          []byte
	renderTarget bool
	uploads      uint64
}

func (t *texture) rowBytes() int {
	return t.spec.Width * t.spec.Format.BytesPerTexel()
}

type program struct {
	shader   *shader
	samplers map[string]camerarender.ImageID
	uniforms map[string]camerarender.Vec2
}

// Stats is a snapshot of backend activity.
type Stats struct {
	LiveImages int
	Programs   int
	Uploads    uint64
	Draws      uint64
}

// Backend is a software GraphicsBackend.
//
// Thread-safety: all methods are safe for concurrent use; draws hold the
// backend lock for their full duration.
type Backend struct {
	mu       sync.Mutex
	nextID   uint32
	images   map[camerarender.ImageID]*texture
	programs map[camerarender.ProgramID]*program

	uploads uint64
	draws   uint64
}

// New creates an empty backend with the built-in shaders registered.
func New() *Backend {
	return &Backend{
		images:   make(map[camerarender.ImageID]*texture),
		programs: make(map[camerarender.ProgramID]*program),
	}
}

var _ camerarender.GraphicsBackend = (*Backend)(nil)

func (b *Backend) allocID() uint32 {
	b.nextID++
	return b.nextID
}

// CreateImage allocates a zeroed sampled image.
func (b *Backend) CreateImage(spec camerarender.ImageSpec) (camerarender.ImageID, error) {
	if spec.Width <= 0 || spec.Height <= 0 {
		return 0, fmt.Errorf("softgpu: invalid image size %dx%d", spec.Width, spec.Height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := camerarender.ImageID(b.allocID())
	b.images[id] = &texture{
		spec: spec,
		pix:  make([]byte, spec.Width*spec.Height*spec.Format.BytesPerTexel()),
	}
	return id, nil
}

// CreateRenderTarget allocates an RGBA render target cleared to zero.
func (b *Backend) CreateRenderTarget(width, height int) (camerarender.ImageID, error) {
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("softgpu: invalid render target size %dx%d", width, height)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := camerarender.ImageID(b.allocID())
	b.images[id] = &texture{
		spec: camerarender.ImageSpec{
			Width:  width,
			Height: height,
			Format: camerarender.FormatRGBA32,
			Filter: camerarender.FilterPoint,
		},
		pix:          make([]byte, width*height*4),
		renderTarget: true,
	}
	return id, nil
}

// DestroyImage releases an image. Unknown handles are ignored.
func (b *Backend) DestroyImage(id camerarender.ImageID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.images, id)
	for _, p := range b.programs {
		for name, bound := range p.samplers {
			if bound == id {
				delete(p.samplers, name)
			}
		}
	}
}

// UploadPixels copies pixels into a sampled image. The backend keeps its
// own copy; the caller may reuse pixels immediately.
func (b *Backend) UploadPixels(id camerarender.ImageID, pixels []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.images[id]
	if !ok {
		return fmt.Errorf("softgpu: upload to image %d: %w", id, camerarender.ErrUnknownImage)
	}
	if t.renderTarget {
		return fmt.Errorf("softgpu: image %d is a render target", id)
	}
	if len(pixels) != len(t.pix) {
		return fmt.Errorf("softgpu: upload of %d bytes to %dx%d %s image (want %d)",
			len(pixels), t.spec.Width, t.spec.Height, t.spec.Format, len(t.pix))
	}

	copy(t.pix, pixels)
	t.uploads++
	b.uploads++
	return nil
}

// CreateProgram instantiates a built-in shader.
func (b *Backend) CreateProgram(shaderName string) (camerarender.ProgramID, error) {
	s, ok := shaders[shaderName]
	if !ok {
		return 0, fmt.Errorf("softgpu: %q: %w", shaderName, camerarender.ErrUnknownShader)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := camerarender.ProgramID(b.allocID())
	b.programs[id] = &program{
		shader:   s,
		samplers: make(map[string]camerarender.ImageID),
		uniforms: make(map[string]camerarender.Vec2),
	}
	return id, nil
}

// BindSampler attaches image to the named sampler of program.
func (b *Backend) BindSampler(programID camerarender.ProgramID, sampler string, id camerarender.ImageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programID]
	if !ok {
		return fmt.Errorf("softgpu: unknown program %d", programID)
	}
	if !p.shader.hasSampler(sampler) {
		return fmt.Errorf("softgpu: shader %q has no sampler %q", p.shader.name, sampler)
	}
	if _, ok := b.images[id]; !ok {
		return fmt.Errorf("softgpu: bind %q: %w", sampler, camerarender.ErrUnknownImage)
	}

	p.samplers[sampler] = id
	return nil
}

// SetUniform sets a two-component uniform on program.
func (b *Backend) SetUniform(programID camerarender.ProgramID, name string, value camerarender.Vec2) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programID]
	if !ok {
		return fmt.Errorf("softgpu: unknown program %d", programID)
	}
	p.uniforms[name] = value
	return nil
}

// SubmitDraw runs program over every texel of target.
func (b *Backend) SubmitDraw(programID camerarender.ProgramID, target camerarender.ImageID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programID]
	if !ok {
		return fmt.Errorf("softgpu: unknown program %d", programID)
	}
	dst, ok := b.images[target]
	if !ok {
		return fmt.Errorf("softgpu: draw target %d: %w", target, camerarender.ErrUnknownImage)
	}
	if !dst.renderTarget {
		return fmt.Errorf("softgpu: image %d is not a render target", target)
	}

	in := &fragmentInput{scale: camerarender.Vec2{X: 1, Y: 1}}
	if v, ok := p.uniforms[camerarender.UniformTextureScale]; ok {
		in.scale = v
	}
	for _, name := range p.shader.samplers {
		id, ok := p.samplers[name]
		if !ok {
			return fmt.Errorf("softgpu: shader %q: sampler %q not bound", p.shader.name, name)
		}
		in.textures = append(in.textures, b.images[id])
	}

	w, h := dst.spec.Width, dst.spec.Height
	for row := 0; row < h; row++ {
		v := (float64(row) + 0.5) / float64(h)
		line := dst.pix[row*w*4 : (row+1)*w*4]
		for col := 0; col < w; col++ {
			u := (float64(col) + 0.5) / float64(w)
			r, g, bl := p.shader.fragment(in, u, v)
			px := line[col*4 : col*4+4]
			px[0], px[1], px[2], px[3] = r, g, bl, 0xff
		}
	}

	b.draws++
	return nil
}

// Snapshot returns a top-down copy of a render target.
func (b *Backend) Snapshot(target camerarender.ImageID) (*image.RGBA, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.images[target]
	if !ok {
		return nil, fmt.Errorf("softgpu: snapshot %d: %w", target, camerarender.ErrUnknownImage)
	}
	if !t.renderTarget {
		return nil, fmt.Errorf("softgpu: image %d is not a render target", target)
	}

	w, h := t.spec.Width, t.spec.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := t.pix[(h-1-y)*w*4 : (h-y)*w*4]
		copy(img.Pix[y*img.Stride:y*img.Stride+w*4], src)
	}
	return img, nil
}

// Pixels returns a copy of an image's content in upload order.
func (b *Backend) Pixels(id camerarender.ImageID) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.images[id]
	if !ok {
		return nil, fmt.Errorf("softgpu: read %d: %w", id, camerarender.ErrUnknownImage)
	}
	out := make([]byte, len(t.pix))
	copy(out, t.pix)
	return out, nil
}

// Spec returns the spec an image was created with.
func (b *Backend) Spec(id camerarender.ImageID) (camerarender.ImageSpec, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.images[id]
	if !ok {
		return camerarender.ImageSpec{}, false
	}
	return t.spec, true
}

// Bound returns the image attached to a program's sampler.
func (b *Backend) Bound(programID camerarender.ProgramID, sampler string) (camerarender.ImageID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.programs[programID]
	if !ok {
		return 0, false
	}
	id, ok := p.samplers[sampler]
	return id, ok
}

// Stats returns backend counters.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		LiveImages: len(b.images),
		Programs:   len(b.programs),
		Uploads:    b.uploads,
		Draws:      b.draws,
	}
}
