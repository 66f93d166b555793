package softgpu

import (
	"math"
	"slices"

	camerarender "github.com/e7canasta/orion-care-sensor/modules/camera-render"
	"github.com/e7canasta/orion-care-sensor/modules/camera-render/internal/colorconv"
)

// fragmentInput carries what one draw's fragments can read: the bound
// textures in the shader's sampler order and the texture scale uniform.
type fragmentInput struct {
	textures []*texture
	scale    camerarender.Vec2
}

// fragmentFunc shades one output texel. u and v are texel-centre
// coordinates in [0,1), v measured from the bottom row.
type fragmentFunc func(in *fragmentInput, u, v float64) (r, g, b uint8)

type shader struct {
	name     string
	samplers []string
	fragment fragmentFunc
}

func (s *shader) hasSampler(name string) bool {
	return slices.Contains(s.samplers, name)
}

var shaders = map[string]*shader{
	camerarender.ShaderYUVCamera: {
		name: camerarender.ShaderYUVCamera,
		samplers: []string{
			camerarender.SamplerLuma,
			camerarender.SamplerChromaU,
			camerarender.SamplerChromaV,
		},
		fragment: yuvCamera,
	},
	camerarender.ShaderLumaPreview: {
		name:     camerarender.ShaderLumaPreview,
		samplers: []string{camerarender.SamplerLuma},
		fragment: lumaPreview,
	},
}

// yuvCamera converts the three channel images to RGB.
//
// Luma is addressed texel by texel. Chroma is addressed by byte across the
// packed row and scale.X turns that byte address into an element index, so
// interleaved chroma needs scale.X = 1/elementSize. scale.Y applies to
// every channel.
func yuvCamera(in *fragmentInput, u, v float64) (uint8, uint8, uint8) {
	tv := v * float64(in.scale.Y)

	y := in.textures[0].texel(u, tv)
	cu := in.textures[1].chroma(u, tv, in.scale.X)
	cv := in.textures[2].chroma(u, tv, in.scale.X)

	return colorconv.YUVToRGB(y, cu, cv)
}

// lumaPreview renders a single-channel image as grey, with scale applied
// to both axes.
func lumaPreview(in *fragmentInput, u, v float64) (uint8, uint8, uint8) {
	g := in.textures[0].texel(u*float64(in.scale.X), v*float64(in.scale.Y))
	return g, g, g
}

// texel returns the first byte of the nearest texel with repeat wrapping.
func (t *texture) texel(u, v float64) byte {
	col := wrapIndex(u, t.spec.Width)
	row := wrapIndex(v, t.spec.Height)
	return t.pix[row*t.rowBytes()+col*t.spec.Format.BytesPerTexel()]
}

// chroma returns the first byte of the element reached through byte
// addressing scaled by scaleX.
func (t *texture) chroma(u, v float64, scaleX float32) byte {
	rb := t.rowBytes()
	byteAddr := math.Floor(frac(u) * float64(rb))
	elem := int(math.Floor(byteAddr*float64(scaleX))) % t.spec.Width
	if elem < 0 {
		elem += t.spec.Width
	}
	row := wrapIndex(v, t.spec.Height)
	return t.pix[row*rb+elem*t.spec.Format.BytesPerTexel()]
}

func frac(x float64) float64 {
	return x - math.Floor(x)
}

func wrapIndex(x float64, n int) int {
	i := int(frac(x) * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
