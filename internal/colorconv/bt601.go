// Package colorconv holds the fixed-point colour conversions used by the
// software shaders.
package colorconv

// YUVToRGB converts one BT.601 video-range sample to RGB.
//
// Integer approximation:
//
//	C = Y - 16, D = U - 128, E = V - 128
//	R = (298C + 409E + 128) >> 8
//	G = (298C - 100D - 208E + 128) >> 8
//	B = (298C + 516D + 128) >> 8
//
// Results are clamped to [0, 255].
func YUVToRGB(y, u, v uint8) (r, g, b uint8) {
	c := int(y) - 16
	d := int(u) - 128
	e := int(v) - 128
	if c < 0 {
		c = 0
	}

	r = clamp8((298*c + 409*e + 128) >> 8)
	g = clamp8((298*c - 100*d - 208*e + 128) >> 8)
	b = clamp8((298*c + 516*d + 128) >> 8)
	return r, g, b
}

// RGBToYUV converts an RGB sample to BT.601 video range.
// Used to build test patterns with known chroma.
func RGBToYUV(r, g, b uint8) (y, u, v uint8) {
	ri, gi, bi := int(r), int(g), int(b)
	y = clamp8(((66*ri + 129*gi + 25*bi + 128) >> 8) + 16)
	u = clamp8(((-38*ri - 74*gi + 112*bi + 128) >> 8) + 128)
	v = clamp8(((112*ri - 94*gi - 18*bi + 128) >> 8) + 128)
	return y, u, v
}

func clamp8(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return uint8(x)
}
