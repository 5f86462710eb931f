// Package composite blends the paint, rust and metal layers of a material
// into one shading sample.
package composite

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Sample is the shading response of one layer, or of the blended material,
// at one surface point.
type Sample struct {
	Diffuse   mgl64.Vec4 // straight (non-premultiplied) RGBA
	Normal    mgl64.Vec3
	Roughness float64
	Metalness float64
}

// Blend stacks the layers in the fixed order paint over rust over metal.
// Both masks must lie in [0,1]; the result is then a convex combination of
// the three layers and never leaves their hull.
func Blend(paint, rust, metal Sample, paintMask, rustMask float64) Sample {
	under := Sample{
		Diffuse:   mix4(metal.Diffuse, rust.Diffuse, rustMask),
		Roughness: mix(metal.Roughness, rust.Roughness, rustMask),
		Metalness: mix(metal.Metalness, rust.Metalness, rustMask),
		Normal:    mix3(metal.Normal, rust.Normal, rustMask),
	}

	return Sample{
		Diffuse:   mix4(under.Diffuse, paint.Diffuse, paintMask),
		Roughness: mix(under.Roughness, paint.Roughness, paintMask),
		Metalness: mix(under.Metalness, paint.Metalness, paintMask),
		Normal:    mix3(under.Normal, paint.Normal, paintMask),
	}
}

// Weights returns the coefficients Blend applies to each layer.
func Weights(paintMask, rustMask float64) (paint, rust, metal float64) {
	paint = paintMask
	rust = (1 - paintMask) * rustMask
	metal = (1 - paintMask) * (1 - rustMask)
	return paint, rust, metal
}

// mix is GLSL mix: a at t=0, b at t=1.
func mix(a, b, t float64) float64 {
	return t*b + (1-t)*a
}

func mix3(a, b mgl64.Vec3, t float64) mgl64.Vec3 {
	return b.Mul(t).Add(a.Mul(1 - t))
}

func mix4(a, b mgl64.Vec4, t float64) mgl64.Vec4 {
	return b.Mul(t).Add(a.Mul(1 - t))
}
