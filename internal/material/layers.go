package material

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/protex/internal/composite"
)

// LayerResult is the response of one material layer at one point.
type LayerResult = composite.Sample

func (e *Evaluator) paint(p, n mgl64.Vec3) (LayerResult, float64) {
	warped := mgl64.Vec3{e.warpX.At(p), e.warpY.At(p), e.warpZ.At(p)}
	wear := e.wear.At(warped)

	color := e.params.PaintColor
	worn := color.Mul(wear)
	diffuse := color.Mul(1 - e.params.PaintWorn).Add(worn.Mul(e.params.PaintWorn))

	bump, ok := e.bump.Normal(warped)
	if !ok {
		bump = n
	}

	layer := LayerResult{
		Diffuse:   diffuse.Vec4(1),
		Roughness: e.tuning.PaintRoughness,
		Metalness: 0,
		Normal:    blendNormal(n, bump.Mul(e.params.PaintWorn), e.tuning.BumpBlend),
	}
	return layer, e.paintRamp.At(e.coverage.At(p))
}

func (e *Evaluator) metal(p, n mgl64.Vec3) LayerResult {
	tint := e.params.RustLayer
	diffuse := e.params.MetalColor.Mul(1 - tint).Add(e.params.RustColor.Mul(tint))

	return LayerResult{
		Diffuse:   diffuse.Vec4(1),
		Roughness: e.metalRough.At(p),
		Metalness: 1,
		Normal:    n,
	}
}

func (e *Evaluator) rust(p, n mgl64.Vec3) (LayerResult, float64) {
	bump, ok := e.rustField.Normal(p)
	if !ok {
		bump = n
	}

	layer := LayerResult{
		Diffuse:   e.params.RustColor.Vec4(1),
		Roughness: e.tuning.RustRoughness,
		Metalness: 1,
		Normal:    blendNormal(n, bump, e.tuning.BumpBlend),
	}
	return layer, e.rustRamp.At(e.rustField.At(p))
}

// blendNormal moves the geometric normal n towards bump by weight.
func blendNormal(n, bump mgl64.Vec3, weight float64) mgl64.Vec3 {
	return n.Mul(1 - weight).Add(bump.Mul(weight))
}
