package material

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/protex/internal/composite"
	"github.com/MeKo-Tech/protex/internal/mask"
	"github.com/MeKo-Tech/protex/internal/noise"
)

// ShadingResult is the blended material response at one point.
type ShadingResult = composite.Sample

// Shader shades a surface point given in local object space together with
// its geometric normal.
type Shader interface {
	Shade(position, normal mgl64.Vec3) ShadingResult
}

// Kind names a material model.
type Kind string

const (
	KindProcedural Kind = "procedural"
	KindStandard   Kind = "standard"
)

// ParseKind resolves a material kind name. The empty string selects KindProcedural.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case "", KindProcedural:
		return KindProcedural, nil
	case KindStandard:
		return KindStandard, nil
	default:
		return "", fmt.Errorf("unknown material kind %q", name)
	}
}

// Options configures an Evaluator. The zero value selects the simplex
// backend and DefaultTuning.
type Options struct {
	Backend noise.Backend
	Tuning  *Tuning // nil selects DefaultTuning
}

// Evaluator is a validated, immutable procedural material. It is safe for
// concurrent use; replace it wholesale to change parameters.
type Evaluator struct {
	params Parameters
	tuning Tuning

	warpX, warpY, warpZ *noise.Field
	wear, bump          *noise.Field
	coverage            *noise.Field
	metalRough          *noise.Field
	rustField           *noise.Field

	paintRamp mask.Ramp
	rustRamp  mask.Ramp
}

// Layers exposes the per-layer responses and masks behind one ShadingResult.
type Layers struct {
	Paint, Metal, Rust  LayerResult
	PaintMask, RustMask float64
	Result              ShadingResult
}

// NewEvaluator validates params and opts and prepares the fbm fields.
func NewEvaluator(params Parameters, opts Options) (*Evaluator, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid material parameters: %w", err)
	}

	tuning := DefaultTuning()
	if opts.Tuning != nil {
		tuning = *opts.Tuning
	}
	if err := tuning.Validate(); err != nil {
		return nil, err
	}

	src, err := noise.NewSource(opts.Backend, params.Seed)
	if err != nil {
		return nil, err
	}

	e := &Evaluator{
		params:    params,
		tuning:    tuning,
		paintRamp: mask.Ramp{Threshold: 1 - params.PaintLayer, Width: tuning.PaintMaskWidth},
		rustRamp:  mask.Ramp{Threshold: 1 - params.RustLayer, Width: tuning.RustMaskWidth},
	}

	for _, f := range []struct {
		dst **noise.Field
		cfg noise.Config
	}{
		{&e.warpX, PaintWarpX},
		{&e.warpY, PaintWarpY},
		{&e.warpZ, PaintWarpZ},
		{&e.wear, PaintWear},
		{&e.bump, PaintBump},
		{&e.coverage, PaintCoverage},
		{&e.metalRough, MetalRoughness.WithHeight(params.MetalRoughness)},
		{&e.rustField, Rust},
	} {
		field, err := noise.NewField(src, f.cfg)
		if err != nil {
			return nil, err
		}
		*f.dst = field
	}

	return e, nil
}

// Params returns the parameters the evaluator was built with.
func (e *Evaluator) Params() Parameters { return e.params }

// Tuning returns the tuning constants in use.
func (e *Evaluator) Tuning() Tuning { return e.tuning }

// Shade implements Shader.
func (e *Evaluator) Shade(position, normal mgl64.Vec3) ShadingResult {
	return e.ShadeLayers(position, normal).Result
}

// ShadeLayers evaluates all three layers at position and composites them
// paint over rust over metal.
func (e *Evaluator) ShadeLayers(position, normal mgl64.Vec3) Layers {
	paint, paintMask := e.paint(position, normal)
	rust, rustMask := e.rust(position, normal)
	metal := e.metal(position, normal)

	result := composite.Blend(paint, rust, metal, paintMask, rustMask)
	result.Normal = unit(result.Normal, normal)

	return Layers{
		Paint:     paint,
		Metal:     metal,
		Rust:      rust,
		PaintMask: paintMask,
		RustMask:  rustMask,
		Result:    result,
	}
}

// Evaluate shades one point with params. Batch callers should build an
// Evaluator once and call Shade instead.
func Evaluate(position, normal mgl64.Vec3, params Parameters) (ShadingResult, error) {
	e, err := NewEvaluator(params, Options{})
	if err != nil {
		return ShadingResult{}, err
	}
	return e.Shade(position, normal), nil
}

// Standard is the plain PBR reference material: a constant response that
// keeps the geometric normal.
type Standard struct {
	Color     mgl64.Vec3
	Roughness float64
	Metalness float64
}

// DefaultStandard is white, fully metallic and fully rough.
func DefaultStandard() Standard {
	return Standard{Color: mgl64.Vec3{1, 1, 1}, Roughness: 1, Metalness: 1}
}

// Shade implements Shader.
func (s Standard) Shade(_, normal mgl64.Vec3) ShadingResult {
	return ShadingResult{
		Diffuse:   s.Color.Vec4(1),
		Roughness: s.Roughness,
		Metalness: s.Metalness,
		Normal:    unit(normal, normal),
	}
}

// unit normalizes v, falling back to fallback when v has no length.
func unit(v, fallback mgl64.Vec3) mgl64.Vec3 {
	if l := v.Len(); l > 0 {
		return v.Mul(1 / l)
	}
	if l := fallback.Len(); l > 0 {
		return fallback.Mul(1 / l)
	}
	return v
}
