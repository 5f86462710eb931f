package material

import (
	"fmt"

	"github.com/MeKo-Tech/protex/internal/mask"
	"github.com/MeKo-Tech/protex/internal/noise"
)

// Fixed fbm configurations of the layer pipeline.
var (
	// PaintWarpX, PaintWarpY and PaintWarpZ build the domain warped point of
	// the paint layer, one channel each.
	PaintWarpX = noise.Config{Scale: 4, Persistence: 0.7, Lacunarity: 2.5, Exponent: 1, HeightScale: 1, Octaves: 8}
	PaintWarpY = noise.Config{Scale: 2, Persistence: 0.5, Lacunarity: 2.5, Exponent: 1, HeightScale: 1.5, Octaves: 1}
	PaintWarpZ = noise.Config{Scale: 8, Persistence: 1, Lacunarity: 2.5, Exponent: 1, HeightScale: 1, Octaves: 4}

	// PaintWear is sampled at the warped point and darkens worn paint.
	PaintWear = noise.Config{Scale: 1, Persistence: 0.5, Lacunarity: 2, Exponent: 1, HeightScale: 1, Octaves: 8}
	// PaintBump drives the paint normal, also at the warped point.
	PaintBump = noise.Config{Scale: 1, Persistence: 0.5, Lacunarity: 2, Exponent: 1, HeightScale: 1, Octaves: 2}
	// PaintCoverage feeds the paint mask.
	PaintCoverage = noise.Config{Scale: 2, Persistence: 0.7, Lacunarity: 2, Exponent: 0.9, HeightScale: 1, Octaves: 8}

	// MetalRoughness drives the bare metal roughness. Its height scale is
	// replaced by Parameters.MetalRoughness at evaluation time.
	MetalRoughness = noise.Config{Scale: 1, Persistence: 0.7, Lacunarity: 2.5, Exponent: 1, HeightScale: 1, Octaves: 8}

	// Rust drives both the rust mask and the rust normal.
	Rust = noise.Config{Scale: 7, Persistence: 1, Lacunarity: 3.5, Exponent: 0.5, HeightScale: 1, Octaves: 4}
)

// Presets maps the preset names to their configurations.
var Presets = map[string]noise.Config{
	"paint-warp-x":    PaintWarpX,
	"paint-warp-y":    PaintWarpY,
	"paint-warp-z":    PaintWarpZ,
	"paint-wear":      PaintWear,
	"paint-bump":      PaintBump,
	"paint-coverage":  PaintCoverage,
	"metal-roughness": MetalRoughness,
	"rust":            Rust,
}

func init() {
	for name, cfg := range Presets {
		if err := cfg.Validate(); err != nil {
			panic(fmt.Sprintf("fbm preset %s: %v", name, err))
		}
	}
}

// Tuning holds the look constants that were set by eye rather than derived.
type Tuning struct {
	PaintMaskWidth float64 `yaml:"paint_mask_width" json:"paint_mask_width"`
	RustMaskWidth  float64 `yaml:"rust_mask_width" json:"rust_mask_width"`
	// BumpBlend is the weight of the perturbed normal against the geometric one.
	BumpBlend      float64 `yaml:"bump_blend" json:"bump_blend"`
	PaintRoughness float64 `yaml:"paint_roughness" json:"paint_roughness"`
	RustRoughness  float64 `yaml:"rust_roughness" json:"rust_roughness"`
}

// DefaultTuning returns the reference look.
func DefaultTuning() Tuning {
	return Tuning{
		PaintMaskWidth: 0.05,
		RustMaskWidth:  0.1,
		BumpBlend:      0.2,
		PaintRoughness: 0.7,
		RustRoughness:  0.7,
	}
}

// Validate rejects tunings that would produce a degenerate mask or leave [0,1].
func (t Tuning) Validate() error {
	if err := (mask.Ramp{Width: t.PaintMaskWidth}).Validate(); err != nil {
		return fmt.Errorf("paint mask: %w", err)
	}
	if err := (mask.Ramp{Width: t.RustMaskWidth}).Validate(); err != nil {
		return fmt.Errorf("rust mask: %w", err)
	}
	for _, f := range []field{
		{"bump_blend", t.BumpBlend},
		{"paint_roughness", t.PaintRoughness},
		{"rust_roughness", t.RustRoughness},
	} {
		if err := checkUnit(f.name, f.value); err != nil {
			return fmt.Errorf("tuning: %w", err)
		}
	}
	return nil
}
