// Package material evaluates the procedural painted, worn, rusty metal
// material at surface points.
package material

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

// Seed range used when drawing a new random seed.
const (
	MinSeed = 1.0
	MaxSeed = 100000.0
)

var (
	// ErrOutOfRange is returned when a parameter lies outside its documented range.
	ErrOutOfRange = errors.New("parameter out of range")
	// ErrNotFinite is returned when a parameter is NaN or infinite.
	ErrNotFinite = errors.New("parameter must be finite")
)

// Parameters is an immutable snapshot of the user facing material settings.
// Colours are linear RGB in [0,1]; all scalars lie in [0,1] except Seed.
type Parameters struct {
	Seed float64

	PaintColor mgl64.Vec3
	PaintWorn  float64
	PaintLayer float64

	MetalColor     mgl64.Vec3
	MetalRoughness float64

	RustColor mgl64.Vec3
	RustLayer float64
}

// DefaultParameters returns the stock painted rusty metal look.
func DefaultParameters() Parameters {
	return Parameters{
		Seed:           42,
		PaintColor:     mustHex("#E79C1C"),
		PaintWorn:      1,
		PaintLayer:     1,
		MetalColor:     mustHex("#808080"),
		MetalRoughness: 1,
		RustColor:      mustHex("#654F45"),
		RustLayer:      0.25,
	}
}

type field struct {
	name  string
	value float64
}

func (p Parameters) scalars() []field {
	return []field{
		{"paint_worn", p.PaintWorn},
		{"paint_layer", p.PaintLayer},
		{"metal_roughness", p.MetalRoughness},
		{"rust_layer", p.RustLayer},
	}
}

func (p Parameters) colors() []struct {
	name  string
	value mgl64.Vec3
} {
	return []struct {
		name  string
		value mgl64.Vec3
	}{
		{"paint_color", p.PaintColor},
		{"metal_color", p.MetalColor},
		{"rust_color", p.RustColor},
	}
}

// Validate rejects non-finite values and anything outside [0,1].
func (p Parameters) Validate() error {
	if math.IsNaN(p.Seed) || math.IsInf(p.Seed, 0) {
		return fmt.Errorf("seed: %w", ErrNotFinite)
	}
	for _, f := range p.scalars() {
		if err := checkUnit(f.name, f.value); err != nil {
			return err
		}
	}
	for _, c := range p.colors() {
		for i, ch := range c.value {
			if err := checkUnit(fmt.Sprintf("%s[%d]", c.name, i), ch); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkUnit(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s: %w", name, ErrNotFinite)
	}
	if v < 0 || v > 1 {
		return fmt.Errorf("%s = %g: %w [0,1]", name, v, ErrOutOfRange)
	}
	return nil
}

// Clamped returns p with every scalar and colour channel clamped into [0,1].
// NaN values become 0. The seed is left alone.
func (p Parameters) Clamped() Parameters {
	p.PaintWorn = clamp01(p.PaintWorn)
	p.PaintLayer = clamp01(p.PaintLayer)
	p.MetalRoughness = clamp01(p.MetalRoughness)
	p.RustLayer = clamp01(p.RustLayer)
	p.PaintColor = clampColor(p.PaintColor)
	p.MetalColor = clampColor(p.MetalColor)
	p.RustColor = clampColor(p.RustColor)
	return p
}

// WithSeed returns a copy of p using seed.
func (p Parameters) WithSeed(seed float64) Parameters {
	p.Seed = seed
	return p
}

// RandomSeed draws a seed uniformly from [MinSeed, MaxSeed).
func RandomSeed(r *rand.Rand) float64 {
	return MinSeed + r.Float64()*(MaxSeed-MinSeed)
}

// Fingerprint returns a short stable hash of p, suitable as a cache key.
func (p Parameters) Fingerprint() string {
	h := fnv.New64a()
	var buf [8]byte
	write := func(v float64) {
		bits := math.Float64bits(v)
		for i := range buf {
			buf[i] = byte(bits >> (8 * i))
		}
		_, _ = h.Write(buf[:])
	}

	write(p.Seed)
	for _, c := range p.colors() {
		for _, ch := range c.value {
			write(ch)
		}
	}
	for _, f := range p.scalars() {
		write(f.value)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func clampColor(c mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{clamp01(c[0]), clamp01(c[1]), clamp01(c[2])}
}
