package noise

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	// ErrNoOctaves is returned for an fbm configuration without octaves.
	ErrNoOctaves = errors.New("fbm needs at least one octave")
	// ErrExponent is returned when the power-curve exponent is not positive.
	ErrExponent = errors.New("fbm exponent must be positive")
	// ErrNotFinite is returned when a parameter is NaN or infinite.
	ErrNotFinite = errors.New("value must be finite")
)

// Epsilon is the central-difference step used by Field.Normal.
const Epsilon = 0.001

// Config parameterizes one fractal Brownian motion evaluation.
type Config struct {
	Scale       float64 // applied once to the input position
	Persistence float64 // amplitude falloff exponent; <= 0 disables falloff
	Lacunarity  float64 // frequency multiplier per octave
	Exponent    float64 // power-curve remap of the normalized sum
	HeightScale float64 // final multiplier
	Octaves     int
}

// Validate reports whether c can be evaluated.
func (c Config) Validate() error {
	if c.Octaves <= 0 {
		return fmt.Errorf("%w (got %d)", ErrNoOctaves, c.Octaves)
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"scale", c.Scale},
		{"persistence", c.Persistence},
		{"lacunarity", c.Lacunarity},
		{"exponent", c.Exponent},
		{"height scale", c.HeightScale},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("fbm %s: %w", f.name, ErrNotFinite)
		}
	}
	if c.Exponent <= 0 {
		return fmt.Errorf("%w (got %g)", ErrExponent, c.Exponent)
	}
	return nil
}

// WithHeight returns a copy of c with a different height scale.
func (c Config) WithHeight(h float64) Config {
	c.HeightScale = h
	return c
}

// Fbm validates cfg and evaluates it over src at p.
func Fbm(src Source, p mgl64.Vec3, cfg Config) (float64, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	return fbm(src, p, cfg), nil
}

func fbm(src Source, p mgl64.Vec3, cfg Config) float64 {
	amplitude := 1.0
	frequency := 1.0
	falloff := math.Pow(2, -cfg.Persistence)
	if cfg.Persistence <= 0 {
		falloff = 1
	}

	var total, normalization float64
	p = p.Mul(cfg.Scale)
	for i := 0; i < cfg.Octaves; i++ {
		n := src.Noise(p.Mul(frequency))*0.5 + 0.5
		total += n * amplitude
		normalization += amplitude
		amplitude *= falloff
		frequency *= cfg.Lacunarity
	}

	total = clamp01(total / normalization)
	return math.Pow(total, cfg.Exponent) * cfg.HeightScale
}

// Field is a validated fbm configuration bound to a noise source.
type Field struct {
	src Source
	cfg Config
}

// NewField validates cfg and binds it to src.
func NewField(src Source, cfg Config) (*Field, error) {
	if src == nil {
		return nil, errors.New("fbm field needs a noise source")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Field{src: src, cfg: cfg}, nil
}

// Config returns the configuration the field was built with.
func (f *Field) Config() Config { return f.cfg }

// At evaluates the field at p.
func (f *Field) At(p mgl64.Vec3) float64 {
	return fbm(f.src, p, f.cfg)
}

// Normal estimates a perturbed normal from the field gradient at p using
// central differences. The 4-vector (-dx, -dy, -dz, -Epsilon) is normalized
// and its xyz part returned, so the result is shorter than unit length where
// the field is steep relative to Epsilon. ok is false when the gradient is
// exactly zero; callers fall back to their geometric normal.
func (f *Field) Normal(p mgl64.Vec3) (n mgl64.Vec3, ok bool) {
	var d mgl64.Vec3
	for axis := 0; axis < 3; axis++ {
		var e mgl64.Vec3
		e[axis] = Epsilon
		d[axis] = f.At(p.Add(e)) - f.At(p.Sub(e))
	}
	if d == (mgl64.Vec3{}) {
		return mgl64.Vec3{}, false
	}

	v := mgl64.Vec4{-d[0], -d[1], -d[2], -Epsilon}
	v = v.Mul(1 / v.Len())
	return v.Vec3(), true
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
