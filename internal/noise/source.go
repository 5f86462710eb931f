package noise

import (
	"fmt"
	"math"
	"strings"

	"github.com/aquilax/go-perlin"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/ojrac/opensimplex-go"
)

// Source is a seeded scalar noise field over 3D space with values in about [-1, 1].
type Source interface {
	Noise(p mgl64.Vec3) float64
}

// Backend selects the noise implementation behind a Source.
type Backend string

const (
	// BackendSimplex is the period-289 simplex noise of Simplex.
	BackendSimplex Backend = "simplex"
	// BackendPerlin uses classic Perlin noise from go-perlin.
	BackendPerlin Backend = "perlin"
	// BackendOpenSimplex uses OpenSimplex noise.
	BackendOpenSimplex Backend = "opensimplex"
)

// Backends lists every supported backend, default first.
var Backends = []Backend{BackendSimplex, BackendPerlin, BackendOpenSimplex}

// ParseBackend resolves a backend name. The empty string selects BackendSimplex.
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case "", BackendSimplex:
		return BackendSimplex, nil
	case BackendPerlin:
		return BackendPerlin, nil
	case BackendOpenSimplex:
		return BackendOpenSimplex, nil
	default:
		return "", fmt.Errorf("unknown noise backend %q (want one of %v)", name, Backends)
	}
}

// NewSource builds the Source for backend and seed.
func NewSource(backend Backend, seed float64) (Source, error) {
	if math.IsNaN(seed) || math.IsInf(seed, 0) {
		return nil, fmt.Errorf("noise seed must be finite: %w", ErrNotFinite)
	}

	switch backend {
	case "", BackendSimplex:
		return SimplexSource{Seed: seed}, nil
	case BackendPerlin:
		// alpha 2, beta 2, a single octave: fbm does the octave stacking.
		return perlinSource{p: perlin.NewPerlin(2.0, 2.0, 1, intSeed(seed))}, nil
	case BackendOpenSimplex:
		return openSimplexSource{n: opensimplex.New(intSeed(seed))}, nil
	default:
		return nil, fmt.Errorf("unknown noise backend %q", backend)
	}
}

// SimplexSource evaluates Simplex with a fixed seed.
type SimplexSource struct {
	Seed float64
}

// Noise implements Source.
func (s SimplexSource) Noise(p mgl64.Vec3) float64 {
	return Simplex(p, s.Seed)
}

type perlinSource struct {
	p *perlin.Perlin
}

func (s perlinSource) Noise(p mgl64.Vec3) float64 {
	return s.p.Noise3D(p[0], p[1], p[2])
}

type openSimplexSource struct {
	n opensimplex.Noise
}

func (s openSimplexSource) Noise(p mgl64.Vec3) float64 {
	return s.n.Eval3(p[0], p[1], p[2])
}

// intSeed folds a float seed into the integer seed the table based backends
// expect. The fractional part is kept so 42.5 and 42 differ.
func intSeed(seed float64) int64 {
	return int64(math.Round(seed * 1000))
}
