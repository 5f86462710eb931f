package material

import (
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/protex/internal/mask"
	"github.com/MeKo-Tech/protex/internal/noise"
)

var up = mgl64.Vec3{0, 0, 1}

func scenarioParams() Parameters {
	return Parameters{
		Seed:           42,
		PaintColor:     mgl64.Vec3{0.91, 0.61, 0.11},
		PaintWorn:      1,
		PaintLayer:     1,
		MetalColor:     mgl64.Vec3{0.5, 0.5, 0.5},
		MetalRoughness: 1,
		RustColor:      mgl64.Vec3{0.40, 0.31, 0.27},
		RustLayer:      0.25,
	}
}

func samplePoints() []mgl64.Vec3 {
	var pts []mgl64.Vec3
	for x := -1.0; x <= 1; x += 0.4 {
		for y := -1.0; y <= 1; y += 0.4 {
			for z := -1.0; z <= 1; z += 0.5 {
				pts = append(pts, mgl64.Vec3{x, y, z})
			}
		}
	}
	return pts
}

func TestEvaluate_PaintDominatesAtFullLayer(t *testing.T) {
	params := scenarioParams()

	got, err := Evaluate(mgl64.Vec3{}, up, params)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, got.Metalness, 1e-9)
	assert.InDelta(t, 0.7, got.Roughness, 1e-9)
	assert.InDelta(t, 1.0, got.Diffuse[3], 1e-12)
	assert.InDelta(t, 1.0, got.Normal.Len(), 1e-9)

	// Fully worn paint is the paint colour scaled by one wear factor.
	k := got.Diffuse[0] / params.PaintColor[0]
	assert.GreaterOrEqual(t, k, 0.0)
	assert.LessOrEqual(t, k, 1.0)
	for c := 0; c < 3; c++ {
		assert.InDelta(t, params.PaintColor[c]*k, got.Diffuse[c], 1e-9, "channel %d", c)
	}
}

func TestEvaluate_BareMetalWithoutLayers(t *testing.T) {
	params := scenarioParams()
	params.PaintLayer = 0
	params.RustLayer = 0

	e, err := NewEvaluator(params, Options{})
	require.NoError(t, err)

	layers := e.ShadeLayers(mgl64.Vec3{}, up)
	assert.Equal(t, 0.0, layers.PaintMask)
	assert.Equal(t, 0.0, layers.RustMask)

	got := layers.Result
	assert.InDelta(t, 1.0, got.Metalness, 1e-12)
	// Every octave of the roughness field is 0.5 at the origin.
	assert.InDelta(t, 0.5, got.Roughness, 1e-12)
	for c := 0; c < 3; c++ {
		assert.InDelta(t, params.MetalColor[c], got.Diffuse[c], 1e-12)
	}
	assert.InDelta(t, 0.0, got.Normal.Sub(up).Len(), 1e-12)
}

func TestEvaluate_Idempotent(t *testing.T) {
	params := DefaultParameters()
	for _, p := range samplePoints() {
		a, err := Evaluate(p, up, params)
		require.NoError(t, err)
		b, err := Evaluate(p, up, params)
		require.NoError(t, err)
		require.Equal(t, a, b, "at %v", p)
	}
}

func TestEvaluate_SeedChangesPatternNotBounds(t *testing.T) {
	base := DefaultParameters()
	base.PaintLayer = 0.5
	base.RustLayer = 0.5

	a, err := NewEvaluator(base, Options{})
	require.NoError(t, err)
	b, err := NewEvaluator(base.WithSeed(4711), Options{})
	require.NoError(t, err)

	differs := 0
	for _, p := range samplePoints() {
		ra := a.Shade(p, up)
		rb := b.Shade(p, up)
		if ra != rb {
			differs++
		}
		for _, r := range []ShadingResult{ra, rb} {
			assertBounded(t, r)
		}
	}
	assert.Greater(t, differs, len(samplePoints())/2)
}

func TestEvaluator_AllBackendsBounded(t *testing.T) {
	params := DefaultParameters()
	params.PaintLayer = 0.4
	for _, backend := range noise.Backends {
		t.Run(string(backend), func(t *testing.T) {
			e, err := NewEvaluator(params, Options{Backend: backend})
			require.NoError(t, err)
			for _, p := range samplePoints() {
				assertBounded(t, e.Shade(p, up))
			}
		})
	}
}

func TestEvaluator_LayersComposeToResult(t *testing.T) {
	params := DefaultParameters()
	params.PaintLayer = 0.5
	params.RustLayer = 0.6

	e, err := NewEvaluator(params, Options{})
	require.NoError(t, err)

	for _, p := range samplePoints() {
		l := e.ShadeLayers(p, up)
		require.GreaterOrEqual(t, l.PaintMask, 0.0)
		require.LessOrEqual(t, l.PaintMask, 1.0)
		require.GreaterOrEqual(t, l.RustMask, 0.0)
		require.LessOrEqual(t, l.RustMask, 1.0)

		assert.Equal(t, 0.0, l.Paint.Metalness)
		assert.Equal(t, 1.0, l.Metal.Metalness)
		assert.Equal(t, 1.0, l.Rust.Metalness)
		assert.Equal(t, up, l.Metal.Normal)
		assert.Equal(t, params.RustColor.Vec4(1), l.Rust.Diffuse)

		assert.Equal(t, l.Result, e.Shade(p, up))
	}
}

func TestEvaluator_ConcurrentShadeMatchesSequential(t *testing.T) {
	e, err := NewEvaluator(DefaultParameters(), Options{})
	require.NoError(t, err)

	pts := samplePoints()
	want := make([]ShadingResult, len(pts))
	for i, p := range pts {
		want[i] = e.Shade(p, up)
	}

	got := make([]ShadingResult, len(pts))
	var wg sync.WaitGroup
	for i := range pts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = e.Shade(pts[i], up)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, want, got)
}

func TestNewEvaluator_RejectsBadInput(t *testing.T) {
	params := DefaultParameters()
	params.PaintLayer = 1.5
	_, err := NewEvaluator(params, Options{})
	assert.ErrorIs(t, err, ErrOutOfRange)

	params = DefaultParameters()
	params.RustColor[1] = math.NaN()
	_, err = Evaluate(mgl64.Vec3{}, up, params)
	assert.ErrorIs(t, err, ErrNotFinite)

	tuning := DefaultTuning()
	tuning.RustMaskWidth = 0
	_, err = NewEvaluator(DefaultParameters(), Options{Tuning: &tuning})
	assert.ErrorIs(t, err, mask.ErrWidth)

	_, err = NewEvaluator(DefaultParameters(), Options{Backend: "worley"})
	assert.Error(t, err)
}

func TestStandard_KeepsGeometricNormal(t *testing.T) {
	s := DefaultStandard()
	got := s.Shade(mgl64.Vec3{0.3, 0.1, 0}, mgl64.Vec3{0, 2, 0})

	assert.Equal(t, mgl64.Vec4{1, 1, 1, 1}, got.Diffuse)
	assert.Equal(t, 1.0, got.Roughness)
	assert.Equal(t, 1.0, got.Metalness)
	assert.Equal(t, mgl64.Vec3{0, 1, 0}, got.Normal)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindProcedural, k)

	k, err = ParseKind("standard")
	require.NoError(t, err)
	assert.Equal(t, KindStandard, k)

	_, err = ParseKind("glass")
	assert.Error(t, err)
}

func assertBounded(t *testing.T, r ShadingResult) {
	t.Helper()
	for c := 0; c < 4; c++ {
		require.GreaterOrEqual(t, r.Diffuse[c], -1e-12)
		require.LessOrEqual(t, r.Diffuse[c], 1+1e-12)
	}
	require.GreaterOrEqual(t, r.Roughness, -1e-12)
	require.LessOrEqual(t, r.Roughness, 1+1e-12)
	require.GreaterOrEqual(t, r.Metalness, -1e-12)
	require.LessOrEqual(t, r.Metalness, 1+1e-12)
	require.InDelta(t, 1.0, r.Normal.Len(), 1e-9)
}

func TestNewEvaluator_TuningOption(t *testing.T) {
	e, err := NewEvaluator(DefaultParameters(), Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), e.Tuning())

	tuning := DefaultTuning()
	tuning.BumpBlend = 0
	e, err = NewEvaluator(DefaultParameters(), Options{Tuning: &tuning})
	require.NoError(t, err)
	assert.Equal(t, 0.0, e.Tuning().BumpBlend)
	assert.Equal(t, 0.7, e.Tuning().PaintRoughness)

	// Without the bump blend every layer keeps the geometric normal.
	for _, p := range samplePoints() {
		l := e.ShadeLayers(p, up)
		assert.InDeltaSlice(t, up[:], l.Paint.Normal[:], 1e-12)
		assert.InDeltaSlice(t, up[:], l.Rust.Normal[:], 1e-12)
	}
}
