package surface

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forEachUV(fn func(u, v float64)) {
	const steps = 16
	for i := 0; i <= steps; i++ {
		for j := 0; j <= steps; j++ {
			fn(float64(i)/steps, float64(j)/steps)
		}
	}
}

func TestSurfaces_UnitNormals(t *testing.T) {
	for _, name := range Names() {
		s, err := ByName(name)
		require.NoError(t, err)
		t.Run(name, func(t *testing.T) {
			forEachUV(func(u, v float64) {
				_, n := s.At(u, v)
				require.InDelta(t, 1.0, n.Len(), 1e-12, "u=%v v=%v", u, v)
			})
		})
	}
}

func TestSphere_PointsOnSurface(t *testing.T) {
	s := Sphere{Radius: 0.75}
	forEachUV(func(u, v float64) {
		p, n := s.At(u, v)
		assert.InDelta(t, 0.75, p.Len(), 1e-12)
		assert.InDelta(t, 0, p.Sub(n.Mul(0.75)).Len(), 1e-12)
	})

	top, _ := s.At(0.3, 0)
	assert.InDelta(t, 0, top.Sub(mgl64.Vec3{0, 0.75, 0}).Len(), 1e-12)
}

func TestCylinder_PointsOnWall(t *testing.T) {
	c := Cylinder{Radius: 0.75, Height: 1}
	forEachUV(func(u, v float64) {
		p, n := c.At(u, v)
		assert.InDelta(t, 0.75, math.Hypot(p[0], p[2]), 1e-12)
		assert.LessOrEqual(t, math.Abs(p[1]), 0.5+1e-12)
		assert.Equal(t, 0.0, n[1])
	})
}

func TestTorus_PointsOnTube(t *testing.T) {
	tor := Torus{Radius: 0.5, TubeRadius: 0.3}
	forEachUV(func(u, v float64) {
		p, n := tor.At(u, v)
		ring := math.Hypot(p[0], p[2])
		assert.InDelta(t, 0.3, math.Hypot(ring-0.5, p[1]), 1e-12)
		centre := p.Sub(n.Mul(0.3))
		assert.InDelta(t, 0.5, centre.Len(), 1e-12)
	})
}

func TestBox_AtlasCoversAllFaces(t *testing.T) {
	b := Box{Size: 1.1}
	seen := map[mgl64.Vec3]bool{}
	forEachUV(func(u, v float64) {
		p, n := b.At(u, v)
		seen[n] = true

		// The face coordinate along the normal is the half size, the others stay inside.
		assert.InDelta(t, 0.55, p.Dot(n), 1e-12)
		for axis := 0; axis < 3; axis++ {
			assert.LessOrEqual(t, math.Abs(p[axis]), 0.55+1e-12)
		}
	})
	assert.Len(t, seen, 6)
}

func TestPlane_Flat(t *testing.T) {
	pl := Plane{Size: 2}
	p, n := pl.At(0, 0)
	assert.Equal(t, mgl64.Vec3{-1, 1, 0}, p)
	assert.Equal(t, mgl64.Vec3{0, 0, 1}, n)

	p, _ = pl.At(1, 1)
	assert.Equal(t, mgl64.Vec3{1, -1, 0}, p)
}

func TestByName(t *testing.T) {
	assert.Equal(t, []string{"box", "cylinder", "plane", "sphere", "torus"}, Names())

	s, err := ByName("torus")
	require.NoError(t, err)
	assert.Equal(t, "torus", s.Name())

	_, err = ByName("teapot")
	assert.Error(t, err)
}
