// Package noise provides the seeded 3D gradient noise, fractal accumulation and
// normal estimation used by the procedural materials.
package noise

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Period is the lattice period of the permutation hash.
const Period = 289.0

const (
	skewF   = 1.0 / 3.0
	unskewG = 1.0 / 6.0

	// Gradients are N*N points on a square folded onto an octahedron.
	gradN = 7.0

	kernelRadius = 0.6
	outputScale  = 42.0
)

// Simplex returns 3D simplex noise at p. The seed offsets the lattice
// coordinates before hashing, so the same (p, seed) always yields the same
// value and seeds that differ by a multiple of Period yield the same field.
func Simplex(p mgl64.Vec3, seed float64) float64 {
	// First corner.
	s := (p[0] + p[1] + p[2]) * skewF
	i := mgl64.Vec3{
		math.Floor(p[0] + s),
		math.Floor(p[1] + s),
		math.Floor(p[2] + s),
	}
	t := (i[0] + i[1] + i[2]) * unskewG
	x0 := mgl64.Vec3{p[0] - i[0] + t, p[1] - i[1] + t, p[2] - i[2] + t}

	// Other corners: rank the components of x0 to pick the tetrahedron.
	var i1, i2 mgl64.Vec3
	for k := 0; k < 3; k++ {
		g := step(x0[(k+1)%3], x0[k])
		l := 1 - step(x0[k], x0[(k+2)%3])
		i1[k] = math.Min(g, l)
		i2[k] = math.Max(g, l)
	}
	offsets := [4]mgl64.Vec3{{0, 0, 0}, i1, i2, {1, 1, 1}}

	// Seeded lattice coordinates.
	for k := 0; k < 3; k++ {
		i[k] = mod289(i[k] + seed)
	}

	var sum float64
	for c, o := range offsets {
		shift := float64(c) * unskewG
		x := mgl64.Vec3{x0[0] - o[0] + shift, x0[1] - o[1] + shift, x0[2] - o[2] + shift}

		m := kernelRadius - x.Dot(x)
		if m <= 0 {
			continue
		}
		m *= m

		h := permute(permute(permute(i[2]+o[2])+i[1]+o[1]) + i[0] + o[0])
		sum += m * m * gradient(h).Dot(x)
	}

	return outputScale * sum
}

// gradient maps a corner hash onto a unit-ish gradient vector.
func gradient(h float64) mgl64.Vec3 {
	const ns = 1.0 / gradN
	nsx := 2 * ns
	nsy := 0.5*ns - 1

	j := h - gradN*gradN*math.Floor(h*ns*ns)
	gx := math.Floor(j * ns)
	gy := math.Floor(j - gradN*gx)

	x := gx*nsx + nsy
	y := gy*nsx + nsy
	z := 1 - math.Abs(x) - math.Abs(y)

	sh := -step(z, 0)
	x += (math.Floor(x)*2 + 1) * sh
	y += (math.Floor(y)*2 + 1) * sh

	g := mgl64.Vec3{x, y, z}
	return g.Mul(taylorInvSqrt(g.Dot(g)))
}

func permute(x float64) float64 {
	return mod289((x*34 + 1) * x)
}

func mod289(x float64) float64 {
	return x - math.Floor(x/Period)*Period
}

func taylorInvSqrt(r float64) float64 {
	return 1.79284291400159 - 0.85373472095314*r
}

// step is 0 when x < edge and 1 otherwise.
func step(edge, x float64) float64 {
	if x < edge {
		return 0
	}
	return 1
}
