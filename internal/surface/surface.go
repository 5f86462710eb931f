// Package surface provides parametric primitives that feed surface points in
// local object space to a material.
package surface

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Surface maps texture coordinates u, v in [0,1] to a local position and its
// unit outward normal.
type Surface interface {
	Name() string
	At(u, v float64) (position, normal mgl64.Vec3)
}

// Sphere is a UV sphere centred on the origin.
type Sphere struct {
	Radius float64
}

func (s Sphere) Name() string { return "sphere" }

// At maps u to longitude and v to latitude, v=0 at the north pole.
func (s Sphere) At(u, v float64) (mgl64.Vec3, mgl64.Vec3) {
	phi := u * 2 * math.Pi
	theta := v * math.Pi
	n := mgl64.Vec3{
		math.Sin(theta) * math.Cos(phi),
		math.Cos(theta),
		math.Sin(theta) * math.Sin(phi),
	}
	return n.Mul(s.Radius), n
}

// Box is an axis aligned cube of edge Size. Its faces are laid out in a 3x2
// atlas: +X, -X, +Y on the first row and -Y, +Z, -Z on the second.
type Box struct {
	Size float64
}

func (b Box) Name() string { return "box" }

// boxFaces holds the normal and the two in-plane axes of each atlas cell.
var boxFaces = [6][3]mgl64.Vec3{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

func (b Box) At(u, v float64) (mgl64.Vec3, mgl64.Vec3) {
	col, s := cell(u, 3)
	row, t := cell(v, 2)
	face := boxFaces[row*3+col]

	h := b.Size / 2
	pos := face[0].Mul(h).
		Add(face[1].Mul((s*2 - 1) * h)).
		Add(face[2].Mul((1 - t*2) * h))
	return pos, face[0]
}

// cell splits x in [0,1] into n cells and returns the index and the local
// coordinate inside it.
func cell(x float64, n int) (int, float64) {
	f := clamp01(x) * float64(n)
	i := int(f)
	if i >= n {
		i = n - 1
	}
	return i, f - float64(i)
}

// Cylinder is the side wall of a y-aligned cylinder centred on the origin.
type Cylinder struct {
	Radius float64
	Height float64
}

func (c Cylinder) Name() string { return "cylinder" }

func (c Cylinder) At(u, v float64) (mgl64.Vec3, mgl64.Vec3) {
	phi := u * 2 * math.Pi
	n := mgl64.Vec3{math.Cos(phi), 0, math.Sin(phi)}
	pos := n.Mul(c.Radius)
	pos[1] = (0.5 - v) * c.Height
	return pos, n
}

// Torus lies in the xz plane. u runs around the ring, v around the tube.
type Torus struct {
	Radius     float64
	TubeRadius float64
}

func (t Torus) Name() string { return "torus" }

func (t Torus) At(u, v float64) (mgl64.Vec3, mgl64.Vec3) {
	phi := u * 2 * math.Pi
	theta := v * 2 * math.Pi
	ring := mgl64.Vec3{math.Cos(phi), 0, math.Sin(phi)}
	n := ring.Mul(math.Cos(theta)).Add(mgl64.Vec3{0, math.Sin(theta), 0})
	return ring.Mul(t.Radius).Add(n.Mul(t.TubeRadius)), n
}

// Plane is a square in z = 0 facing +z.
type Plane struct {
	Size float64
}

func (p Plane) Name() string { return "plane" }

func (p Plane) At(u, v float64) (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{(u - 0.5) * p.Size, (0.5 - v) * p.Size, 0}, mgl64.Vec3{0, 0, 1}
}

var builtin = map[string]Surface{
	"sphere":   Sphere{Radius: 0.75},
	"box":      Box{Size: 1.1},
	"cylinder": Cylinder{Radius: 0.75, Height: 1},
	"torus":    Torus{Radius: 0.5, TubeRadius: 0.3},
	"plane":    Plane{Size: 1},
}

// ByName returns the built-in primitive with the given name.
func ByName(name string) (Surface, error) {
	s, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("unknown surface %q (want one of %v)", name, Names())
	}
	return s, nil
}

// Names lists the built-in primitives in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
