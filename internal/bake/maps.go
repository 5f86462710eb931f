// Package bake samples a material over a parametric surface into texture maps.
package bake

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/protex/internal/mask"
)

// MapKind names one output map.
type MapKind string

const (
	MapDiffuse   MapKind = "diffuse"
	MapNormal    MapKind = "normal"
	MapRoughness MapKind = "roughness"
	MapMetalness MapKind = "metalness"
	MapPaintMask MapKind = "paintmask"
	MapRustMask  MapKind = "rustmask"
)

// AllKinds lists every map kind in output order.
var AllKinds = []MapKind{MapDiffuse, MapNormal, MapRoughness, MapMetalness, MapPaintMask, MapRustMask}

// ParseMapKind resolves a map kind name.
func ParseMapKind(name string) (MapKind, error) {
	for _, k := range AllKinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown map kind %q", name)
}

// Depth is the bit depth per channel of an encoded map.
type Depth int

const (
	Depth8  Depth = 8
	Depth16 Depth = 16
)

// Maps holds the baked float planes. Diffuse has four channels per texel,
// Normal three, everything else one. The mask planes are nil unless the
// bake kept them.
type Maps struct {
	Width  int
	Height int

	Diffuse   []float64
	Normal    []float64
	Roughness []float64
	Metalness []float64
	PaintMask []float64
	RustMask  []float64
}

func newMaps(w, h int, keepMasks bool) *Maps {
	n := w * h
	m := &Maps{
		Width:     w,
		Height:    h,
		Diffuse:   make([]float64, n*4),
		Normal:    make([]float64, n*3),
		Roughness: make([]float64, n),
		Metalness: make([]float64, n),
	}
	if keepMasks {
		m.PaintMask = make([]float64, n)
		m.RustMask = make([]float64, n)
	}
	return m
}

func (m *Maps) idx(x, y int) int { return y*m.Width + x }

// IsMask reports whether k is a layer coverage mask.
func (k MapKind) IsMask() bool { return k == MapPaintMask || k == MapRustMask }

// Coverage returns the mean weight of a mask map in 0..1.
func (m *Maps) Coverage(kind MapKind) (float64, error) {
	if !kind.IsMask() {
		return 0, fmt.Errorf("map %s is not a mask", kind)
	}
	plane, _, err := m.Plane(kind)
	if err != nil {
		return 0, err
	}
	img, err := mask.ToGray(plane, m.Width, m.Height)
	if err != nil {
		return 0, err
	}
	return mask.Coverage(img), nil
}

// Kinds lists the maps present, in AllKinds order.
func (m *Maps) Kinds() []MapKind {
	kinds := []MapKind{MapDiffuse, MapNormal, MapRoughness, MapMetalness}
	if m.PaintMask != nil {
		kinds = append(kinds, MapPaintMask)
	}
	if m.RustMask != nil {
		kinds = append(kinds, MapRustMask)
	}
	return kinds
}

// Plane returns the raw float plane for kind and its channel count.
func (m *Maps) Plane(kind MapKind) ([]float64, int, error) {
	var (
		plane    []float64
		channels = 1
	)
	switch kind {
	case MapDiffuse:
		plane, channels = m.Diffuse, 4
	case MapNormal:
		plane, channels = m.Normal, 3
	case MapRoughness:
		plane = m.Roughness
	case MapMetalness:
		plane = m.Metalness
	case MapPaintMask:
		plane = m.PaintMask
	case MapRustMask:
		plane = m.RustMask
	default:
		return nil, 0, fmt.Errorf("unknown map kind %q", kind)
	}
	if plane == nil {
		return nil, 0, fmt.Errorf("map %s was not baked", kind)
	}
	return plane, channels, nil
}

// Image converts one map to an image. Colour maps become NRGBA (NRGBA64 at
// 16 bit), scalar maps Gray (Gray16). Normals are stored as n*0.5+0.5.
func (m *Maps) Image(kind MapKind, depth Depth) (image.Image, error) {
	if depth != Depth8 && depth != Depth16 {
		return nil, fmt.Errorf("unsupported bit depth %d", depth)
	}
	plane, channels, err := m.Plane(kind)
	if err != nil {
		return nil, err
	}

	rect := image.Rect(0, 0, m.Width, m.Height)
	if channels == 1 {
		return m.grayImage(rect, plane, depth), nil
	}

	var rgba func(i int) [4]float64
	if kind == MapNormal {
		rgba = func(i int) [4]float64 {
			n := plane[i*3 : i*3+3]
			return [4]float64{n[0]*0.5 + 0.5, n[1]*0.5 + 0.5, n[2]*0.5 + 0.5, 1}
		}
	} else {
		rgba = func(i int) [4]float64 {
			d := plane[i*4 : i*4+4]
			return [4]float64{d[0], d[1], d[2], d[3]}
		}
	}

	if depth == Depth16 {
		img := image.NewNRGBA64(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				c := rgba(m.idx(x, y))
				img.SetNRGBA64(x, y, color.NRGBA64{R: to16(c[0]), G: to16(c[1]), B: to16(c[2]), A: to16(c[3])})
			}
		}
		return img, nil
	}

	img := image.NewNRGBA(rect)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			c := rgba(m.idx(x, y))
			img.SetNRGBA(x, y, color.NRGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: to8(c[3])})
		}
	}
	return img, nil
}

func (m *Maps) grayImage(rect image.Rectangle, plane []float64, depth Depth) image.Image {
	if depth == Depth16 {
		img := image.NewGray16(rect)
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				img.SetGray16(x, y, color.Gray16{Y: to16(plane[m.idx(x, y)])})
			}
		}
		return img
	}

	img := image.NewGray(rect)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: to8(plane[m.idx(x, y)])})
		}
	}
	return img
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

func to8(x float64) uint8 { return uint8(math.Round(clamp01(x) * 255)) }

func to16(x float64) uint16 { return uint16(math.Round(clamp01(x) * 65535)) }
