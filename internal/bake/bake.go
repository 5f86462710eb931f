package bake

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/MeKo-Tech/protex/internal/material"
	"github.com/MeKo-Tech/protex/internal/surface"
)

// MaxSize bounds the edge length of a baked map.
const MaxSize = 8192

// LayerShader is implemented by shaders that can report their layer masks.
type LayerShader interface {
	ShadeLayers(position, normal mgl64.Vec3) material.Layers
}

// Options configures one bake.
type Options struct {
	Size      int
	Surface   surface.Surface
	Shader    material.Shader
	Workers   int  // defaults to runtime.NumCPU()
	KeepMasks bool // also bake paint and rust masks; needs a LayerShader
	Logger    *slog.Logger
}

func (o Options) validate() error {
	if o.Size <= 0 || o.Size > MaxSize {
		return fmt.Errorf("bake size must be within [1,%d], got %d", MaxSize, o.Size)
	}
	if o.Surface == nil {
		return fmt.Errorf("bake needs a surface")
	}
	if o.Shader == nil {
		return fmt.Errorf("bake needs a shader")
	}
	if o.KeepMasks {
		if _, ok := o.Shader.(LayerShader); !ok {
			return fmt.Errorf("shader %T has no layer masks", o.Shader)
		}
	}
	return nil
}

// Bake shades one sample per texel centre of a Size x Size map over the
// surface. Rows are distributed over Workers goroutines. A cancelled context
// stops the bake between rows and returns ctx.Err().
func Bake(ctx context.Context, opts Options) (*Maps, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > opts.Size {
		workers = opts.Size
	}

	start := time.Now()
	maps := newMaps(opts.Size, opts.Size, opts.KeepMasks)
	layered, _ := opts.Shader.(LayerShader)

	rows := make(chan int, opts.Size)
	for y := 0; y < opts.Size; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				if ctx.Err() != nil {
					return
				}
				bakeRow(maps, y, opts, layered)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger(opts.Logger).Debug("Baked maps",
		"surface", opts.Surface.Name(),
		"size", opts.Size,
		"workers", workers,
		"elapsed", time.Since(start))
	return maps, nil
}

// bakeRow writes one row. Rows never overlap, so workers need no locking.
func bakeRow(m *Maps, y int, opts Options, layered LayerShader) {
	v := (float64(y) + 0.5) / float64(m.Height)
	for x := 0; x < m.Width; x++ {
		u := (float64(x) + 0.5) / float64(m.Width)
		pos, n := opts.Surface.At(u, v)
		i := m.idx(x, y)

		var s material.ShadingResult
		if opts.KeepMasks {
			l := layered.ShadeLayers(pos, n)
			s = l.Result
			m.PaintMask[i] = l.PaintMask
			m.RustMask[i] = l.RustMask
		} else {
			s = opts.Shader.Shade(pos, n)
		}

		copy(m.Diffuse[i*4:i*4+4], s.Diffuse[:])
		copy(m.Normal[i*3:i*3+3], s.Normal[:])
		m.Roughness[i] = s.Roughness
		m.Metalness[i] = s.Metalness
	}
}

func logger(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
