package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/protex/internal/bake"
	"github.com/MeKo-Tech/protex/internal/noise"
	"github.com/MeKo-Tech/protex/internal/preset"
	"github.com/MeKo-Tech/protex/internal/surface"
	"github.com/MeKo-Tech/protex/internal/texdb"
	"github.com/MeKo-Tech/protex/internal/worker"
)

// MaterialSource hands out the current material library. Each call returns
// an immutable snapshot; a reload swaps the snapshot as a whole.
type MaterialSource interface {
	Library() *preset.Library
}

// StaticSource is a MaterialSource that never changes.
type StaticSource struct {
	Lib *preset.Library
}

// Library implements MaterialSource.
func (s StaticSource) Library() *preset.Library { return s.Lib }

// MapWriter stores encoded maps instead of writing files.
type MapWriter interface {
	WriteMap(key texdb.MapKey, data []byte) error
	PutMaterial(name, fingerprint, params string) error
}

// Config configures a Generator.
type Config struct {
	Size        int
	Backend     noise.Backend
	Workers     int // goroutines per bake
	KeepMasks   bool
	SoftenMasks float32

	Encode  bake.EncodeOptions
	Depth   bake.Depth
	Mipmaps bool
	MinMip  int

	// OutputDir receives {material}/{surface}_{kind}.{ext}. With
	// Fingerprinted the material directory gets a {fingerprint} subdirectory
	// so changed parameters never hit stale files.
	OutputDir     string
	Fingerprinted bool

	// DB, when set, receives the maps instead of OutputDir.
	DB MapWriter
}

// Generator bakes one material onto one surface and stores the maps.
type Generator struct {
	src    MaterialSource
	cfg    Config
	logger *slog.Logger
}

// NewGenerator validates cfg and prepares a generator.
func NewGenerator(src MaterialSource, cfg Config, logger *slog.Logger) (*Generator, error) {
	if src == nil || src.Library() == nil {
		return nil, fmt.Errorf("generator needs a material library")
	}
	if cfg.Size <= 0 || cfg.Size > bake.MaxSize {
		return nil, fmt.Errorf("map size must be within [1,%d], got %d", bake.MaxSize, cfg.Size)
	}
	if cfg.DB == nil && cfg.OutputDir == "" {
		return nil, fmt.Errorf("generator needs an output directory or a database")
	}
	if _, err := noise.ParseBackend(string(cfg.Backend)); err != nil {
		return nil, err
	}
	if cfg.Encode.Format == "" {
		cfg.Encode.Format = bake.FormatPNG
	}
	if cfg.Depth == 0 {
		cfg.Depth = bake.Depth8
	}

	return &Generator{src: src, cfg: cfg, logger: logger}, nil
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// Dir returns the directory the maps of task end up in.
func (g *Generator) Dir(task worker.Task) (string, error) {
	return g.dir(g.src.Library(), task)
}

func (g *Generator) dir(lib *preset.Library, task worker.Task) (string, error) {
	dir := filepath.Join(g.cfg.OutputDir, task.Material)
	if !g.cfg.Fingerprinted {
		return dir, nil
	}
	fp, err := lib.Fingerprint(task.Material)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fp), nil
}

// MapPath returns the file of one map kind of task.
func (g *Generator) MapPath(task worker.Task, kind bake.MapKind) (string, error) {
	dir, err := g.Dir(task)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, bake.FileName(task.Surface, kind, 0, g.cfg.Encode.Format)), nil
}

// Generate bakes task and stores its maps. It returns the output directory,
// or "texdb:{material}/{surface}" when writing to a database. Existing
// folder outputs are kept unless task.Force is set.
func (g *Generator) Generate(ctx context.Context, task worker.Task) (string, error) {
	lib := g.src.Library()

	surf, err := surface.ByName(task.Surface)
	if err != nil {
		return "", err
	}
	shader, p, err := lib.Shader(task.Material, g.cfg.Backend)
	if err != nil {
		return "", err
	}

	var dir string
	if g.cfg.DB == nil {
		dir, err = g.dir(lib, task)
		if err != nil {
			return "", err
		}
		diffuse := filepath.Join(dir, bake.FileName(task.Surface, bake.MapDiffuse, 0, g.cfg.Encode.Format))
		if !task.Force {
			if _, err := os.Stat(diffuse); err == nil {
				g.log().Info("Maps already exist; skipping", "task", task.String(), "dir", dir)
				return dir, nil
			}
		}
	}

	keepMasks := g.cfg.KeepMasks
	if _, ok := shader.(bake.LayerShader); !ok {
		keepMasks = false
	}

	g.log().Info("Baking maps", "task", task.String(), "kind", p.Kind, "size", g.cfg.Size, "backend", g.cfg.Backend)
	maps, err := bake.Bake(ctx, bake.Options{
		Size:      g.cfg.Size,
		Surface:   surf,
		Shader:    shader,
		Workers:   g.cfg.Workers,
		KeepMasks: keepMasks,
		Logger:    g.logger,
	})
	if err != nil {
		return "", fmt.Errorf("failed to bake %s: %w", task, err)
	}

	for _, kind := range []bake.MapKind{bake.MapPaintMask, bake.MapRustMask} {
		if cov, err := maps.Coverage(kind); err == nil {
			g.log().Debug("Mask coverage", "task", task.String(), "mask", kind, "coverage", cov)
		}
	}

	if g.cfg.DB != nil {
		if err := g.store(lib, p, task, maps); err != nil {
			return "", err
		}
		return fmt.Sprintf("texdb:%s", task), nil
	}

	result, err := bake.WriteMaps(dir, task.Surface, maps, bake.WriteOptions{
		Encode:      g.cfg.Encode,
		Depth:       g.cfg.Depth,
		Mipmaps:     g.cfg.Mipmaps,
		MinMip:      g.cfg.MinMip,
		Overwrite:   true,
		SoftenMasks: g.cfg.SoftenMasks,
	})
	if err != nil {
		return "", fmt.Errorf("failed to write maps for %s: %w", task, err)
	}
	g.log().Debug("Wrote maps", "task", task.String(), "files", len(result.Written))
	return dir, nil
}

// store encodes every map level into the database and records the material.
func (g *Generator) store(lib *preset.Library, p preset.Preset, task worker.Task, maps *bake.Maps) error {
	for _, kind := range maps.Kinds() {
		img, err := maps.Image(kind, g.cfg.Depth)
		if err != nil {
			return err
		}

		images := []image.Image{img}
		if g.cfg.Mipmaps {
			images = append(images, bake.Mipmaps(img, g.cfg.MinMip)...)
		}

		for level, im := range images {
			var buf bytes.Buffer
			if err := bake.Encode(&buf, im, g.cfg.Encode); err != nil {
				return fmt.Errorf("failed to encode %s %s: %w", task, kind, err)
			}
			key := texdb.MapKey{Material: task.Material, Surface: task.Surface, Kind: string(kind), Level: level}
			if err := g.cfg.DB.WriteMap(key, buf.Bytes()); err != nil {
				return err
			}
		}
	}

	fp, err := lib.Fingerprint(task.Material)
	if err != nil {
		return err
	}
	params, err := json.Marshal(struct {
		Kind   string
		Params any
	}{string(p.Kind), p.Params})
	if err != nil {
		return fmt.Errorf("failed to serialize material %s: %w", task.Material, err)
	}
	return g.cfg.DB.PutMaterial(task.Material, fp, string(params))
}

func (g *Generator) log() *slog.Logger {
	if g.logger != nil {
		return g.logger
	}
	return slog.Default()
}
