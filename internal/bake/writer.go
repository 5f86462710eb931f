package bake

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/protex/internal/mask"
)

// WriteOptions configures WriteMaps.
type WriteOptions struct {
	Encode    EncodeOptions
	Depth     Depth
	Kinds     []MapKind // nil writes every baked map
	Mipmaps   bool
	MinMip    int
	Overwrite bool
	// SoftenMasks blurs 8 bit paint and rust masks with this sigma.
	SoftenMasks float32
}

// WriteResult reports which files were written or skipped.
type WriteResult struct {
	Written []string
	Skipped []string
}

// FileName returns the file name of one map level. Level 0 is the full map.
func FileName(name string, kind MapKind, level int, format Format) string {
	if format == "" {
		format = FormatPNG
	}
	if level == 0 {
		return fmt.Sprintf("%s_%s.%s", name, kind, format.Ext())
	}
	return fmt.Sprintf("%s_%s_mip%d.%s", name, kind, level, format.Ext())
}

// WriteMaps encodes maps into dir as {name}_{kind}.{ext}, plus one
// {name}_{kind}_mip{n}.{ext} per level when mipmaps are requested. Existing
// files are kept unless Overwrite is set.
func WriteMaps(dir, name string, maps *Maps, opts WriteOptions) (WriteResult, error) {
	result := WriteResult{}
	if maps == nil {
		return result, fmt.Errorf("no maps to write")
	}
	if name == "" {
		return result, fmt.Errorf("map name must not be empty")
	}
	if opts.Depth == 0 {
		opts.Depth = Depth8
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create map dir: %w", err)
	}

	kinds := opts.Kinds
	if kinds == nil {
		kinds = maps.Kinds()
	}

	for _, kind := range kinds {
		path := filepath.Join(dir, FileName(name, kind, 0, opts.Encode.Format))
		if !opts.Overwrite {
			if _, err := os.Stat(path); err == nil {
				result.Skipped = append(result.Skipped, path)
				continue
			}
		}

		img, err := maps.Image(kind, opts.Depth)
		if err != nil {
			return result, err
		}
		if gray, ok := img.(*image.Gray); ok && kind.IsMask() && opts.SoftenMasks > 0 {
			img = mask.Soften(gray, opts.SoftenMasks)
		}
		if err := writeImage(path, img, opts.Encode); err != nil {
			return result, err
		}
		result.Written = append(result.Written, path)

		if !opts.Mipmaps {
			continue
		}
		for i, mip := range Mipmaps(img, opts.MinMip) {
			mipPath := filepath.Join(dir, FileName(name, kind, i+1, opts.Encode.Format))
			if err := writeImage(mipPath, mip, opts.Encode); err != nil {
				return result, err
			}
			result.Written = append(result.Written, mipPath)
		}
	}

	return result, nil
}

func writeImage(path string, img image.Image, opts EncodeOptions) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create map %s: %w", path, err)
	}
	defer file.Close()

	if err := Encode(file, img, opts); err != nil {
		return fmt.Errorf("failed to encode map %s: %w", path, err)
	}
	return nil
}
