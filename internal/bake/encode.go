package bake

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/disintegration/gift"
	"golang.org/x/image/tiff"
)

// Format is an image container for baked maps.
type Format string

const (
	FormatPNG  Format = "png"
	FormatTIFF Format = "tiff"
)

// ParseFormat resolves a format name. The empty string selects PNG.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "", "png":
		return FormatPNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return "", fmt.Errorf("unknown image format %q", name)
	}
}

// Ext returns the file extension without dot.
func (f Format) Ext() string { return string(f) }

// Compression selects the encoder effort.
type Compression string

const (
	CompressionDefault Compression = "default"
	CompressionSpeed   Compression = "speed"
	CompressionBest    Compression = "best"
	CompressionNone    Compression = "none"
)

// ParseCompression resolves a compression name. The empty string selects CompressionDefault.
func ParseCompression(name string) (Compression, error) {
	switch c := Compression(strings.ToLower(name)); c {
	case "":
		return CompressionDefault, nil
	case CompressionDefault, CompressionSpeed, CompressionBest, CompressionNone:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q", name)
	}
}

// EncodeOptions configures Encode.
type EncodeOptions struct {
	Format      Format
	Compression Compression
}

// Encode writes img to w.
func Encode(w io.Writer, img image.Image, opts EncodeOptions) error {
	switch opts.Format {
	case "", FormatPNG:
		enc := png.Encoder{CompressionLevel: pngLevel(opts.Compression)}
		return enc.Encode(w, img)
	case FormatTIFF:
		tiffOpts := &tiff.Options{Compression: tiff.Deflate, Predictor: true}
		if opts.Compression == CompressionNone {
			tiffOpts = &tiff.Options{Compression: tiff.Uncompressed}
		}
		return tiff.Encode(w, img, tiffOpts)
	default:
		return fmt.Errorf("unknown image format %q", opts.Format)
	}
}

// EncodeBytes encodes img into memory.
func EncodeBytes(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pngLevel(c Compression) png.CompressionLevel {
	switch c {
	case CompressionSpeed:
		return png.BestSpeed
	case CompressionBest:
		return png.BestCompression
	case CompressionNone:
		return png.NoCompression
	default:
		return png.DefaultCompression
	}
}

// Decode reads a PNG or TIFF map.
func Decode(r io.Reader) (image.Image, string, error) {
	return image.Decode(r)
}

// LoadMap opens and decodes the map at path.
func LoadMap(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open map %s: %w", path, err)
	}
	defer file.Close()

	img, _, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode map %s: %w", path, err)
	}
	return img, nil
}

// Mipmaps returns the chain of box filtered downsamples of img, halving the
// edge length each level until it would drop below minSize. The source
// itself is not part of the chain. The pixel format of img is kept for the
// gray and 16 bit formats; everything else becomes NRGBA.
func Mipmaps(img image.Image, minSize int) []image.Image {
	if minSize < 1 {
		minSize = 1
	}

	var chain []image.Image
	src := img
	for {
		b := src.Bounds()
		w, h := b.Dx()/2, b.Dy()/2
		if w < minSize || h < minSize {
			return chain
		}

		g := gift.New(gift.Resize(w, h, gift.BoxResampling))
		dst := newLike(src, g.Bounds(b))
		g.Draw(dst, src)

		chain = append(chain, dst)
		src = dst
	}
}

func newLike(src image.Image, r image.Rectangle) draw.Image {
	switch src.(type) {
	case *image.Gray:
		return image.NewGray(r)
	case *image.Gray16:
		return image.NewGray16(r)
	case *image.NRGBA64, *image.RGBA64:
		return image.NewNRGBA64(r)
	default:
		return image.NewNRGBA(r)
	}
}
