package bake

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/protex/internal/surface"
)

func bakePlane(t *testing.T, size int) *Maps {
	t.Helper()
	maps, err := Bake(context.Background(), Options{Size: size, Surface: surface.Plane{Size: 1}, Shader: uvShader{}})
	require.NoError(t, err)
	return maps
}

func TestWriteMaps_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	maps := bakePlane(t, 8)

	result, err := WriteMaps(dir, "steel", maps, WriteOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Written, 4)
	assert.Empty(t, result.Skipped)
	assert.FileExists(t, filepath.Join(dir, "steel_diffuse.png"))
	assert.FileExists(t, filepath.Join(dir, "steel_metalness.png"))

	result, err = WriteMaps(dir, "steel", maps, WriteOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Written)
	assert.Len(t, result.Skipped, 4)

	result, err = WriteMaps(dir, "steel", maps, WriteOptions{Overwrite: true, Kinds: []MapKind{MapNormal}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "steel_normal.png")}, result.Written)
}

func TestWriteMaps_MipmapsAndTIFF(t *testing.T) {
	dir := t.TempDir()
	maps := bakePlane(t, 16)

	result, err := WriteMaps(dir, "plate", maps, WriteOptions{
		Encode:  EncodeOptions{Format: FormatTIFF},
		Depth:   Depth16,
		Kinds:   []MapKind{MapRoughness},
		Mipmaps: true,
		MinMip:  4,
	})
	require.NoError(t, err)

	// 16 -> 8 -> 4
	assert.Equal(t, []string{
		filepath.Join(dir, "plate_roughness.tiff"),
		filepath.Join(dir, "plate_roughness_mip1.tiff"),
		filepath.Join(dir, "plate_roughness_mip2.tiff"),
	}, result.Written)

	img, err := LoadMap(result.Written[2])
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	_, ok := img.(*image.Gray16)
	assert.True(t, ok, "mip level decoded as %T", img)
}

func TestEncode_PNGRoundTrip(t *testing.T) {
	maps := bakePlane(t, 4)
	img, err := maps.Image(MapDiffuse, Depth8)
	require.NoError(t, err)

	for _, c := range []Compression{CompressionDefault, CompressionSpeed, CompressionBest, CompressionNone} {
		data, err := EncodeBytes(img, EncodeOptions{Format: FormatPNG, Compression: c})
		require.NoError(t, err, c)

		decoded, format, err := Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "png", format)
		assert.Equal(t, img.Bounds(), decoded.Bounds())
		r1, g1, b1, a1 := img.At(3, 1).RGBA()
		r2, g2, b2, a2 := decoded.At(3, 1).RGBA()
		assert.Equal(t, [4]uint32{r1, g1, b1, a1}, [4]uint32{r2, g2, b2, a2})
	}
}

func TestMipmaps_KeepsGray(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}

	chain := Mipmaps(src, 1)
	require.Len(t, chain, 2) // 4x2, 2x1
	for _, mip := range chain {
		g, ok := mip.(*image.Gray)
		require.True(t, ok)
		assert.Equal(t, uint8(200), g.GrayAt(0, 0).Y)
	}
	assert.Empty(t, Mipmaps(src, 8))
}

func TestParseFormatAndCompression(t *testing.T) {
	f, err := ParseFormat("TIF")
	require.NoError(t, err)
	assert.Equal(t, FormatTIFF, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, f)

	_, err = ParseFormat("jpeg")
	assert.Error(t, err)

	c, err := ParseCompression("best")
	require.NoError(t, err)
	assert.Equal(t, CompressionBest, c)

	_, err = ParseCompression("ultra")
	assert.Error(t, err)
}

func TestLoadMap_Missing(t *testing.T) {
	_, err := LoadMap(filepath.Join(t.TempDir(), "nope.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteMaps_SoftenMasks(t *testing.T) {
	dir := t.TempDir()
	maps := newMaps(4, 4, true)
	for y := 0; y < 4; y++ {
		for x := 0; x < 2; x++ {
			maps.PaintMask[maps.idx(x, y)] = 1
		}
	}

	_, err := WriteMaps(dir, "edge", maps, WriteOptions{Kinds: []MapKind{MapPaintMask}, SoftenMasks: 1})
	require.NoError(t, err)

	img, err := LoadMap(filepath.Join(dir, "edge_paintmask.png"))
	require.NoError(t, err)
	gray, ok := img.(*image.Gray)
	require.True(t, ok, "mask decoded as %T", img)
	assert.Less(t, gray.GrayAt(1, 1).Y, uint8(255))
	assert.Greater(t, gray.GrayAt(2, 1).Y, uint8(0))
}
