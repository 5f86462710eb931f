package mask

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"
)

// ToGray converts a row-major plane of 0..1 mask weights into a grayscale image.
// White means the layer fully covers the texel.
func ToGray(values []float64, width, height int) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mask size must be positive, got %dx%d", width, height)
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("mask plane has %d values, want %d", len(values), width*height)
	}

	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := values[y*width+x]
			gray := uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
			img.SetGray(x, y, color.Gray{Y: gray})
		}
	}
	return img, nil
}

// Soften applies a Gaussian blur to a mask preview. A non-positive sigma
// returns an unmodified copy.
func Soften(img *image.Gray, sigma float32) *image.Gray {
	g := gift.New()
	if sigma > 0 {
		g.Add(gift.GaussianBlur(sigma))
	}
	dst := image.NewGray(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// Coverage returns the mean weight of a mask image in 0..1.
func Coverage(img *image.Gray) float64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(img.GrayAt(x, y).Y)
		}
	}
	return sum / (255 * float64(b.Dx()*b.Dy()))
}
