// Package mask turns scalar noise fields into 0..1 blend weights.
package mask

import (
	"errors"
	"fmt"
	"math"
)

// ErrWidth is returned for a ramp whose transition width is not positive.
var ErrWidth = errors.New("mask transition width must be positive")

// Ramp is a linear step of half-width Width centred on Threshold.
type Ramp struct {
	Threshold float64
	Width     float64
}

// Validate rejects ramps that would divide by zero or propagate NaN.
func (r Ramp) Validate() error {
	if math.IsNaN(r.Threshold) || math.IsInf(r.Threshold, 0) {
		return fmt.Errorf("mask threshold must be finite, got %g", r.Threshold)
	}
	if math.IsNaN(r.Width) || r.Width <= 0 || math.IsInf(r.Width, 0) {
		return fmt.Errorf("%w (got %g)", ErrWidth, r.Width)
	}
	return nil
}

// At returns the blend weight for v.
func (r Ramp) At(v float64) float64 {
	return Mask(v, r.Threshold, r.Width)
}

// Mask returns 1 above threshold+width, 0 below threshold-width and a linear
// ramp in between. width must be positive; see Ramp.Validate.
func Mask(value, threshold, width float64) float64 {
	if value > threshold+width {
		return 1
	}
	if value < threshold-width {
		return 0
	}
	// min guards the last ulp at the top of the ramp.
	return math.Min(1, (value-(threshold-width))/(2*width))
}
