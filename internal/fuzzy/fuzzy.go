// Package fuzzy implements the two piecewise-linear membership functions
// used throughout the flood pipeline, both as scalar functions and as
// pixelwise raster expressions.
//
//	S(x) = 0                  x < lo
//	       (x-lo)/(hi-lo)     lo <= x <= hi
//	       1                  x > hi
//	Z(x) = 1 - S(x)
package fuzzy

import (
	"math"

	"github.com/couchcryptid/flood-detection-service/internal/domain"
	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// Epsilon is the minimum ramp width Widen enforces.
const Epsilon = 1e-6

// Breakpoints are the (lo, hi) pair of a membership ramp, lo < hi.
type Breakpoints struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// NewBreakpoints rejects collapsed or inverted ramps, which would divide by
// zero when evaluated.
func NewBreakpoints(lo, hi float64) (Breakpoints, error) {
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return Breakpoints{}, domain.Degenerate("fuzzy breakpoints", "must be finite, got (%v, %v)", lo, hi)
	}
	if !(lo < hi) {
		return Breakpoints{}, domain.Degenerate("fuzzy breakpoints", "lo must be below hi, got (%v, %v)", lo, hi)
	}
	return Breakpoints{Lo: lo, Hi: hi}, nil
}

// MustBreakpoints is NewBreakpoints for compile-time constants.
func MustBreakpoints(lo, hi float64) Breakpoints {
	bp, err := NewBreakpoints(lo, hi)
	if err != nil {
		panic(err)
	}
	return bp
}

// Widen builds breakpoints from data-derived values inside [0, 1]. A ramp
// narrower than Epsilon is widened upward, or downward when lo already sits
// at the top of the range.
func Widen(lo, hi float64) Breakpoints {
	lo = clamp01(lo)
	hi = clamp01(hi)
	if hi < lo {
		lo, hi = hi, lo
	}
	if hi-lo >= Epsilon {
		return Breakpoints{Lo: lo, Hi: hi}
	}
	if lo+Epsilon <= 1 {
		return Breakpoints{Lo: lo, Hi: lo + Epsilon}
	}
	return Breakpoints{Lo: 1 - Epsilon, Hi: 1}
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// S is the rising membership of x.
func S(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return 0
	case x > hi:
		return 1
	default:
		return (x - lo) / (hi - lo)
	}
}

// Z is the falling membership of x.
func Z(x, lo, hi float64) float64 {
	return 1 - S(x, lo, hi)
}

// SImage applies S pixelwise. Masked input pixels stay masked.
func SImage(img raster.Image, bp Breakpoints) raster.Image {
	lo := raster.Constant(bp.Lo)
	hi := raster.Constant(bp.Hi)

	inRamp := img.Gte(lo).And(img.Lte(hi))
	ramp := inRamp.Multiply(img.Subtract(lo).Divide(raster.Constant(bp.Hi - bp.Lo)))

	return img.Gt(hi).Add(ramp)
}

// ZImage applies Z pixelwise. Masked input pixels stay masked.
func ZImage(img raster.Image, bp Breakpoints) raster.Image {
	lo := raster.Constant(bp.Lo)
	hi := raster.Constant(bp.Hi)

	inRamp := img.Gte(lo).And(img.Lte(hi))
	ramp := inRamp.Multiply(raster.Constant(1).Subtract(img.Subtract(lo).Divide(raster.Constant(bp.Hi - bp.Lo))))

	return img.Lt(lo).Add(ramp)
}
