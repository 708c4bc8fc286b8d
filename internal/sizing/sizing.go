// Package sizing buckets requested display sizes into a bounded set of
// cache keys. Layout code produces continuous sizes; storing one variant
// per exact pixel size would grow the cache without bound, so sizes are
// quantized to multiples of 100 device pixels.
package sizing

import (
	"math"
	"strconv"
)

// FullName is the size name of the unconstrained original image.
const FullName = "full"

// Size is a pair of non-negative dimensions in device pixels, or the
// sentinel for the unconstrained original resolution. The zero value is
// the full sentinel.
type Size struct {
	Width  float64
	Height float64
	full   bool
}

// Full returns the sentinel size meaning original resolution.
func Full() Size {
	return Size{full: true}
}

// NewSize returns a constrained size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// IsFull reports whether s is the unconstrained sentinel.
func (s Size) IsFull() bool {
	return s.full
}

// Normalize maps a requested display size and pixel density to its cache
// bucket. Each dimension is scaled by the density and rounded to the
// nearest multiple of 100. A nil size or non-positive density yields the
// full sentinel. Normalize is pure and deterministic: two requests that
// land in the same bucket must share stored bytes.
func Normalize(size *Size, density float64) Size {
	if size == nil || size.full || density <= 0 {
		return Full()
	}
	return Size{
		Width:  bucket(size.Width * density),
		Height: bucket(size.Height * density),
	}
}

func bucket(v float64) float64 {
	return math.Round(v/100.0) * 100.0
}

// Name encodes the size as a stable string usable both as a file name and
// as an equality surrogate: "full" for the sentinel, "WxH" otherwise.
func (s Size) Name() string {
	if s.full {
		return FullName
	}
	return formatDim(s.Width) + "x" + formatDim(s.Height)
}

func formatDim(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
