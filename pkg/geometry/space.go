// Package geometry provides the pure coordinate-space conversions for the
// corkboard surface. Item positions are stored on a fixed abstract integer
// grid that is independent of any client's screen size; clients render the
// grid inside a padded frame and feed pointer movement back as pixel deltas.
//
// All functions are stateless and safe for concurrent use.
package geometry

import (
	"errors"
	"math"
)

// Abstract coordinate grid dimensions. Positions are stored as integers in
// [0, CoordMax] on both axes, with the board centre at CoordMax/2. The
// rendered frame adds Padding on every side, so the full rendered span is
// CoordMax + 2*Padding pixels-worth of abstract units.
const (
	CoordMax = 520
	Padding  = 40
	Span     = CoordMax + 2*Padding
)

// ErrInvalidContainer indicates a container measurement of zero or negative
// size. Pointer deltas cannot be converted against such a measurement; an
// in-progress drag must be cancelled rather than applied against it.
var ErrInvalidContainer = errors.New("container dimensions must be positive")

// ToRenderFraction converts a stored abstract position to fractional render
// coordinates in [0,1] within the padded frame. The result is display-only
// and never authoritative.
func ToRenderFraction(x, y int) (fx, fy float64) {
	fx = (float64(x) + Padding) / Span
	fy = (float64(y) + Padding) / Span
	return fx, fy
}

// FromRenderFraction is the inverse of ToRenderFraction, recovering the
// abstract position from fractional render coordinates. Results are rounded
// to the nearest integer.
func FromRenderFraction(fx, fy float64) (x, y int) {
	x = int(math.Round(fx*Span - Padding))
	y = int(math.Round(fy*Span - Padding))
	return x, y
}

// PixelDeltaToAbstract converts a raw pointer-movement delta, measured in
// pixels inside a container of the given pixel dimensions, into an abstract
// coordinate delta. This conversion is mandatory before a drag delta touches
// stored coordinates: a pixel delta applied directly is wrong by a factor of
// Span/containerWidthPx.
func PixelDeltaToAbstract(dxPx, dyPx, containerWidthPx, containerHeightPx float64) (dxAbs, dyAbs float64, err error) {
	if containerWidthPx <= 0 || containerHeightPx <= 0 {
		return 0, 0, ErrInvalidContainer
	}
	dxAbs = (dxPx / containerWidthPx) * Span
	dyAbs = (dyPx / containerHeightPx) * Span
	return dxAbs, dyAbs, nil
}

// Clamp rounds v and bounds it to [0, CoordMax]. Applied on every commit,
// never during intermediate drag rendering.
func Clamp(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > CoordMax {
		return CoordMax
	}
	return r
}

// ClampInt bounds an integer position to [0, CoordMax].
func ClampInt(v int) int {
	if v < 0 {
		return 0
	}
	if v > CoordMax {
		return CoordMax
	}
	return v
}

// InBounds reports whether the position is inside the committed coordinate
// range on both axes.
func InBounds(x, y int) bool {
	return x >= 0 && x <= CoordMax && y >= 0 && y <= CoordMax
}
