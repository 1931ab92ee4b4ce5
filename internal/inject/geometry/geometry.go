// Package geometry implements the cursor model's screen-space clamp from
// §3 using golang/geo's 2D primitives, repurposed here from their usual
// latitude/longitude role to plain screen pixels -- r2.Rect is exactly the
// "axis-aligned rectangle with a ContainsPoint/ClampPoint shape" this needs,
// and pulling it in avoids hand-rolling the four comparisons ourselves.
package geometry

import "github.com/golang/geo/r2"

// Screen is the clamping rectangle [0, width] x [0, height] for one
// display, in pixel units (held as float64 to match r2's vector type; all
// callers round back to int16/int32 at the wire/device boundary).
type Screen struct {
	rect r2.Rect
}

// NewScreen builds the clamp rectangle for a width x height display.
func NewScreen(width, height int32) Screen {
	return Screen{
		rect: r2.RectFromPoints(
			r2.Point{X: 0, Y: 0},
			r2.Point{X: float64(width), Y: float64(height)},
		),
	}
}

// Clamp restricts (x, y) to [0, screen_w] x [0, screen_h], per §4.5's
// "clamp restricts to [0, screen_w] x [0, screen_h]".
func (s Screen) Clamp(x, y int32) (int32, int32) {
	p := s.rect.ClampPoint(r2.Point{X: float64(x), Y: float64(y)})

	return int32(p.X), int32(p.Y)
}

// Contains reports whether (x, y) is within the screen rect without
// clamping.
func (s Screen) Contains(x, y int32) bool {
	return s.rect.ContainsPoint(r2.Point{X: float64(x), Y: float64(y)})
}

// Width and Height report the rectangle's pixel dimensions.
func (s Screen) Width() int32  { return int32(s.rect.X.Length()) }
func (s Screen) Height() int32 { return int32(s.rect.Y.Length()) }
