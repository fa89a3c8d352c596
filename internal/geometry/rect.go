package geometry

import (
	"image"
	"math"
)

// Rect is an axis-aligned rectangle. For crop regions it is expressed in
// pixels of the rotated bounding box of the source image.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return !(r.Width > 0) || !(r.Height > 0)
}

// Center returns the midpoint of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Contains reports whether o lies entirely inside r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width &&
		o.Y+o.Height <= r.Y+r.Height
}

// Within reports whether r lies inside a box of the given size anchored at
// the origin.
func (r Rect) Within(s Size) bool {
	return Rect{Width: s.Width, Height: s.Height}.Contains(r)
}

// Clamp returns the part of r that overlaps a box of the given size anchored
// at the origin. The result may be empty.
func (r Rect) Clamp(s Size) Rect {
	x0 := math.Max(r.X, 0)
	y0 := math.Max(r.Y, 0)
	x1 := math.Min(r.X+r.Width, s.Width)
	y1 := math.Min(r.Y+r.Height, s.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{X: x0, Y: y0}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// ImageRect rounds r to whole pixels.
func (r Rect) ImageRect() image.Rectangle {
	x := int(math.Round(r.X))
	y := int(math.Round(r.Y))
	return image.Rect(x, y, x+int(math.Round(r.Width)), y+int(math.Round(r.Height)))
}
