// Package geometry holds the pure math behind the avatar editor: degree
// conversion, the bounding box of a rotated rectangle, crop rectangles and
// the 2D affine transform used to place a source image on a canvas.
package geometry

import "math"

// Size is a width/height pair in pixels. Values may be fractional.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a 2D offset in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ToRadians converts degrees to radians.
func ToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(degrees float64) float64 {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	if d == 360 {
		return 0
	}
	return d
}

// SinCos returns sin and cos of the angle, exact for multiples of 90 degrees.
func SinCos(degrees float64) (sin, cos float64) {
	switch NormalizeDegrees(degrees) {
	case 0:
		return 0, 1
	case 90:
		return 1, 0
	case 180:
		return 0, -1
	case 270:
		return -1, 0
	}
	return math.Sincos(ToRadians(degrees))
}

// IsRightAngle reports whether the rotation is a multiple of 90 degrees.
func IsRightAngle(degrees float64) bool {
	return math.Mod(NormalizeDegrees(degrees), 90) == 0
}

// RotatedBoundingBox returns the axis-aligned bounding box of a width x height
// rectangle rotated by the given angle about its centre.
func RotatedBoundingBox(width, height, rotation float64) Size {
	sin, cos := SinCos(rotation)
	sin, cos = math.Abs(sin), math.Abs(cos)

	return Size{
		Width:  cos*width + sin*height,
		Height: sin*width + cos*height,
	}
}
