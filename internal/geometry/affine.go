package geometry

// Affine is a 2x3 row-major matrix mapping (x, y) to
// (A[0]*x + A[1]*y + A[2], A[3]*x + A[4]*y + A[5]).
//
// Translate, Rotate and Scale post-multiply, so a chain reads in the same
// order as canvas transform calls: the last operation is applied to a point
// first.
type Affine [6]float64

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{1, 0, 0, 0, 1, 0}
}

// Mul returns m·n, the transform that applies n and then m.
func (m Affine) Mul(n Affine) Affine {
	return Affine{
		m[0]*n[0] + m[1]*n[3],
		m[0]*n[1] + m[1]*n[4],
		m[0]*n[2] + m[1]*n[5] + m[2],
		m[3]*n[0] + m[4]*n[3],
		m[3]*n[1] + m[4]*n[4],
		m[3]*n[2] + m[4]*n[5] + m[5],
	}
}

func (m Affine) Translate(tx, ty float64) Affine {
	return m.Mul(Affine{1, 0, tx, 0, 1, ty})
}

// Rotate rotates clockwise in a y-down coordinate system.
func (m Affine) Rotate(degrees float64) Affine {
	sin, cos := SinCos(degrees)
	return m.Mul(Affine{cos, -sin, 0, sin, cos, 0})
}

func (m Affine) Scale(sx, sy float64) Affine {
	return m.Mul(Affine{sx, 0, 0, 0, sy, 0})
}

// Apply maps p through the transform.
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// Invert returns the inverse transform. ok is false for singular matrices.
func (m Affine) Invert() (inv Affine, ok bool) {
	det := m[0]*m[4] - m[1]*m[3]
	if det == 0 {
		return Affine{}, false
	}
	a := m[4] / det
	b := -m[1] / det
	d := -m[3] / det
	e := m[0] / det
	return Affine{
		a, b, -(a*m[2] + b*m[5]),
		d, e, -(d*m[2] + e*m[5]),
	}, true
}

// PlaceRotated builds the transform that draws a width x height source,
// rotated and optionally mirrored about its centre, so that it is centred on
// a canvas of the given bounding box size.
func PlaceRotated(width, height float64, box Size, rotation float64, flipH, flipV bool) Affine {
	sx, sy := 1.0, 1.0
	if flipH {
		sx = -1
	}
	if flipV {
		sy = -1
	}
	return Identity().
		Translate(box.Width/2, box.Height/2).
		Rotate(rotation).
		Scale(sx, sy).
		Translate(-width/2, -height/2)
}
