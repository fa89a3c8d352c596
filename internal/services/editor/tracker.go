package editor

import (
	"math"

	"github.com/phambaophuc/avatar-studio/internal/geometry"
)

// CropTracker derives the crop rectangle from the current transform, the way
// the crop widget does while the user drags and zooms.
type CropTracker interface {
	Track(box geometry.Size, t TransformState) geometry.Rect
}

// SquareCropTracker keeps a fixed-aspect crop window centred on the bounding
// box plus pan. At zoom 1 the window is the largest one that fits; higher
// zoom shrinks it proportionally. The result is whole pixels and always lies
// inside the box.
type SquareCropTracker struct {
	// Aspect is width/height. Zero means square.
	Aspect float64
}

func (s SquareCropTracker) Track(box geometry.Size, t TransformState) geometry.Rect {
	aspect := s.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	bw, bh := math.Floor(box.Width), math.Floor(box.Height)
	if bw < 1 || bh < 1 {
		return geometry.Rect{}
	}

	w := bw
	h := w / aspect
	if h > bh {
		h = bh
		w = h * aspect
	}

	zoom := t.Zoom
	if zoom < MinZoom || math.IsNaN(zoom) {
		zoom = MinZoom
	}
	w = math.Min(math.Max(1, math.Floor(w/zoom)), bw)
	h = math.Min(math.Max(1, math.Floor(h/zoom)), bh)

	cx := box.Width/2 + t.Pan.X
	cy := box.Height/2 + t.Pan.Y

	return geometry.Rect{
		X:      math.Round(clamp(cx-w/2, 0, bw-w)),
		Y:      math.Round(clamp(cy-h/2, 0, bh-h)),
		Width:  w,
		Height: h,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}
