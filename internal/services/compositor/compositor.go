// Package compositor renders an edited avatar: the source is rotated and
// mirrored onto a canvas the size of its rotated bounding box, the crop is
// copied onto a second canvas and the result is encoded as JPEG.
package compositor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/phambaophuc/avatar-studio/internal/geometry"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

const DefaultJPEGQuality = 90

var (
	ErrNoSource    = errors.New("no source image")
	ErrInvalidCrop = errors.New("invalid crop area")
	ErrEmptyOutput = errors.New("encoder produced no output")
)

// Options describe one export.
type Options struct {
	Rotation float64
	FlipH    bool
	FlipV    bool
	Crop     geometry.Rect
	FileName string
}

type Compositor struct {
	alloc   CanvasAllocator
	quality int
	logger  *zap.Logger
}

func NewCompositor(alloc CanvasAllocator, quality int, logger *zap.Logger) *Compositor {
	if alloc == nil {
		alloc = NewPoolAllocator(DefaultMaxCanvasPixels)
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compositor{alloc: alloc, quality: quality, logger: logger}
}

// Export renders src with the given transform and crop and returns the JPEG
// encoding. Canvases are released on every return path.
func (c *Compositor) Export(ctx context.Context, src image.Image, opts Options) (*models.OutputImage, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if opts.Crop.Empty() || math.IsNaN(opts.Crop.X) || math.IsNaN(opts.Crop.Y) {
		return nil, fmt.Errorf("%w: %+v", ErrInvalidCrop, opts.Crop)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rotated, err := c.drawRotated(src, opts)
	if err != nil {
		return nil, err
	}
	defer rotated.Release()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cropRect := opts.Crop.ImageRect()
	if cropRect.Empty() {
		return nil, fmt.Errorf("%w: %+v rounds to nothing", ErrInvalidCrop, opts.Crop)
	}

	cropped, err := c.alloc.Acquire(cropRect.Dx(), cropRect.Dy())
	if err != nil {
		return nil, fmt.Errorf("failed to allocate crop canvas: %w", err)
	}
	defer cropped.Release()

	// Areas of the crop outside the rotated canvas stay transparent.
	xdraw.Copy(cropped.NRGBA, image.Point{}, rotated.NRGBA, cropRect, xdraw.Src, nil)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, cropped.NRGBA, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if buf.Len() == 0 {
		return nil, ErrEmptyOutput
	}

	c.logger.Debug("Exported image",
		zap.String("file_name", opts.FileName),
		zap.Float64("rotation", opts.Rotation),
		zap.Int("width", cropRect.Dx()),
		zap.Int("height", cropRect.Dy()),
		zap.Int("bytes", buf.Len()),
	)

	return &models.OutputImage{
		Bytes:    buf.Bytes(),
		MIMEType: models.MIMETypeJPEG,
		FileName: opts.FileName,
		Width:    cropRect.Dx(),
		Height:   cropRect.Dy(),
	}, nil
}

// drawRotated draws the whole source, rotated and mirrored about its centre,
// onto a canvas sized to the rotated bounding box.
func (c *Compositor) drawRotated(src image.Image, opts Options) (*Canvas, error) {
	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	box := geometry.RotatedBoundingBox(w, h, opts.Rotation)

	canvas, err := c.alloc.Acquire(canvasSide(box.Width), canvasSide(box.Height))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate rotation canvas: %w", err)
	}

	m := geometry.PlaceRotated(w, h, box, opts.Rotation, opts.FlipH, opts.FlipV).
		Translate(-float64(b.Min.X), -float64(b.Min.Y))

	var interp xdraw.Transformer = xdraw.ApproxBiLinear
	if geometry.IsRightAngle(opts.Rotation) {
		interp = xdraw.NearestNeighbor
	}
	interp.Transform(canvas.NRGBA, f64.Aff3(m), src, b, xdraw.Src, nil)

	return canvas, nil
}

// canvasSide truncates a fractional canvas dimension the way a browser
// canvas does, tolerating floating error just below a whole number.
func canvasSide(v float64) int {
	return int(math.Floor(v + 1e-6))
}
