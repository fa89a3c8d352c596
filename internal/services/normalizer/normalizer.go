// Package normalizer turns an uploaded avatar into the canonical stored form:
// EXIF orientation applied, cover-resized to a square and re-encoded as WebP.
package normalizer

import (
	"bytes"
	"context"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	DefaultSize           = 400
	DefaultQuality        = 85
	DefaultMaxInputPixels = 24_000_000
)

type Options struct {
	Size           int
	MaxInputPixels int64
	Encoder        Encoder
}

// Normalizer is stateless and safe for concurrent use.
type Normalizer struct {
	size      int
	maxPixels int64
	encoder   Encoder
}

func New(opts Options) *Normalizer {
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	if opts.MaxInputPixels <= 0 {
		opts.MaxInputPixels = DefaultMaxInputPixels
	}
	if opts.Encoder == nil {
		opts.Encoder = WebPEncoder{Quality: DefaultQuality}
	}
	return &Normalizer{
		size:      opts.Size,
		maxPixels: opts.MaxInputPixels,
		encoder:   opts.Encoder,
	}
}

func (n *Normalizer) ContentType() string { return n.encoder.ContentType() }

// Normalize decodes data, applies its orientation, fills a Size x Size square
// centred on the image and encodes the result. Failures are *RejectionError.
func (n *Normalizer) Normalize(ctx context.Context, data []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := n.decode(data)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	square := imaging.Fill(img, n.size, n.size, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := n.encoder.Encode(&buf, square); err != nil {
		return nil, reject(ReasonEncodeFailed, "failed to encode image: %w", err)
	}
	if buf.Len() == 0 {
		return nil, reject(ReasonEncodeFailed, "encoder produced no output")
	}
	return buf.Bytes(), nil
}

func (n *Normalizer) decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, reject(ReasonDecodeFailed, "empty input")
	}

	// Check the header first so oversized images are refused before their
	// pixels are allocated.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, reject(ReasonDecodeFailed, "unsupported or corrupt image: %w", err)
	}
	if err := n.checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, reject(ReasonDecodeFailed, "failed to decode %s image: %w", format, err)
	}

	b := img.Bounds()
	if b.Empty() {
		return nil, reject(ReasonDecodeFailed, "image has no pixels")
	}
	if err := n.checkPixels(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}
	return img, nil
}

func (n *Normalizer) checkPixels(w, h int) error {
	if w <= 0 || h <= 0 {
		return reject(ReasonDecodeFailed, "invalid dimensions %dx%d", w, h)
	}
	if int64(w)*int64(h) > n.maxPixels {
		return reject(ReasonTooLarge, "%dx%d exceeds %d pixels", w, h, n.maxPixels)
	}
	return nil
}
