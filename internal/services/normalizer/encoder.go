package normalizer

import (
	"image"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/phambaophuc/avatar-studio/internal/models"
)

// Encoder writes the normalized raster.
type Encoder interface {
	Encode(w io.Writer, img image.Image) error
	ContentType() string
}

// WebPEncoder encodes lossy WebP.
type WebPEncoder struct {
	Quality int
}

func (e WebPEncoder) Encode(w io.Writer, img image.Image) error {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = DefaultQuality
	}
	return webp.Encode(w, img, &webp.Options{Quality: float32(q)})
}

func (WebPEncoder) ContentType() string { return models.MIMETypeWebP }

// JPEGEncoder is used by the CLI when WebP output is not wanted.
type JPEGEncoder struct {
	Quality int
}

func (e JPEGEncoder) Encode(w io.Writer, img image.Image) error {
	q := e.Quality
	if q <= 0 || q > 100 {
		q = DefaultQuality
	}
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(q))
}

func (JPEGEncoder) ContentType() string { return models.MIMETypeJPEG }
