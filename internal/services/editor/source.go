package editor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// SourceHandle is a temporary reference to a locally selected file. The
// editor owns the handle once it is loaded and releases it when the image is
// replaced, saved or cancelled.
type SourceHandle interface {
	Name() string
	Open(ctx context.Context) (io.ReadCloser, error)
	Release(ctx context.Context) error
}

// PreviewStore is the registry that backs preview handles.
type PreviewStore interface {
	OpenPreview(ctx context.Context, handle string) ([]byte, error)
	RevokePreview(ctx context.Context, handle string) error
}

// PreviewSource is a SourceHandle backed by a preview registry entry.
type PreviewSource struct {
	store    PreviewStore
	handle   string
	fileName string
}

func NewPreviewSource(store PreviewStore, handle, fileName string) *PreviewSource {
	return &PreviewSource{store: store, handle: handle, fileName: fileName}
}

func (p *PreviewSource) Name() string   { return p.fileName }
func (p *PreviewSource) Handle() string { return p.handle }

func (p *PreviewSource) Open(ctx context.Context) (io.ReadCloser, error) {
	data, err := p.store.OpenPreview(ctx, p.handle)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *PreviewSource) Release(ctx context.Context) error {
	return p.store.RevokePreview(ctx, p.handle)
}

// FileSource is a SourceHandle for a file on local disk. Releasing it
// leaves the file in place.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Name() string { return filepath.Base(f.path) }

func (f *FileSource) Open(context.Context) (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f *FileSource) Release(context.Context) error { return nil }

// decodeSource reads and decodes the handle's image, applying the EXIF
// orientation so the editor works on the image as the user sees it. The
// header is checked against maxPixels before any pixels are allocated.
func decodeSource(ctx context.Context, h SourceHandle, maxPixels int64) (image.Image, error) {
	rc, err := h.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecodeFailed)
	}
	if err := checkPixels(b.Dx(), b.Dy(), maxPixels); err != nil {
		return nil, err
	}
	return img, nil
}

func checkPixels(w, h int, maxPixels int64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: invalid dimensions %dx%d", ErrDecodeFailed, w, h)
	}
	if int64(w)*int64(h) > maxPixels {
		return fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrSourceTooLarge, w, h, maxPixels)
	}
	return nil
}
