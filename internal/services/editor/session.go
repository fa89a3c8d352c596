package editor

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/phambaophuc/avatar-studio/internal/geometry"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/phambaophuc/avatar-studio/internal/services/compositor"
	"go.uber.org/zap"
)

// Exporter renders the final image. *compositor.Compositor satisfies it.
type Exporter interface {
	Export(ctx context.Context, src image.Image, opts compositor.Options) (*models.OutputImage, error)
}

// SaveResult is delivered once per accepted Save call.
type SaveResult struct {
	Output *models.OutputImage
	Err    error
}

// Commit hands a finished export to its destination, such as the avatar
// store. A commit error leaves the session editing with its source intact.
type Commit func(ctx context.Context, out *models.OutputImage) error

type SessionOptions struct {
	// Owner is the user the session belongs to.
	Owner           string
	Tracker         CropTracker
	MaxZoom         float64
	MaxSourcePixels int64
	Logger          *zap.Logger
	Now             func() time.Time
}

type source struct {
	img    image.Image
	handle SourceHandle
}

// Session is one avatar editing dialog. All methods are safe for concurrent
// use; the export of a save runs on its own goroutine.
type Session struct {
	id        string
	owner     string
	exporter  Exporter
	tracker   CropTracker
	maxZoom   float64
	maxPixels int64
	logger    *zap.Logger
	now       func() time.Time

	mu         sync.Mutex
	state      State
	src        *source
	transform  TransformState
	crop       *geometry.Rect
	listeners  []func(geometry.Rect)
	lastActive time.Time
}

func NewSession(id string, exporter Exporter, opts SessionOptions) *Session {
	if opts.MaxZoom < MinZoom {
		opts.MaxZoom = DefaultMaxZoom
	}
	if opts.MaxSourcePixels <= 0 {
		opts.MaxSourcePixels = DefaultMaxSourcePixels
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		id:         id,
		owner:      opts.Owner,
		exporter:   exporter,
		tracker:    opts.Tracker,
		maxZoom:    opts.MaxZoom,
		maxPixels:  opts.MaxSourcePixels,
		logger:     opts.Logger.With(zap.String("session_id", id)),
		now:        opts.Now,
		state:      StateIdle,
		transform:  IdentityTransform(),
		lastActive: opts.Now(),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Owner() string { return s.owner }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnCropChange registers a callback invoked with every new crop area.
func (s *Session) OnCropChange(fn func(geometry.Rect)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// LoadImage decodes the handle and starts editing it with an identity
// transform. A previously loaded source is released. On failure the handle
// is released and the session is left as it was.
func (s *Session) LoadImage(ctx context.Context, h SourceHandle) error {
	img, err := decodeSource(ctx, h, s.maxPixels)
	if err != nil {
		s.release(ctx, h)
		return err
	}

	s.mu.Lock()
	if s.state == StateSaving {
		s.mu.Unlock()
		s.release(ctx, h)
		return ErrSaveInFlight
	}
	old := s.src
	s.src = &source{img: img, handle: h}
	s.state = StateEditing
	s.transform = IdentityTransform()
	s.crop = nil
	crop, fire := s.retrackLocked()
	s.mu.Unlock()

	if old != nil {
		s.release(ctx, old.handle)
	}
	s.notify(crop, fire)

	b := img.Bounds()
	s.logger.Info("Source image loaded",
		zap.String("file_name", h.Name()),
		zap.Int("width", b.Dx()),
		zap.Int("height", b.Dy()),
	)
	return nil
}

// SetZoom sets the zoom factor, clamped to [1, MaxZoom].
func (s *Session) SetZoom(zoom float64) error {
	if math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return fmt.Errorf("%w: zoom %v", ErrInvalidValue, zoom)
	}
	return s.edit(func(t *TransformState) {
		t.Zoom = math.Max(MinZoom, math.Min(zoom, s.maxZoom))
	})
}

// RotateBy adds degrees to the rotation. Positive is clockwise.
func (s *Session) RotateBy(degrees float64) error {
	if math.IsNaN(degrees) || math.IsInf(degrees, 0) {
		return fmt.Errorf("%w: rotation %v", ErrInvalidValue, degrees)
	}
	return s.edit(func(t *TransformState) {
		t.Rotation += degrees
	})
}

func (s *Session) ToggleFlipHorizontal() error {
	return s.edit(func(t *TransformState) {
		t.FlipHorizontal = !t.FlipHorizontal
	})
}

func (s *Session) ToggleFlipVertical() error {
	return s.edit(func(t *TransformState) {
		t.FlipVertical = !t.FlipVertical
	})
}

// Pan moves the crop window by (dx, dy) pixels of the rotated image.
func (s *Session) Pan(dx, dy float64) error {
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return fmt.Errorf("%w: pan %v,%v", ErrInvalidValue, dx, dy)
	}
	return s.edit(func(t *TransformState) {
		t.Pan.X += dx
		t.Pan.Y += dy
	})
}

// Reset returns the transform to identity.
func (s *Session) Reset() error {
	return s.edit(func(t *TransformState) {
		*t = IdentityTransform()
	})
}

// ReportCrop sets the crop area directly. The rectangle is clipped to the
// rotated bounding box.
func (s *Session) ReportCrop(r geometry.Rect) error {
	if r.Empty() || math.IsNaN(r.X) || math.IsNaN(r.Y) {
		return fmt.Errorf("%w: crop %+v", ErrInvalidValue, r)
	}

	s.mu.Lock()
	if err := s.requireEditingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	clipped := r.Clamp(s.boxLocked())
	if clipped.Empty() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %+v", ErrInvalidCrop, r)
	}
	s.crop = &clipped
	s.touchLocked()
	s.mu.Unlock()

	s.notify(clipped, true)
	return nil
}

// Save starts an export of the current edit. The returned channel yields a
// single result. On success the session returns to idle and the source is
// released; on failure it returns to editing with its state intact.
func (s *Session) Save(ctx context.Context) (<-chan SaveResult, error) {
	return s.SaveWith(ctx, nil)
}

// SaveWith is Save with a commit step run on the export before the session
// lets go of its source. If commit fails the session goes back to editing.
func (s *Session) SaveWith(ctx context.Context, commit Commit) (<-chan SaveResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateSaving:
		s.mu.Unlock()
		return nil, ErrSaveInFlight
	case StateIdle:
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: no image loaded", ErrInvalidState)
	}
	if s.crop == nil {
		s.mu.Unlock()
		return nil, ErrNoCropArea
	}

	img := s.src.img
	opts := compositor.Options{
		Rotation: s.transform.Rotation,
		FlipH:    s.transform.FlipHorizontal,
		FlipV:    s.transform.FlipVertical,
		Crop:     *s.crop,
		FileName: s.src.handle.Name(),
	}
	s.state = StateSaving
	s.touchLocked()
	s.mu.Unlock()

	results := make(chan SaveResult, 1)
	go func() {
		defer close(results)

		out, err := s.exporter.Export(ctx, img, opts)
		if err == nil && (out == nil || len(out.Bytes) == 0) {
			err = compositor.ErrEmptyOutput
		}
		if err != nil {
			s.mu.Lock()
			s.state = StateEditing
			s.mu.Unlock()

			s.logger.Error("Failed to export image", zap.Error(err))
			results <- SaveResult{Err: fmt.Errorf("%w: %w", ErrExportFailed, err)}
			return
		}

		if commit != nil {
			if err := commit(ctx, out); err != nil {
				s.mu.Lock()
				s.state = StateEditing
				s.mu.Unlock()

				s.logger.Error("Failed to commit export", zap.Error(err))
				results <- SaveResult{Err: err}
				return
			}
		}

		s.mu.Lock()
		done := s.src
		s.clearLocked()
		s.mu.Unlock()

		if done != nil {
			s.release(context.WithoutCancel(ctx), done.handle)
		}
		s.logger.Info("Image exported",
			zap.String("file_name", out.FileName),
			zap.Int("size", len(out.Bytes)),
		)
		results <- SaveResult{Output: out}
	}()

	return results, nil
}

// Cancel discards the edit and releases the source. It never exports.
// Cancelling an idle session is a no-op.
func (s *Session) Cancel(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateSaving {
		s.mu.Unlock()
		return ErrSaveInFlight
	}
	old := s.src
	s.clearLocked()
	s.mu.Unlock()

	if old != nil {
		s.release(ctx, old.handle)
	}
	return nil
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.id,
		State:     s.state,
		Transform: s.transform,
	}
	if s.src != nil {
		b := s.src.img.Bounds()
		snap.FileName = s.src.handle.Name()
		snap.Width, snap.Height = b.Dx(), b.Dy()
		snap.BoundingBox = s.boxLocked()
	}
	if s.crop != nil {
		c := *s.crop
		snap.Crop = &c
	}
	return snap
}

// IdleSince reports when the session was last used.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) edit(fn func(*TransformState)) error {
	s.mu.Lock()
	if err := s.requireEditingLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	fn(&s.transform)
	s.touchLocked()
	crop, fire := s.retrackLocked()
	s.mu.Unlock()

	s.notify(crop, fire)
	return nil
}

func (s *Session) requireEditingLocked() error {
	switch s.state {
	case StateEditing:
		return nil
	case StateSaving:
		return ErrSaveInFlight
	default:
		return fmt.Errorf("%w: no image loaded", ErrInvalidState)
	}
}

func (s *Session) boxLocked() geometry.Size {
	b := s.src.img.Bounds()
	return geometry.RotatedBoundingBox(float64(b.Dx()), float64(b.Dy()), s.transform.Rotation)
}

// retrackLocked recomputes the crop area from the transform. Pan is limited
// to the slack between the crop window and the box so it cannot drift past
// the image edge.
func (s *Session) retrackLocked() (geometry.Rect, bool) {
	if s.tracker == nil || s.src == nil {
		return geometry.Rect{}, false
	}
	box := s.boxLocked()
	r := s.tracker.Track(box, s.transform)
	if r.Empty() {
		return geometry.Rect{}, false
	}
	slackX := math.Max(0, box.Width-r.Width) / 2
	slackY := math.Max(0, box.Height-r.Height) / 2
	s.transform.Pan.X = clamp(s.transform.Pan.X, -slackX, slackX)
	s.transform.Pan.Y = clamp(s.transform.Pan.Y, -slackY, slackY)
	s.crop = &r
	return r, true
}

func (s *Session) clearLocked() {
	s.src = nil
	s.crop = nil
	s.transform = IdentityTransform()
	s.state = StateIdle
	s.touchLocked()
}

func (s *Session) touchLocked() {
	s.lastActive = s.now()
}

func (s *Session) notify(r geometry.Rect, fire bool) {
	if !fire {
		return
	}
	s.mu.Lock()
	listeners := append([]func(geometry.Rect){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(r)
	}
}

func (s *Session) release(ctx context.Context, h SourceHandle) {
	if h == nil {
		return
	}
	if err := h.Release(ctx); err != nil {
		s.logger.Warn("Failed to release source handle",
			zap.String("file_name", h.Name()),
			zap.Error(err),
		)
	}
}
