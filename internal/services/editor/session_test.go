package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/phambaophuc/avatar-studio/internal/geometry"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/phambaophuc/avatar-studio/internal/services/compositor"
)

type memHandle struct {
	name     string
	data     []byte
	released atomic.Int32
}

func (h *memHandle) Name() string { return h.name }

func (h *memHandle) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(h.data)), nil
}

func (h *memHandle) Release(context.Context) error {
	h.released.Add(1)
	return nil
}

type fakeExporter struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
}

func (f *fakeExporter) Export(ctx context.Context, src image.Image, opts compositor.Options) (*models.OutputImage, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return &models.OutputImage{
		Bytes:    []byte{0xFF, 0xD8},
		MIMEType: models.MIMETypeJPEG,
		FileName: opts.FileName,
	}, nil
}

func (f *fakeExporter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newJPEGHandle(t *testing.T, name string, w, h int) *memHandle {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return &memHandle{name: name, data: buf.Bytes()}
}

func newEditingSession(t *testing.T, exp Exporter, tracker CropTracker, w, h int) (*Session, *memHandle) {
	t.Helper()
	s := NewSession("s1", exp, SessionOptions{Tracker: tracker})
	handle := newJPEGHandle(t, "avatar.jpg", w, h)
	if err := s.LoadImage(context.Background(), handle); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	return s, handle
}

func waitResult(t *testing.T, ch <-chan SaveResult) SaveResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for save")
	}
	return SaveResult{}
}

func TestSession_LoadImage(t *testing.T) {
	s, _ := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 1200, 800)

	snap := s.Snapshot()
	if snap.State != StateEditing {
		t.Errorf("state: got %v, want editing", snap.State)
	}
	if snap.Transform != IdentityTransform() {
		t.Errorf("transform: got %+v, want identity", snap.Transform)
	}
	if snap.Width != 1200 || snap.Height != 800 {
		t.Errorf("size: got %dx%d, want 1200x800", snap.Width, snap.Height)
	}
	want := geometry.Rect{X: 200, Y: 0, Width: 800, Height: 800}
	if snap.Crop == nil || *snap.Crop != want {
		t.Errorf("crop: got %+v, want %+v", snap.Crop, want)
	}
}

func TestSession_RotateZoomCropSave(t *testing.T) {
	exp := compositor.NewCompositor(nil, 90, nil)
	s, handle := newEditingSession(t, exp, SquareCropTracker{}, 1200, 800)

	if err := s.RotateBy(90); err != nil {
		t.Fatalf("RotateBy: %v", err)
	}
	if err := s.SetZoom(2); err != nil {
		t.Fatalf("SetZoom: %v", err)
	}
	if err := s.ReportCrop(geometry.Rect{X: 100, Y: 100, Width: 300, Height: 300}); err != nil {
		t.Fatalf("ReportCrop: %v", err)
	}

	ch, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	res := waitResult(t, ch)
	if res.Err != nil {
		t.Fatalf("save result: %v", res.Err)
	}

	img, err := jpeg.Decode(bytes.NewReader(res.Output.Bytes))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got := img.Bounds().Size(); got != image.Pt(300, 300) {
		t.Errorf("output size: got %v, want 300x300", got)
	}
	if res.Output.FileName != "avatar.jpg" {
		t.Errorf("file name: got %q", res.Output.FileName)
	}
	if s.State() != StateIdle {
		t.Errorf("state after save: got %v, want idle", s.State())
	}
	if n := handle.released.Load(); n != 1 {
		t.Errorf("source released %d times, want 1", n)
	}
}

func TestSession_SaveWithoutCrop(t *testing.T) {
	exp := &fakeExporter{}
	s, _ := newEditingSession(t, exp, nil, 100, 100)

	if _, err := s.Save(context.Background()); !errors.Is(err, ErrNoCropArea) {
		t.Fatalf("got %v, want ErrNoCropArea", err)
	}
	if s.State() != StateEditing {
		t.Errorf("state: got %v, want editing", s.State())
	}
	if exp.Calls() != 0 {
		t.Errorf("exporter called %d times", exp.Calls())
	}
}

func TestSession_SaveRejectedWhileSaving(t *testing.T) {
	exp := &fakeExporter{gate: make(chan struct{})}
	s, _ := newEditingSession(t, exp, SquareCropTracker{}, 100, 100)

	ch, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := s.Save(context.Background()); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("second save: got %v, want ErrSaveInFlight", err)
	}
	if err := s.RotateBy(90); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("rotate while saving: got %v, want ErrSaveInFlight", err)
	}
	if err := s.Cancel(context.Background()); !errors.Is(err, ErrSaveInFlight) {
		t.Errorf("cancel while saving: got %v, want ErrSaveInFlight", err)
	}

	close(exp.gate)
	if res := waitResult(t, ch); res.Err != nil {
		t.Fatalf("save result: %v", res.Err)
	}
	if exp.Calls() != 1 {
		t.Errorf("exporter called %d times, want 1", exp.Calls())
	}
}

func TestSession_SaveFailureKeepsState(t *testing.T) {
	exp := &fakeExporter{err: compositor.ErrCanvasUnavailable}
	s, handle := newEditingSession(t, exp, SquareCropTracker{}, 200, 100)

	if err := s.RotateBy(-90); err != nil {
		t.Fatalf("RotateBy: %v", err)
	}
	if err := s.ToggleFlipHorizontal(); err != nil {
		t.Fatalf("ToggleFlipHorizontal: %v", err)
	}
	before := s.Snapshot()

	ch, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	res := waitResult(t, ch)
	if !errors.Is(res.Err, ErrExportFailed) || !errors.Is(res.Err, compositor.ErrCanvasUnavailable) {
		t.Fatalf("got %v, want ErrExportFailed wrapping ErrCanvasUnavailable", res.Err)
	}

	after := s.Snapshot()
	if after.State != StateEditing {
		t.Errorf("state: got %v, want editing", after.State)
	}
	if after.Transform != before.Transform || *after.Crop != *before.Crop {
		t.Errorf("edit not preserved: before %+v after %+v", before, after)
	}
	if handle.released.Load() != 0 {
		t.Error("source released after failed save")
	}

	// Retry succeeds once the environment recovers.
	exp.mu.Lock()
	exp.err = nil
	exp.mu.Unlock()

	ch, err = s.Save(context.Background())
	if err != nil {
		t.Fatalf("retry Save: %v", err)
	}
	if res := waitResult(t, ch); res.Err != nil {
		t.Fatalf("retry result: %v", res.Err)
	}
}

func TestSession_CancelNeverExports(t *testing.T) {
	exp := &fakeExporter{}
	s, handle := newEditingSession(t, exp, nil, 64, 64)

	if err := s.Cancel(context.Background()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if s.State() != StateIdle {
		t.Errorf("state: got %v, want idle", s.State())
	}
	if exp.Calls() != 0 {
		t.Errorf("exporter called %d times", exp.Calls())
	}
	if handle.released.Load() != 1 {
		t.Errorf("source released %d times, want 1", handle.released.Load())
	}

	// Idle cancel is a no-op.
	if err := s.Cancel(context.Background()); err != nil {
		t.Errorf("second Cancel: %v", err)
	}
	if handle.released.Load() != 1 {
		t.Errorf("source released again on idle cancel")
	}
}

func TestSession_ResetIsIdentityAndIdempotent(t *testing.T) {
	s, _ := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 300, 200)

	_ = s.RotateBy(37)
	_ = s.SetZoom(2.5)
	_ = s.ToggleFlipVertical()
	_ = s.Pan(15, -20)

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	first := s.Snapshot()
	if first.Transform != IdentityTransform() {
		t.Errorf("transform after reset: got %+v", first.Transform)
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	second := s.Snapshot()
	if second.Transform != first.Transform || *second.Crop != *first.Crop {
		t.Errorf("reset not idempotent: %+v vs %+v", first, second)
	}
}

func TestSession_ZoomClamped(t *testing.T) {
	s, _ := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 100, 100)

	tests := []struct{ in, want float64 }{
		{2, 2}, {5, DefaultMaxZoom}, {0.2, MinZoom}, {-1, MinZoom}, {1.5, 1.5},
	}
	for _, tt := range tests {
		if err := s.SetZoom(tt.in); err != nil {
			t.Fatalf("SetZoom(%v): %v", tt.in, err)
		}
		if got := s.Snapshot().Transform.Zoom; got != tt.want {
			t.Errorf("SetZoom(%v): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSession_InvalidValues(t *testing.T) {
	s, _ := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 100, 100)
	nan := math.NaN()

	if err := s.SetZoom(nan); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("SetZoom(NaN): got %v", err)
	}
	if err := s.RotateBy(nan); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("RotateBy(NaN): got %v", err)
	}
	if err := s.ReportCrop(geometry.Rect{Width: 0, Height: 10}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("empty crop: got %v", err)
	}
	if err := s.ReportCrop(geometry.Rect{X: 500, Y: 500, Width: 10, Height: 10}); !errors.Is(err, ErrInvalidCrop) {
		t.Errorf("disjoint crop: got %v", err)
	}
}

func TestSession_ReportCropIsClipped(t *testing.T) {
	s, _ := newEditingSession(t, &fakeExporter{}, nil, 100, 50)

	if err := s.ReportCrop(geometry.Rect{X: 80, Y: -10, Width: 40, Height: 40}); err != nil {
		t.Fatalf("ReportCrop: %v", err)
	}
	want := geometry.Rect{X: 80, Y: 0, Width: 20, Height: 30}
	if got := s.Snapshot().Crop; got == nil || *got != want {
		t.Errorf("crop: got %+v, want %+v", got, want)
	}
}

func TestSession_IdleRejectsEdits(t *testing.T) {
	s := NewSession("idle", &fakeExporter{}, SessionOptions{})

	ops := map[string]func() error{
		"zoom":   func() error { return s.SetZoom(2) },
		"rotate": func() error { return s.RotateBy(90) },
		"flip":   func() error { return s.ToggleFlipHorizontal() },
		"pan":    func() error { return s.Pan(1, 1) },
		"reset":  s.Reset,
		"crop":   func() error { return s.ReportCrop(geometry.Rect{Width: 1, Height: 1}) },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, ErrInvalidState) {
			t.Errorf("%s: got %v, want ErrInvalidState", name, err)
		}
	}
	if _, err := s.Save(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("save: got %v, want ErrInvalidState", err)
	}
}

func TestSession_LoadReplacesAndReleasesOldSource(t *testing.T) {
	s, first := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 100, 100)
	_ = s.RotateBy(90)

	second := newJPEGHandle(t, "second.jpg", 50, 40)
	if err := s.LoadImage(context.Background(), second); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}

	if first.released.Load() != 1 {
		t.Errorf("first source released %d times, want 1", first.released.Load())
	}
	snap := s.Snapshot()
	if snap.FileName != "second.jpg" || snap.Width != 50 || snap.Height != 40 {
		t.Errorf("snapshot: %+v", snap)
	}
	if snap.Transform != IdentityTransform() {
		t.Errorf("transform not reset: %+v", snap.Transform)
	}
}

func TestSession_LoadDecodeFailure(t *testing.T) {
	s := NewSession("bad", &fakeExporter{}, SessionOptions{})
	bad := &memHandle{name: "notes.txt", data: []byte("not an image")}

	if err := s.LoadImage(context.Background(), bad); !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("got %v, want ErrDecodeFailed", err)
	}
	if s.State() != StateIdle {
		t.Errorf("state: got %v, want idle", s.State())
	}
	if bad.released.Load() != 1 {
		t.Errorf("rejected handle released %d times, want 1", bad.released.Load())
	}
}

func TestSession_LoadRejectsTooManyPixels(t *testing.T) {
	s := NewSession("big", &fakeExporter{}, SessionOptions{MaxSourcePixels: 100})
	big := newJPEGHandle(t, "big.jpg", 20, 20)

	err := s.LoadImage(context.Background(), big)
	if !errors.Is(err, ErrSourceTooLarge) {
		t.Fatalf("got %v, want ErrSourceTooLarge", err)
	}
	if s.State() != StateIdle {
		t.Errorf("state: got %v, want idle", s.State())
	}
	if big.released.Load() != 1 {
		t.Errorf("rejected handle released %d times, want 1", big.released.Load())
	}

	// A source at the ceiling is still accepted.
	if err := s.LoadImage(context.Background(), newJPEGHandle(t, "ok.jpg", 10, 10)); err != nil {
		t.Fatalf("LoadImage at ceiling: %v", err)
	}
}

func TestSession_SaveWithCommitFailureKeepsEditing(t *testing.T) {
	s, handle := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 200, 100)
	_ = s.RotateBy(90)
	before := s.Snapshot()

	errStore := errors.New("store unavailable")
	ch, err := s.SaveWith(context.Background(), func(context.Context, *models.OutputImage) error {
		return errStore
	})
	if err != nil {
		t.Fatalf("SaveWith: %v", err)
	}
	if res := waitResult(t, ch); !errors.Is(res.Err, errStore) {
		t.Fatalf("got %v, want commit error", res.Err)
	}

	after := s.Snapshot()
	if after.State != StateEditing {
		t.Errorf("state: got %v, want editing", after.State)
	}
	if after.Transform != before.Transform {
		t.Errorf("transform not preserved: before %+v after %+v", before.Transform, after.Transform)
	}
	if handle.released.Load() != 0 {
		t.Error("source released after failed commit")
	}

	var committed *models.OutputImage
	ch, err = s.SaveWith(context.Background(), func(_ context.Context, out *models.OutputImage) error {
		committed = out
		return nil
	})
	if err != nil {
		t.Fatalf("retry SaveWith: %v", err)
	}
	res := waitResult(t, ch)
	if res.Err != nil {
		t.Fatalf("retry result: %v", res.Err)
	}
	if committed == nil || committed != res.Output {
		t.Errorf("commit did not see the export")
	}
	if s.State() != StateIdle || handle.released.Load() != 1 {
		t.Errorf("after commit: state %v, released %d", s.State(), handle.released.Load())
	}
}

func TestSession_PanIsBounded(t *testing.T) {
	s, _ := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 400, 200)
	_ = s.SetZoom(2)

	if err := s.Pan(10_000, 0); err != nil {
		t.Fatalf("Pan: %v", err)
	}
	snap := s.Snapshot()
	want := geometry.Rect{X: 300, Y: 50, Width: 100, Height: 100}
	if *snap.Crop != want {
		t.Errorf("crop: got %+v, want %+v", *snap.Crop, want)
	}
	if snap.Transform.Pan.X != 150 {
		t.Errorf("pan: got %v, want 150", snap.Transform.Pan.X)
	}
}

func TestSession_OnCropChange(t *testing.T) {
	s, _ := newEditingSession(t, &fakeExporter{}, SquareCropTracker{}, 100, 100)

	var got []geometry.Rect
	s.OnCropChange(func(r geometry.Rect) { got = append(got, r) })

	_ = s.SetZoom(2)
	_ = s.ReportCrop(geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4})

	if len(got) != 2 {
		t.Fatalf("callbacks: got %d, want 2", len(got))
	}
	if got[0] != (geometry.Rect{X: 25, Y: 25, Width: 50, Height: 50}) {
		t.Errorf("zoom crop: got %+v", got[0])
	}
	if got[1] != (geometry.Rect{X: 1, Y: 2, Width: 3, Height: 4}) {
		t.Errorf("reported crop: got %+v", got[1])
	}
}
