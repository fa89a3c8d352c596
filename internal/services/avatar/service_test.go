package avatar

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phambaophuc/avatar-studio/internal/models"
)

const bucketURL = "https://proj.supabase.co/storage/v1/object/public/avatars/"

type fakeBlobs struct {
	mu         sync.Mutex
	objects    map[string][]byte
	uploadErr  error
	deleteErrs map[string]error
	deleted    []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: map[string][]byte{}, deleteErrs: map[string]error{}}
}

func (f *fakeBlobs) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	if contentType != "image/webp" {
		return "", errors.New("unexpected content type " + contentType)
	}
	f.objects[key] = data
	return bucketURL + key, nil
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if err := f.deleteErrs[key]; err != nil {
		return err
	}
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobs) Bucket() string { return "avatars" }

type fakeProfiles struct {
	urls   map[string]string
	setErr error
	getErr error
}

func (f *fakeProfiles) AvatarURL(_ context.Context, userID string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.urls[userID], nil
}

func (f *fakeProfiles) SetAvatarURL(_ context.Context, userID, url string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.urls[userID] = url
	return nil
}

type stubNormalizer struct {
	calls int
	err   error
}

func (s *stubNormalizer) Normalize(_ context.Context, data []byte) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("RIFF-normalized"), nil
}

type fakePublisher struct {
	jobs []*models.CleanupJob
}

func (f *fakePublisher) PublishCleanup(_ context.Context, job *models.CleanupJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

type memCache struct {
	data map[string][]byte
}

func (m *memCache) GetFromCache(_ context.Context, key string) ([]byte, error) {
	return m.data[key], nil
}

func (m *memCache) SetCache(_ context.Context, key string, data []byte) error {
	m.data[key] = data
	return nil
}

func (m *memCache) GenerateCacheKey(data []byte, variant string) string {
	return variant + ":" + string(data)
}

type fixture struct {
	svc       *Service
	blobs     *fakeBlobs
	profiles  *fakeProfiles
	norm      *stubNormalizer
	publisher *fakePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		blobs:     newFakeBlobs(),
		profiles:  &fakeProfiles{urls: map[string]string{}},
		norm:      &stubNormalizer{},
		publisher: &fakePublisher{},
	}
	f.svc = NewService(f.blobs, f.profiles, f.norm, f.publisher, nil, Options{
		DefaultAvatarURL: "/images/default-avatar.png",
		Now:              func() time.Time { return time.UnixMilli(1700000000000) },
	}, nil)
	return f
}

func newPNGBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	pngData := newPNGBytes(t)

	if err := f.svc.Validate(pngData); err != nil {
		t.Errorf("valid png: %v", err)
	}
	if err := f.svc.Validate(nil); !errors.Is(err, ErrEmptyFile) {
		t.Errorf("empty: got %v", err)
	}
	if err := f.svc.Validate([]byte("plain text file")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("text: got %v", err)
	}

	big := append(append([]byte{}, pngData...), make([]byte, 1024*1024)...)
	if err := f.svc.Validate(big); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("large: got %v", err)
	}
}

func TestUpload_ReplacesOldAvatar(t *testing.T) {
	f := newFixture(t)
	f.profiles.urls["u1"] = bucketURL + "u1-1600000000000.webp"
	f.blobs.objects["u1-1600000000000.webp"] = []byte("old")

	res, err := f.svc.Upload(context.Background(), "u1", newPNGBytes(t))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	wantKey := "u1-1700000000000.webp"
	if res.Key != wantKey || res.AvatarURL != bucketURL+wantKey {
		t.Errorf("result: %+v", res)
	}
	if f.profiles.urls["u1"] != bucketURL+wantKey {
		t.Errorf("profile url: got %q", f.profiles.urls["u1"])
	}
	if _, ok := f.blobs.objects["u1-1600000000000.webp"]; ok {
		t.Error("old avatar not deleted")
	}
	if len(f.blobs.objects) != 1 {
		t.Errorf("objects: got %d, want exactly one", len(f.blobs.objects))
	}
}

func TestUpload_SkipsNonBucketURLs(t *testing.T) {
	for _, current := range []string{
		"/images/default-avatar.png",
		"https://lh3.googleusercontent.com/a/photo.jpg",
		"",
	} {
		f := newFixture(t)
		f.profiles.urls["u1"] = current

		if _, err := f.svc.Upload(context.Background(), "u1", newPNGBytes(t)); err != nil {
			t.Fatalf("Upload with %q: %v", current, err)
		}
		if len(f.blobs.deleted) != 0 {
			t.Errorf("current %q: unexpected deletes %v", current, f.blobs.deleted)
		}
	}
}

func TestUpload_OldDeleteFailureIsEnqueued(t *testing.T) {
	f := newFixture(t)
	f.profiles.urls["u1"] = bucketURL + "u1-1.webp"
	f.blobs.deleteErrs["u1-1.webp"] = errors.New("storage timeout")

	if _, err := f.svc.Upload(context.Background(), "u1", newPNGBytes(t)); err != nil {
		t.Fatalf("Upload should succeed despite delete failure: %v", err)
	}
	if len(f.publisher.jobs) != 1 {
		t.Fatalf("cleanup jobs: got %d, want 1", len(f.publisher.jobs))
	}
	job := f.publisher.jobs[0]
	if job.Bucket != "avatars" || job.Key != "u1-1.webp" || job.Reason != models.CleanupReasonReplaced {
		t.Errorf("job: %+v", job)
	}
}

func TestUpload_UploadFailureCleansUp(t *testing.T) {
	f := newFixture(t)
	f.blobs.uploadErr = errors.New("bucket full")

	_, err := f.svc.Upload(context.Background(), "u1", newPNGBytes(t))
	if err == nil || !strings.Contains(err.Error(), "bucket full") {
		t.Fatalf("got %v, want upload error", err)
	}
	if len(f.blobs.deleted) != 1 || f.blobs.deleted[0] != "u1-1700000000000.webp" {
		t.Errorf("deleted: got %v", f.blobs.deleted)
	}
	if _, ok := f.profiles.urls["u1"]; ok {
		t.Error("profile should not be updated")
	}
}

func TestUpload_ProfileFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.profiles.setErr = errors.New("db down")

	if _, err := f.svc.Upload(context.Background(), "u1", newPNGBytes(t)); err == nil {
		t.Fatal("expected error")
	}
	if len(f.blobs.objects) != 0 {
		t.Errorf("uploaded blob not rolled back: %v", f.blobs.objects)
	}
}

func TestUpload_NormalizeFailure(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("decode_failed")
	f.norm.err = boom

	if _, err := f.svc.Upload(context.Background(), "u1", newPNGBytes(t)); !errors.Is(err, boom) {
		t.Fatalf("got %v, want normalizer error", err)
	}
	if len(f.blobs.objects) != 0 {
		t.Error("nothing should be uploaded")
	}
}

func TestUpload_UsesCache(t *testing.T) {
	f := newFixture(t)
	f.svc.cache = &memCache{data: map[string][]byte{}}
	data := newPNGBytes(t)

	for i := 0; i < 2; i++ {
		if _, err := f.svc.Upload(context.Background(), "u1", data); err != nil {
			t.Fatalf("Upload %d: %v", i, err)
		}
	}
	if f.norm.calls != 1 {
		t.Errorf("normalizer calls: got %d, want 1", f.norm.calls)
	}
}

func TestUpload_Rejections(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Upload(context.Background(), "", newPNGBytes(t)); !errors.Is(err, ErrMissingUser) {
		t.Errorf("missing user: got %v", err)
	}
	for _, id := range []string{"../u2", "u1/../../etc", "a b"} {
		if _, err := f.svc.Upload(context.Background(), id, newPNGBytes(t)); !errors.Is(err, ErrInvalidUser) {
			t.Errorf("user %q: got %v, want ErrInvalidUser", id, err)
		}
		if err := f.svc.Remove(context.Background(), id); !errors.Is(err, ErrInvalidUser) {
			t.Errorf("remove %q: got %v, want ErrInvalidUser", id, err)
		}
	}
	if _, err := f.svc.Upload(context.Background(), "u1", []byte("text")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("bad type: got %v", err)
	}
	if f.norm.calls != 0 {
		t.Errorf("normalizer should not run for rejected input")
	}
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	f.profiles.urls["u1"] = bucketURL + "u1-5.webp"
	f.blobs.objects["u1-5.webp"] = []byte("x")

	if err := f.svc.Remove(context.Background(), "u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := f.profiles.urls["u1"]; got != "/images/default-avatar.png" {
		t.Errorf("profile url: got %q", got)
	}
	if len(f.blobs.objects) != 0 {
		t.Error("avatar object not deleted")
	}
}

func TestRemove_DeleteFailureIsEnqueued(t *testing.T) {
	f := newFixture(t)
	f.profiles.urls["u1"] = bucketURL + "u1-5.webp"
	f.blobs.deleteErrs["u1-5.webp"] = errors.New("timeout")

	if err := f.svc.Remove(context.Background(), "u1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(f.publisher.jobs) != 1 || f.publisher.jobs[0].Reason != models.CleanupReasonRemoved {
		t.Errorf("jobs: %+v", f.publisher.jobs)
	}
}

func TestRemove_ProfileFailureKeepsBlob(t *testing.T) {
	f := newFixture(t)
	f.profiles.urls["u1"] = bucketURL + "u1-5.webp"
	f.profiles.setErr = errors.New("db down")

	if err := f.svc.Remove(context.Background(), "u1"); err == nil {
		t.Fatal("expected error")
	}
	if len(f.blobs.deleted) != 0 {
		t.Errorf("blob deleted before profile reset: %v", f.blobs.deleted)
	}
}

func TestObjectNameFromPublicURL(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{bucketURL + "u1-1700000000000.webp", "u1-1700000000000.webp", true},
		{bucketURL + "u1.webp?t=123", "u1.webp", true},
		{"/images/default-avatar.png", "", false},
		{"https://lh3.googleusercontent.com/a/photo.jpg", "", false},
		{bucketURL, "", false},
		{"", "", false},
		{"http://[::1/avatars/x.webp", "", false},
	}
	for _, tt := range tests {
		got, ok := ObjectNameFromPublicURL(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ObjectNameFromPublicURL(%q): got %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
