// Package avatar replaces and removes a user's stored avatar.
package avatar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/phambaophuc/avatar-studio/pkg/utils"
	"go.uber.org/zap"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedType = errors.New("file type not supported")
	ErrMissingUser     = errors.New("user id is required")
	ErrInvalidUser     = errors.New("user id contains unsupported characters")
)

// BlobStore is the avatars bucket.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// ProfileStore reads and writes the avatar URL of a user profile.
type ProfileStore interface {
	AvatarURL(ctx context.Context, userID string) (string, error)
	SetAvatarURL(ctx context.Context, userID, url string) error
}

type Normalizer interface {
	Normalize(ctx context.Context, data []byte) ([]byte, error)
}

type CleanupPublisher interface {
	PublishCleanup(ctx context.Context, job *models.CleanupJob) error
}

type Cache interface {
	GetFromCache(ctx context.Context, key string) ([]byte, error)
	SetCache(ctx context.Context, key string, data []byte) error
	GenerateCacheKey(data []byte, variant string) string
}

type Options struct {
	MaxFileSize      int64
	AllowedTypes     []string
	DefaultAvatarURL string
	// CacheVariant identifies the normalization settings in cache keys.
	CacheVariant string
	Now          func() time.Time
}

type Service struct {
	blobs      BlobStore
	profiles   ProfileStore
	normalizer Normalizer
	cleanup    CleanupPublisher
	cache      Cache
	opts       Options
	logger     *zap.Logger
}

// NewService wires the avatar flow. cleanup and cache may be nil.
func NewService(
	blobs BlobStore,
	profiles ProfileStore,
	normalizer Normalizer,
	cleanup CleanupPublisher,
	cache Cache,
	opts Options,
	logger *zap.Logger,
) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 1024 * 1024
	}
	if len(opts.AllowedTypes) == 0 {
		opts.AllowedTypes = utils.DefaultImageTypes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		blobs:      blobs,
		profiles:   profiles,
		normalizer: normalizer,
		cleanup:    cleanup,
		cache:      cache,
		opts:       opts,
		logger:     logger,
	}
}

// Validate checks the upload size and its sniffed content type.
func (s *Service) Validate(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyFile
	}
	if int64(len(data)) >= s.opts.MaxFileSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrFileTooLarge, len(data), s.opts.MaxFileSize)
	}
	if ct := http.DetectContentType(data); !utils.IsValidImageType(ct, s.opts.AllowedTypes) {
		return fmt.Errorf("%w: %s", ErrUnsupportedType, ct)
	}
	return nil
}

// checkUserID guards the object key, which is derived from the id.
func checkUserID(userID string) error {
	if userID == "" {
		return ErrMissingUser
	}
	if !utils.IsValidUserID(userID) {
		return fmt.Errorf("%w: %q", ErrInvalidUser, userID)
	}
	return nil
}

// Upload validates and normalizes data, stores it as the user's avatar and
// points the profile at it. The previous avatar object is deleted best-effort.
func (s *Service) Upload(ctx context.Context, userID string, data []byte) (*models.AvatarResult, error) {
	if err := checkUserID(userID); err != nil {
		return nil, err
	}
	if err := s.Validate(data); err != nil {
		return nil, err
	}

	normalized, err := s.normalize(ctx, data)
	if err != nil {
		return nil, err
	}

	current, err := s.profiles.AvatarURL(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read current avatar: %w", err)
	}
	if old, ok := ObjectNameFromPublicURL(current); ok {
		s.deleteBestEffort(ctx, old, models.CleanupReasonReplaced)
	}

	key := utils.AvatarFileName(userID, s.opts.Now())
	publicURL, err := s.blobs.Upload(ctx, key, normalized, models.MIMETypeWebP)
	if err != nil {
		s.deleteBestEffort(ctx, key, models.CleanupReasonRollback)
		return nil, fmt.Errorf("failed to upload avatar: %w", err)
	}

	if err := s.profiles.SetAvatarURL(ctx, userID, publicURL); err != nil {
		s.deleteBestEffort(ctx, key, models.CleanupReasonRollback)
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.Info("Avatar updated",
		zap.String("user_id", userID),
		zap.String("key", key),
		zap.Int("size", len(normalized)),
	)

	return &models.AvatarResult{
		UserID:    userID,
		AvatarURL: publicURL,
		Key:       key,
		Size:      len(normalized),
	}, nil
}

// Remove resets the profile to the default avatar and then deletes the old
// object best-effort.
func (s *Service) Remove(ctx context.Context, userID string) error {
	if err := checkUserID(userID); err != nil {
		return err
	}

	current, err := s.profiles.AvatarURL(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read current avatar: %w", err)
	}

	if err := s.profiles.SetAvatarURL(ctx, userID, s.opts.DefaultAvatarURL); err != nil {
		return fmt.Errorf("failed to reset avatar: %w", err)
	}

	if old, ok := ObjectNameFromPublicURL(current); ok {
		s.deleteBestEffort(ctx, old, models.CleanupReasonRemoved)
	}

	s.logger.Info("Avatar removed", zap.String("user_id", userID))
	return nil
}

func (s *Service) normalize(ctx context.Context, data []byte) ([]byte, error) {
	var cacheKey string
	if s.cache != nil {
		cacheKey = s.cache.GenerateCacheKey(data, s.opts.CacheVariant)
		cached, err := s.cache.GetFromCache(ctx, cacheKey)
		if err != nil {
			s.logger.Warn("Failed to read normalize cache", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	normalized, err := s.normalizer.Normalize(ctx, data)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetCache(ctx, cacheKey, normalized); err != nil {
			s.logger.Warn("Failed to cache normalized avatar", zap.Error(err))
		}
	}
	return normalized, nil
}

// deleteBestEffort removes key and, if that fails, hands it to the cleanup
// queue. Errors never propagate.
func (s *Service) deleteBestEffort(ctx context.Context, key, reason string) {
	err := s.blobs.Delete(ctx, key)
	if err == nil {
		return
	}
	s.logger.Error("Failed to delete avatar object",
		zap.String("key", key),
		zap.String("reason", reason),
		zap.Error(err),
	)

	if s.cleanup == nil {
		return
	}
	job := &models.CleanupJob{
		Bucket: s.blobs.Bucket(),
		Key:    key,
		Reason: reason,
	}
	if err := s.cleanup.PublishCleanup(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Error("Failed to enqueue cleanup job",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
