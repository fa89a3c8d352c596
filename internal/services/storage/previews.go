package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const previewKeyPrefix = "preview:"

var ErrPreviewNotFound = errors.New("preview not found or expired")

func previewKey(handle string) string {
	return previewKeyPrefix + handle
}

// CreatePreview registers data under a new handle. The entry lives until it
// is revoked or the preview TTL passes, whichever comes first.
func (s *StorageService) CreatePreview(ctx context.Context, data []byte) (string, error) {
	handle := uuid.New().String()
	if err := s.redisClient.Set(ctx, previewKey(handle), data, s.previewTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}
	return handle, nil
}

func (s *StorageService) OpenPreview(ctx context.Context, handle string) ([]byte, error) {
	data, err := s.redisClient.Get(ctx, previewKey(handle)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPreviewNotFound
		}
		return nil, fmt.Errorf("failed to read preview: %w", err)
	}
	return data, nil
}

// RevokePreview deletes the preview immediately. Revoking an unknown handle
// is not an error.
func (s *StorageService) RevokePreview(ctx context.Context, handle string) error {
	if err := s.redisClient.Del(ctx, previewKey(handle)).Err(); err != nil {
		return fmt.Errorf("failed to revoke preview: %w", err)
	}
	return nil
}
