package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

var ErrEmptyPublicURL = errors.New("storage returned an empty public url")

// Upload stores data under key in the avatars bucket and returns its public URL.
func (s *StorageService) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	upsert := false
	_, err := s.sbClient.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		CacheControl: &s.cacheControl,
		ContentType:  &contentType,
		Upsert:       &upsert,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to supabase: %w", err)
	}

	publicURL := s.sbClient.GetPublicUrl(s.bucket, key).SignedURL
	if publicURL == "" {
		return "", ErrEmptyPublicURL
	}

	s.logger.Debug("Uploaded object",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(data)),
	)
	return publicURL, nil
}

// Delete removes key from the avatars bucket.
func (s *StorageService) Delete(ctx context.Context, key string) error {
	return s.DeleteFrom(ctx, s.bucket, key)
}

// DeleteFrom removes key from an arbitrary bucket. The cleanup worker uses it
// for jobs that name their bucket.
func (s *StorageService) DeleteFrom(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sbClient.RemoveFile(bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to remove %s/%s: %w", bucket, key, err)
	}
	return nil
}
