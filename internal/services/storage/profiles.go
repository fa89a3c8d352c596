package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const avatarURLField = "avatar_url"

func profileKey(userID string) string {
	return "profile:" + userID
}

// AvatarURL returns the stored avatar URL of a profile, or "" when none is set.
func (s *StorageService) AvatarURL(ctx context.Context, userID string) (string, error) {
	url, err := s.redisClient.HGet(ctx, profileKey(userID), avatarURLField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read profile: %w", err)
	}
	return url, nil
}

func (s *StorageService) SetAvatarURL(ctx context.Context, userID, url string) error {
	if err := s.redisClient.HSet(ctx, profileKey(userID), avatarURLField, url).Err(); err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
