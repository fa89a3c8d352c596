package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "avatar_cache:"

func (s *StorageService) GetFromCache(ctx context.Context, cacheKey string) ([]byte, error) {
	data, err := s.redisClient.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("cache get error: %w", err)
	}
	return data, nil
}

func (s *StorageService) SetCache(ctx context.Context, cacheKey string, data []byte) error {
	return s.redisClient.Set(ctx, cacheKey, data, s.cacheDuration).Err()
}

// GenerateCacheKey derives a cache key from the input bytes and a variant
// describing the processing applied to them.
func GenerateCacheKey(data []byte, variant string) string {
	hash := sha256.New()
	hash.Write([]byte(variant))
	hash.Write([]byte{0})
	hash.Write(data)
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash.Sum(nil))
}

func (s *StorageService) GenerateCacheKey(data []byte, variant string) string {
	return GenerateCacheKey(data, variant)
}
