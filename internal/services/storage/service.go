package storage

import (
	"time"

	"github.com/phambaophuc/avatar-studio/internal/config"
	"github.com/redis/go-redis/v9"
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// StorageService fronts the avatars bucket in Supabase Storage and the Redis
// instance used for caching, previews and profile avatar URLs.
type StorageService struct {
	sbClient      *storage_go.Client
	redisClient   *redis.Client
	bucket        string
	cacheDuration time.Duration
	cacheControl  string
	previewTTL    time.Duration
	logger        *zap.Logger
}

func NewStorageService(cfg *config.Config, logger *zap.Logger) (*StorageService, error) {
	sbClient := storage_go.NewClient(cfg.Supabase.URL+"/storage/v1", cfg.Supabase.KEY, nil)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &StorageService{
		sbClient:      sbClient,
		redisClient:   redisClient,
		bucket:        cfg.Supabase.BUCKET,
		cacheDuration: cfg.Storage.CacheDuration,
		cacheControl:  cfg.Storage.CacheControl,
		previewTTL:    cfg.Editor.PreviewTTL,
		logger:        logger,
	}, nil
}

func (s *StorageService) Bucket() string {
	return s.bucket
}

func (s *StorageService) Close() error {
	return s.redisClient.Close()
}
