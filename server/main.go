package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/phambaophuc/avatar-studio/internal/config"
	"github.com/phambaophuc/avatar-studio/internal/http/handlers"
	"github.com/phambaophuc/avatar-studio/internal/http/routes"
	"github.com/phambaophuc/avatar-studio/internal/services/avatar"
	"github.com/phambaophuc/avatar-studio/internal/services/compositor"
	"github.com/phambaophuc/avatar-studio/internal/services/editor"
	"github.com/phambaophuc/avatar-studio/internal/services/normalizer"
	"github.com/phambaophuc/avatar-studio/internal/services/queue"
	"github.com/phambaophuc/avatar-studio/internal/services/storage"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize services
	store, err := storage.NewStorageService(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage service", zap.Error(err))
	}
	defer store.Close()

	var (
		cleanup     avatar.CleanupPublisher
		queueHealth handlers.QueueHealth
	)
	queueService, err := queue.NewQueueService(cfg.RabbitMQ, store, logger)
	if err != nil {
		// Avatars still work; failed deletes are only logged.
		logger.Warn("Failed to initialize queue service", zap.Error(err))
	} else {
		defer queueService.Close()
		for i := 1; i <= cfg.RabbitMQ.Workers; i++ {
			if err := queueService.StartWorker(ctx, i); err != nil {
				logger.Error("Failed to start cleanup worker", zap.Int("worker_id", i), zap.Error(err))
			}
		}
		cleanup = queueService
		queueHealth = queueService
	}

	norm := normalizer.New(normalizer.Options{
		Size:           cfg.Avatar.Size,
		MaxInputPixels: cfg.Avatar.MaxInputPixels,
		Encoder:        normalizer.WebPEncoder{Quality: cfg.Avatar.Quality},
	})

	avatars := avatar.NewService(store, store, norm, cleanup, store, avatar.Options{
		MaxFileSize:      cfg.Avatar.MaxFileSize,
		AllowedTypes:     cfg.Avatar.AllowedTypes,
		DefaultAvatarURL: cfg.Avatar.DefaultAvatarURL,
		CacheVariant:     fmt.Sprintf("%d-q%d-%s", cfg.Avatar.Size, cfg.Avatar.Quality, norm.ContentType()),
	}, logger)

	comp := compositor.NewCompositor(
		compositor.NewPoolAllocator(cfg.Editor.MaxCanvasPixels),
		cfg.Editor.JPEGQuality,
		logger,
	)
	sessions := editor.NewManager(comp, editor.ManagerOptions{
		SessionTTL:      cfg.Editor.SessionTTL,
		MaxZoom:         cfg.Editor.MaxZoom,
		MaxSourcePixels: cfg.Editor.MaxSourcePixels,
	}, logger)
	go sessions.StartJanitor(ctx, cfg.Editor.JanitorInterval)

	// Initialize handlers
	avatarHandler := handlers.NewAvatarHandler(avatars, cfg.Avatar.MaxFileSize, logger)
	editorHandler := handlers.NewEditorHandler(sessions, store, avatars, cfg.Editor.MaxSourceSize, logger)
	healthHandler := handlers.NewHealthHandler(store, queueHealth, sessions, logger)

	router := routes.NewRouter(avatarHandler, editorHandler, healthHandler, cfg, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Handler:      router.SetupRoutes(),
	}

	// Start server
	go func() {
		logger.Info("Starting server", zap.String("addr", server.Addr), zap.String("env", cfg.App.Env))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	sessions.Shutdown(shutdownCtx)

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.App.Env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
