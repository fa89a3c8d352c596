package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"go.uber.org/zap"
)

type StorageHealth interface {
	HealthCheck(ctx context.Context) map[string]string
}

type QueueHealth interface {
	HealthCheck() string
	GetQueueStats() (map[string]interface{}, error)
}

// SessionCounter reports how many editor sessions are open.
type SessionCounter interface {
	Len() int
}

type HealthHandler struct {
	storage  StorageHealth
	queue    QueueHealth
	sessions SessionCounter
	logger   *zap.Logger
}

// NewHealthHandler builds the handler. queue is nil when RabbitMQ is not
// configured.
func NewHealthHandler(storage StorageHealth, queue QueueHealth, sessions SessionCounter, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		storage:  storage,
		queue:    queue,
		sessions: sessions,
		logger:   logger,
	}
}

// HealthCheck
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	services := h.storage.HealthCheck(c.Request.Context())
	if h.queue != nil {
		services["rabbitmq"] = h.queue.HealthCheck()
	} else {
		services["rabbitmq"] = "not configured"
	}
	overall := calculateOverallHealth(services)

	statusCode := http.StatusOK
	if overall == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.APIResponse{
		Success: overall == "healthy",
		Data: models.HealthCheck{
			Status:    overall,
			Timestamp: time.Now(),
			Services:  services,
		},
	})
}

func (h *HealthHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"editor_sessions": h.sessions.Len(),
		"timestamp":       time.Now(),
	}

	if h.queue != nil {
		queueStats, err := h.queue.GetQueueStats()
		if err != nil {
			h.logger.Error("Failed to get queue stats", zap.Error(err))
		} else {
			stats["cleanup_queue"] = queueStats
		}
	}

	respondOK(c, stats)
}
