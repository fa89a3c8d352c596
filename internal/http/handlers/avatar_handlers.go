package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"go.uber.org/zap"
)

const avatarParamKey = "avatar"

// AvatarService is implemented by *avatar.Service.
type AvatarService interface {
	Upload(ctx context.Context, userID string, data []byte) (*models.AvatarResult, error)
	Remove(ctx context.Context, userID string) error
}

type AvatarHandler struct {
	avatars     AvatarService
	maxFileSize int64
	logger      *zap.Logger
}

func NewAvatarHandler(avatars AvatarService, maxFileSize int64, logger *zap.Logger) *AvatarHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvatarHandler{
		avatars:     avatars,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// UploadAvatar stores the multipart "avatar" file as the caller's avatar.
func (h *AvatarHandler) UploadAvatar(c *gin.Context) {
	data, _, err := readUpload(c, avatarParamKey, h.maxFileSize)
	if err != nil {
		respondServiceError(c, err, "Failed to read upload")
		return
	}

	result, err := h.avatars.Upload(c.Request.Context(), userID(c), data)
	if err != nil {
		h.logger.Error("Avatar upload failed", zap.String("user_id", userID(c)), zap.Error(err))
		respondServiceError(c, err, "Failed to update avatar")
		return
	}

	respondOK(c, result)
}

// RemoveAvatar resets the caller's avatar to the default one.
func (h *AvatarHandler) RemoveAvatar(c *gin.Context) {
	if err := h.avatars.Remove(c.Request.Context(), userID(c)); err != nil {
		h.logger.Error("Avatar removal failed", zap.String("user_id", userID(c)), zap.Error(err))
		respondServiceError(c, err, "Failed to remove avatar")
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true})
}
