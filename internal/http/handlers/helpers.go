package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/avatar-studio/internal/http/middleware"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/phambaophuc/avatar-studio/internal/services/avatar"
	"github.com/phambaophuc/avatar-studio/internal/services/editor"
	"github.com/phambaophuc/avatar-studio/internal/services/normalizer"
	"github.com/phambaophuc/avatar-studio/internal/services/storage"
)

var errUploadTooLarge = errors.New("upload exceeds the maximum allowed size")

// === REQUEST PARSING ===

// readUpload reads the multipart file under field, refusing more than
// maxSize bytes.
func readUpload(c *gin.Context, field string, maxSize int64) ([]byte, *multipart.FileHeader, error) {
	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, errUploadTooLarge
		}
		return nil, nil, fmt.Errorf("no %s file provided", field)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, nil, errUploadTooLarge
	}
	return data, header, nil
}

func userID(c *gin.Context) string {
	return c.GetString(middleware.UserIDKey)
}

// === RESPONSE HANDLING ===

func respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    data,
	})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	if reason, ok := normalizer.ReasonOf(err); ok {
		switch reason {
		case normalizer.ReasonTooLarge:
			return http.StatusRequestEntityTooLarge
		case normalizer.ReasonDecodeFailed:
			return http.StatusBadRequest
		default:
			return http.StatusInternalServerError
		}
	}

	switch {
	case errors.Is(err, errUploadTooLarge),
		errors.Is(err, avatar.ErrFileTooLarge),
		errors.Is(err, editor.ErrSourceTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, avatar.ErrEmptyFile),
		errors.Is(err, avatar.ErrUnsupportedType),
		errors.Is(err, editor.ErrNoCropArea),
		errors.Is(err, editor.ErrInvalidValue),
		errors.Is(err, editor.ErrInvalidCrop),
		errors.Is(err, editor.ErrDecodeFailed),
		errors.Is(err, avatar.ErrInvalidUser):
		return http.StatusBadRequest
	case errors.Is(err, avatar.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, editor.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrPreviewNotFound):
		return http.StatusGone
	case errors.Is(err, editor.ErrSaveInFlight), errors.Is(err, editor.ErrInvalidState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Server errors get a
// generic message so internals do not leak to the client.
func respondServiceError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		respondError(c, status, fallback)
		return
	}
	respondError(c, status, err.Error())
}

// === UTILITY METHODS ===

func calculateOverallHealth(services map[string]string) string {
	for _, status := range services {
		if status != "healthy" && status != "not configured" {
			return "unhealthy"
		}
	}
	return "healthy"
}
