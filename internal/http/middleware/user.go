package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/phambaophuc/avatar-studio/pkg/utils"
)

const (
	UserIDHeader = "X-User-ID"
	UserIDKey    = "user_id"
)

// RequireUser takes the caller's id from the header set by the auth proxy.
// fallbackUserID, when not empty, is used for requests without the header.
// Ids that are unsafe in object keys are refused.
func RequireUser(fallbackUserID string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID := strings.TrimSpace(ctx.GetHeader(UserIDHeader))
		if userID == "" {
			userID = fallbackUserID
		}
		if userID == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, models.APIResponse{
				Success: false,
				Error:   "Unauthorized",
			})
			return
		}
		if !utils.IsValidUserID(userID) {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, models.APIResponse{
				Success: false,
				Error:   "Invalid user id",
			})
			return
		}

		ctx.Set(UserIDKey, userID)
		ctx.Next()
	}
}
