package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/avatar-studio/internal/config"
	"github.com/phambaophuc/avatar-studio/internal/http/handlers"
	"github.com/phambaophuc/avatar-studio/internal/http/middleware"
	"go.uber.org/zap"
)

// multipart framing allowance on top of the file itself
const formOverhead = 64 << 10

type Router struct {
	avatarHandler *handlers.AvatarHandler
	editorHandler *handlers.EditorHandler
	healthHandler *handlers.HealthHandler
	config        *config.Config
	logger        *zap.Logger
}

func NewRouter(
	avatarHandler *handlers.AvatarHandler,
	editorHandler *handlers.EditorHandler,
	healthHandler *handlers.HealthHandler,
	config *config.Config,
	logger *zap.Logger,
) *Router {
	return &Router{
		avatarHandler: avatarHandler,
		editorHandler: editorHandler,
		healthHandler: healthHandler,
		config:        config,
		logger:        logger,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(r.logger))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.CORS(r.config.Server.AllowedOrigins))
	router.Use(middleware.SecurityHeaders())

	avatarUpload := middleware.RequireMultipart(r.config.Avatar.MaxFileSize + formOverhead)
	sourceUpload := middleware.RequireMultipart(r.config.Editor.MaxSourceSize + formOverhead)

	// API version 1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.healthHandler.HealthCheck)
		v1.GET("/stats", r.healthHandler.GetStats)

		authed := v1.Group("", middleware.RequireUser(r.config.FallbackUserID()))

		avatar := authed.Group("/avatar")
		{
			avatar.PUT("", avatarUpload, r.avatarHandler.UploadAvatar)
			avatar.DELETE("", r.avatarHandler.RemoveAvatar)
		}

		sessions := authed.Group("/editor/sessions")
		{
			sessions.POST("", sourceUpload, r.editorHandler.CreateSession)
			sessions.GET("/:id", r.editorHandler.GetSession)
			sessions.DELETE("/:id", r.editorHandler.CancelSession)
			sessions.POST("/:id/image", sourceUpload, r.editorHandler.ReplaceImage)
			sessions.POST("/:id/zoom", r.editorHandler.Zoom)
			sessions.POST("/:id/rotate", r.editorHandler.Rotate)
			sessions.POST("/:id/flip", r.editorHandler.Flip)
			sessions.POST("/:id/pan", r.editorHandler.Pan)
			sessions.POST("/:id/reset", r.editorHandler.Reset)
			sessions.POST("/:id/crop", r.editorHandler.Crop)
			sessions.POST("/:id/save", r.editorHandler.Save)
		}
	}

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "Avatar studio is running",
		})
	})

	return router
}
