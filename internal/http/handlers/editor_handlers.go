package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/avatar-studio/internal/geometry"
	"github.com/phambaophuc/avatar-studio/internal/models"
	"github.com/phambaophuc/avatar-studio/internal/services/editor"
	"github.com/phambaophuc/avatar-studio/pkg/utils"
	"go.uber.org/zap"
)

const (
	imageParamKey = "image"
	sessionIDKey  = "id"
)

// PreviewRegistry holds uploaded source images for the editor.
type PreviewRegistry interface {
	editor.PreviewStore
	CreatePreview(ctx context.Context, data []byte) (string, error)
}

type EditorHandler struct {
	sessions      *editor.Manager
	previews      PreviewRegistry
	avatars       AvatarService
	maxSourceSize int64
	logger        *zap.Logger
}

func NewEditorHandler(
	sessions *editor.Manager,
	previews PreviewRegistry,
	avatars AvatarService,
	maxSourceSize int64,
	logger *zap.Logger,
) *EditorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EditorHandler{
		sessions:      sessions,
		previews:      previews,
		avatars:       avatars,
		maxSourceSize: maxSourceSize,
		logger:        logger,
	}
}

// === SESSION LIFECYCLE ===

// CreateSession opens a session on the multipart "image" file.
func (h *EditorHandler) CreateSession(c *gin.Context) {
	session := h.sessions.Create(userID(c))
	if err := h.loadUpload(c, session); err != nil {
		_ = h.sessions.Close(c.Request.Context(), session.ID(), session.Owner())
		respondServiceError(c, err, "Failed to open image")
		return
	}

	c.JSON(http.StatusCreated, models.APIResponse{
		Success: true,
		Data:    session.Snapshot(),
	})
}

// ReplaceImage loads a new file into an existing session.
func (h *EditorHandler) ReplaceImage(c *gin.Context) {
	h.withSession(c, func(s *editor.Session) error {
		return h.loadUpload(c, s)
	})
}

func (h *EditorHandler) GetSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Param(sessionIDKey), userID(c))
	if err != nil {
		respondServiceError(c, err, "Failed to load session")
		return
	}
	respondOK(c, session.Snapshot())
}

// CancelSession discards the edit and forgets the session.
func (h *EditorHandler) CancelSession(c *gin.Context) {
	if err := h.sessions.Close(c.Request.Context(), c.Param(sessionIDKey), userID(c)); err != nil {
		respondServiceError(c, err, "Failed to cancel session")
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true})
}

// === TRANSFORMS ===

func (h *EditorHandler) Zoom(c *gin.Context) {
	var req models.ZoomRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(s *editor.Session) error {
		return s.SetZoom(req.Zoom)
	})
}

func (h *EditorHandler) Rotate(c *gin.Context) {
	var req models.RotateRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(s *editor.Session) error {
		return s.RotateBy(req.Degrees)
	})
}

func (h *EditorHandler) Flip(c *gin.Context) {
	var req models.FlipRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(s *editor.Session) error {
		if req.Axis == models.FlipVertical {
			return s.ToggleFlipVertical()
		}
		return s.ToggleFlipHorizontal()
	})
}

func (h *EditorHandler) Pan(c *gin.Context) {
	var req models.PanRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(s *editor.Session) error {
		return s.Pan(req.DX, req.DY)
	})
}

func (h *EditorHandler) Reset(c *gin.Context) {
	h.withSession(c, func(s *editor.Session) error {
		return s.Reset()
	})
}

// Crop sets the crop area chosen by the client, in rotated-image pixels.
func (h *EditorHandler) Crop(c *gin.Context) {
	var req models.CropRequest
	if !bindJSON(c, &req) {
		return
	}
	h.withSession(c, func(s *editor.Session) error {
		return s.ReportCrop(geometry.Rect{
			X:      req.X,
			Y:      req.Y,
			Width:  req.Width,
			Height: req.Height,
		})
	})
}

// === SAVE ===

// Save exports the edit. The JPEG is returned as the body, or with
// ?upload=true it becomes the caller's avatar. The avatar is stored before
// the session lets go of its source, so a failed upload can be retried.
func (h *EditorHandler) Save(c *gin.Context) {
	session, err := h.sessions.Get(c.Param(sessionIDKey), userID(c))
	if err != nil {
		respondServiceError(c, err, "Failed to load session")
		return
	}

	ctx := c.Request.Context()
	upload := c.Query("upload") == "true"

	var stored *models.AvatarResult
	var commit editor.Commit
	if upload {
		owner := userID(c)
		commit = func(ctx context.Context, out *models.OutputImage) error {
			result, err := h.avatars.Upload(ctx, owner, out.Bytes)
			if err != nil {
				return err
			}
			stored = result
			return nil
		}
	}

	results, err := session.SaveWith(ctx, commit)
	if err != nil {
		respondServiceError(c, err, "Failed to save image")
		return
	}

	var res editor.SaveResult
	select {
	case res = <-results:
	case <-ctx.Done():
		h.logger.Warn("Client went away during save", zap.String("session_id", session.ID()))
		return
	}
	if res.Err != nil {
		if upload && !errors.Is(res.Err, editor.ErrExportFailed) {
			h.logger.Error("Failed to store edited avatar",
				zap.String("session_id", session.ID()),
				zap.Error(res.Err),
			)
			respondServiceError(c, res.Err, "Failed to update avatar")
			return
		}
		respondServiceError(c, res.Err, "Failed to export image")
		return
	}

	if upload {
		respondOK(c, stored)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", utils.ExportFileName(res.Output.FileName)))
	c.Data(http.StatusOK, res.Output.MIMEType, res.Output.Bytes)
}

// === HELPERS ===

func (h *EditorHandler) loadUpload(c *gin.Context, s *editor.Session) error {
	data, header, err := readUpload(c, imageParamKey, h.maxSourceSize)
	if err != nil {
		return err
	}

	ctx := c.Request.Context()
	handle, err := h.previews.CreatePreview(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to register preview: %w", err)
	}

	// LoadImage releases the preview itself when decoding fails.
	return s.LoadImage(ctx, editor.NewPreviewSource(h.previews, handle, header.Filename))
}

// withSession runs fn on the session named in the path and responds with the
// resulting snapshot.
func (h *EditorHandler) withSession(c *gin.Context, fn func(*editor.Session) error) {
	session, err := h.sessions.Get(c.Param(sessionIDKey), userID(c))
	if err != nil {
		respondServiceError(c, err, "Failed to load session")
		return
	}
	if err := fn(session); err != nil {
		respondServiceError(c, err, "Failed to update session")
		return
	}
	respondOK(c, session.Snapshot())
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return false
	}
	return true
}
