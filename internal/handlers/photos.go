package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"photo-studio-backend/internal/apperrors"
	"photo-studio-backend/internal/models"
	"photo-studio-backend/internal/services"
)

const maxUploadMemory = 32 << 20

type PhotosHandler struct {
	photos *services.PhotoService
}

func NewPhotosHandler(photos *services.PhotoService) *PhotosHandler {
	return &PhotosHandler{photos: photos}
}

// Upload godoc
// @Summary     Upload a photo original
// @Description Stores the file and appends it to the session with the next sequence number.
// @Tags        photos
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID (UUID)"
// @Param       photo formData file true "Original image"
// @Param       title formData string false "Title used to name the file in downloads"
// @Success     201 {object} models.PhotoResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/photos [post]
func (h *PhotosHandler) Upload(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "invalid session id"))
		return
	}

	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "failed to parse multipart form"))
		return
	}
	var req models.UploadPhotoRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "invalid title"))
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "photo file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "failed to read photo file"))
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	photo, err := h.photos.Register(c.Request.Context(), services.Upload{
		SessionID:   sessionID,
		Title:       req.Title,
		FileName:    fileHeader.Filename,
		ContentType: contentType,
		Size:        fileHeader.Size,
		Body:        file,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.NewPhotoResponse(photo))
}

// List godoc
// @Summary     List a session's photos
// @Tags        photos
// @Produce     json
// @Security    Bearer
// @Param       session_id path string true "Session ID (UUID)"
// @Success     200 {object} models.PhotosResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /sessions/{session_id}/photos [get]
func (h *PhotosHandler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "invalid session id"))
		return
	}

	photos, err := h.photos.List(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := models.PhotosResponse{Photos: make([]models.PhotoResponse, 0, len(photos))}
	for i := range photos {
		resp.Photos = append(resp.Photos, models.NewPhotoResponse(&photos[i]))
	}
	c.JSON(http.StatusOK, resp)
}
