package handlers

import (
	"github.com/gin-gonic/gin"

	"photo-studio-backend/internal/apperrors"
	"photo-studio-backend/internal/models"
)

// respondError renders err as a JSON error body and aborts the chain.
// Causes are recorded on the context for the request logger, never sent.
func respondError(c *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.Err != nil {
		_ = c.Error(appErr.Err)
	}
	c.AbortWithStatusJSON(appErr.Status, models.ErrorResponse{
		Error: appErr.Message,
		Code:  appErr.Code,
	})
}
