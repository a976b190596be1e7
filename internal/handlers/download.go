package handlers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"photo-studio-backend/internal/apperrors"
	"photo-studio-backend/internal/archive"
	"photo-studio-backend/internal/middleware"
	"photo-studio-backend/internal/models"
	"photo-studio-backend/internal/services"
)

type DownloadHandler struct {
	downloads   *services.DownloadService
	defaultMode string
	logger      *zap.Logger
}

func NewDownloadHandler(downloads *services.DownloadService, defaultMode string, logger *zap.Logger) *DownloadHandler {
	if defaultMode == "" {
		defaultMode = archive.ModeStream
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DownloadHandler{downloads: downloads, defaultMode: defaultMode, logger: logger}
}

// Download godoc
// @Summary     Download an order as a ZIP archive
// @Description Bundles the order's selected photos into one uncompressed ZIP.
// @Description Streamed by default with no Content-Length; a failure after the first byte
// @Description tears the connection down. mode=buffered builds the archive in memory first.
// @Tags        orders
// @Produce     application/zip
// @Security    Bearer
// @Param       order_id path string true "Order ID (UUID)"
// @Param       token query string false "Order public token (not needed with an admin JWT)"
// @Param       mode query string false "stream or buffered"
// @Success     200 {file} binary
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /orders/{order_id}/download [get]
func (h *DownloadHandler) Download(c *gin.Context) {
	var query models.DownloadQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, apperrors.Clone(apperrors.ErrValidation, "invalid mode"))
		return
	}
	mode := query.Mode
	if mode == "" {
		mode = h.defaultMode
	}

	plan, err := h.downloads.Prepare(c.Request.Context(), services.DownloadRequest{
		OrderID: c.Param("order_id"),
		Token:   query.Token,
		IsAdmin: middleware.IsAdmin(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if mode == archive.ModeBuffered {
		h.buffered(c, plan)
		return
	}
	h.stream(c, plan)
}

func (h *DownloadHandler) buffered(c *gin.Context, plan *services.DownloadPlan) {
	data, err := h.downloads.Buffer(c.Request.Context(), plan)
	if err != nil {
		if archive.IsCanceled(err) {
			c.Abort()
			return
		}
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, int64(len(data)), "application/zip", bytes.NewReader(data), map[string]string{
		"Content-Disposition": contentDisposition(plan.FileName),
	})
	if len(c.Errors) > 0 {
		h.logger.Debug("buffered archive not fully delivered",
			zap.String("order_id", plan.Order.ID.String()),
			zap.Error(c.Errors.Last()),
		)
		return
	}
	h.downloads.Complete(c.Request.Context(), plan)
}

// stream sends the archive as it is produced. Once bytes are on the wire the
// only way to report a failure is to drop the connection, which is what
// panicking with http.ErrAbortHandler does.
func (h *DownloadHandler) stream(c *gin.Context, plan *services.DownloadPlan) {
	header := c.Writer.Header()
	header.Set("Content-Type", "application/zip")
	header.Set("Content-Disposition", contentDisposition(plan.FileName))
	header.Set("Cache-Control", "no-store")
	header.Set("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)

	n, err := h.downloads.Stream(c.Request.Context(), plan, &flushWriter{w: c.Writer})
	if err == nil {
		return
	}
	if archive.IsCanceled(err) {
		c.Abort()
		return
	}
	if n == 0 && !c.Writer.Written() {
		for _, key := range []string{"Content-Type", "Content-Disposition", "X-Content-Type-Options"} {
			header.Del(key)
		}
		respondError(c, apperrors.WithCause(apperrors.ErrArchiveBuild, err))
		return
	}
	panic(http.ErrAbortHandler)
}

func contentDisposition(fileName string) string {
	return fmt.Sprintf(`attachment; filename="%s"`, fileName)
}

// flushWriter pushes every chunk to the client so the response is not held
// in the server's buffer.
type flushWriter struct {
	w gin.ResponseWriter
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err != nil {
		return n, err
	}
	f.w.Flush()
	return n, nil
}

var _ io.Writer = (*flushWriter)(nil)
