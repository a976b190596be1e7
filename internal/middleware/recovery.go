package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"photo-studio-backend/internal/models"
)

// Recovery replaces gin.Recovery. Panics are logged through zap and answered
// with a JSON 500 when nothing was written yet. http.ErrAbortHandler is
// re-raised so net/http drops the connection instead of finishing the
// response: a half-sent archive must not look complete to the client.
func Recovery(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			l.Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", RequestIDValue(c)),
				zap.Stack("stack"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "internal server error",
				Code:    "INTERNAL_ERROR",
				Message: "unexpected error",
			})
		}()
		c.Next()
	}
}
