package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"photo-studio-backend/internal/config"
	"photo-studio-backend/internal/logger"
	"photo-studio-backend/internal/metrics"
	"photo-studio-backend/internal/middleware"
)

type Routes struct {
	Health    *HealthHandler
	Downloads *DownloadHandler
	Photos    *PhotosHandler
}

// NewRouter wires the middleware chain and every route.
func NewRouter(cfg *config.Config, l *zap.Logger, m *metrics.Metrics, routes Routes) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(l),
		logger.GinMiddleware(l),
		middleware.Metrics(m),
	)

	// Health and metrics (no auth)
	router.GET("/health", routes.Health.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	api := router.Group("/api/v1")

	// Downloads authorise with the order token or an admin JWT
	api.GET("/orders/:order_id/download", middleware.OptionalAuth(cfg), routes.Downloads.Download)

	admin := api.Group("")
	admin.Use(middleware.AuthMiddleware(cfg))
	admin.POST("/sessions/:session_id/photos", routes.Photos.Upload)
	admin.GET("/sessions/:session_id/photos", routes.Photos.List)

	return router
}
