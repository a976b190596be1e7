// @title           Photo Studio Backend API
// @version         1.0.0
// @description     Backoffice API for a photo studio: session photo uploads and ZIP downloads of paid orders.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"photo-studio-backend/internal/config"
	"photo-studio-backend/internal/database"
	"photo-studio-backend/internal/handlers"
	"photo-studio-backend/internal/logger"
	"photo-studio-backend/internal/metrics"
	"photo-studio-backend/internal/repository"
	"photo-studio-backend/internal/services"
	"photo-studio-backend/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	l, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = l.Sync() }()

	// Set Gin mode
	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database and migrations
	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		l.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.NewMigrator(db, l).Run(ctx); err != nil {
		l.Fatal("migrations failed", zap.Error(err))
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		l.Fatal("failed to initialize storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	checks := map[string]handlers.Pinger{"postgres": db}

	// Sequence numbers come from Postgres unless Redis is configured
	var sequencer repository.Sequencer = repository.NewSessionCounter(db)
	if cfg.SequenceBackend == config.SequenceRedis {
		rdb, err := repository.NewRedis(ctx, cfg)
		if err != nil {
			l.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer rdb.Close()
		sequencer = repository.NewRedisSequencer(rdb)
		checks["redis"] = handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	m := metrics.New()
	orders := repository.NewOrderRepository(db)
	photos := repository.NewPhotoRepository(db)

	downloadService := services.NewDownloadService(orders, photos, store, m, l, services.DownloadOptions{
		FallbackName:   cfg.ArchiveFallbackName,
		Concurrency:    cfg.ArchiveDownloadConcurrency,
		CopyBufferSize: cfg.ArchiveCopyBufferSize,
	})
	photoService := services.NewPhotoService(photos, sequencer, store, l)

	router := handlers.NewRouter(cfg, l, m, handlers.Routes{
		Health:    handlers.NewHealthHandler(checks),
		Downloads: handlers.NewDownloadHandler(downloadService, cfg.ArchiveMode, l),
		Photos:    handlers.NewPhotosHandler(photoService),
	})

	// No write timeout: archive streams last as long as the client keeps reading
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		l.Info("server starting", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorageDriver == config.StorageMinio {
		return storage.NewMinioStore(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.StorageBucket())
}
