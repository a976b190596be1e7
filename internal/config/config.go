package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	StorageSupabase = "supabase"
	StorageMinio    = "minio"

	SequencePostgres = "postgres"
	SequenceRedis    = "redis"

	ArchiveModeStream   = "stream"
	ArchiveModeBuffered = "buffered"
)

type Config struct {
	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseJWTSecret     string
	SupabaseStorageBucket string

	// Storage
	StorageDriver  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	// Database
	DatabaseURL    string
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Redis
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SequenceBackend string

	// Archive downloads
	ArchiveMode                string
	ArchiveDownloadConcurrency int
	ArchiveCopyBufferSize      int
	ArchiveFallbackName        string

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	Port        string
	Environment string
	BaseURL     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		SupabaseURL:           v.GetString("SUPABASE_URL"),
		SupabaseServiceKey:    v.GetString("SUPABASE_SERVICE_KEY"),
		SupabaseJWTSecret:     v.GetString("SUPABASE_JWT_SECRET"),
		SupabaseStorageBucket: v.GetString("SUPABASE_STORAGE_BUCKET"),

		StorageDriver:  strings.ToLower(v.GetString("STORAGE_DRIVER")),
		MinioEndpoint:  v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey: v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey: v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:    v.GetString("MINIO_BUCKET"),
		MinioUseSSL:    v.GetBool("MINIO_USE_SSL"),

		DatabaseURL:    v.GetString("DATABASE_URL"),
		DBMaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),

		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		SequenceBackend: strings.ToLower(v.GetString("SEQUENCE_BACKEND")),

		ArchiveMode:                strings.ToLower(v.GetString("ARCHIVE_MODE")),
		ArchiveDownloadConcurrency: v.GetInt("ARCHIVE_DOWNLOAD_CONCURRENCY"),
		ArchiveCopyBufferSize:      v.GetInt("ARCHIVE_COPY_BUFFER_SIZE"),
		ArchiveFallbackName:        v.GetString("ARCHIVE_FALLBACK_NAME"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		BaseURL:     v.GetString("BASE_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", EnvDevelopment)
	v.SetDefault("BASE_URL", "http://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("SUPABASE_STORAGE_BUCKET", "photos")
	v.SetDefault("STORAGE_DRIVER", StorageSupabase)
	v.SetDefault("MINIO_BUCKET", "photos")
	v.SetDefault("MINIO_USE_SSL", false)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SEQUENCE_BACKEND", SequencePostgres)

	v.SetDefault("ARCHIVE_MODE", ArchiveModeStream)
	v.SetDefault("ARCHIVE_DOWNLOAD_CONCURRENCY", 4)
	v.SetDefault("ARCHIVE_COPY_BUFFER_SIZE", 32*1024)
	v.SetDefault("ARCHIVE_FALLBACK_NAME", "fotos")
}

func (c *Config) Validate() error {
	if c.SupabaseJWTSecret == "" {
		return errors.New("SUPABASE_JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	switch c.StorageDriver {
	case StorageSupabase:
		if c.SupabaseURL == "" {
			return errors.New("SUPABASE_URL is required")
		}
		if c.SupabaseServiceKey == "" {
			return errors.New("SUPABASE_SERVICE_KEY is required")
		}
	case StorageMinio:
		if c.MinioEndpoint == "" {
			return errors.New("MINIO_ENDPOINT is required")
		}
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return errors.New("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch c.SequenceBackend {
	case SequencePostgres:
	case SequenceRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required")
		}
	default:
		return fmt.Errorf("unknown SEQUENCE_BACKEND %q", c.SequenceBackend)
	}

	switch c.ArchiveMode {
	case ArchiveModeStream, ArchiveModeBuffered:
	default:
		return fmt.Errorf("unknown ARCHIVE_MODE %q", c.ArchiveMode)
	}

	return nil
}

// StorageBucket is the bucket of the selected storage driver.
func (c *Config) StorageBucket() string {
	if c.StorageDriver == StorageMinio {
		return c.MinioBucket
	}
	return c.SupabaseStorageBucket
}
