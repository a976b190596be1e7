package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"photo-studio-backend/internal/apperrors"
	"photo-studio-backend/internal/models"
	"photo-studio-backend/internal/repository"
	"photo-studio-backend/internal/storage"
)

type PhotoWriter interface {
	Create(ctx context.Context, p *models.Photo) error
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Photo, error)
}

// Upload is one incoming original.
type Upload struct {
	SessionID   uuid.UUID
	Title       string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type PhotoService struct {
	photos    PhotoWriter
	sequencer repository.Sequencer
	store     storage.Store
	logger    *zap.Logger
}

func NewPhotoService(photos PhotoWriter, sequencer repository.Sequencer, store storage.Store, logger *zap.Logger) *PhotoService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhotoService{photos: photos, sequencer: sequencer, store: store, logger: logger}
}

// Register stores an original and records it with the session's next
// sequence number. The number is taken first so unknown sessions never leave
// orphaned objects behind.
func (s *PhotoService) Register(ctx context.Context, up Upload) (*models.Photo, error) {
	seq, err := s.sequencer.Next(ctx, up.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, apperrors.Clone(apperrors.ErrNotFound, "session not found")
		}
		return nil, apperrors.WithCause(apperrors.ErrInternal, err)
	}

	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = strings.TrimSuffix(path.Base(up.FileName), path.Ext(up.FileName))
	}

	photo := &models.Photo{
		ID:          uuid.New(),
		SessionID:   up.SessionID,
		Title:       title,
		ContentType: up.ContentType,
		SizeBytes:   up.Size,
		Sequence:    seq,
	}
	photo.StoragePath = ObjectPath(up.SessionID, photo.ID, up.FileName)

	if err := s.store.Upload(ctx, photo.StoragePath, up.Body, up.Size, up.ContentType); err != nil {
		return nil, apperrors.WithCause(apperrors.ErrInternal, fmt.Errorf("failed to upload original: %w", err))
	}

	if err := s.photos.Create(ctx, photo); err != nil {
		if delErr := s.store.Delete(context.WithoutCancel(ctx), photo.StoragePath); delErr != nil {
			s.logger.Warn("failed to remove orphaned original",
				zap.String("path", photo.StoragePath),
				zap.Error(delErr),
			)
		}
		return nil, apperrors.WithCause(apperrors.ErrInternal, err)
	}

	s.logger.Info("photo registered",
		zap.String("session_id", up.SessionID.String()),
		zap.String("photo_id", photo.ID.String()),
		zap.Int64("sequence", seq),
	)
	return photo, nil
}

func (s *PhotoService) List(ctx context.Context, sessionID uuid.UUID) ([]models.Photo, error) {
	photos, err := s.photos.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, apperrors.WithCause(apperrors.ErrInternal, err)
	}
	return photos, nil
}

// ObjectPath is where an original lives in the bucket.
func ObjectPath(sessionID, photoID uuid.UUID, fileName string) string {
	return fmt.Sprintf("sessions/%s/%s%s", sessionID, photoID, strings.ToLower(path.Ext(fileName)))
}
