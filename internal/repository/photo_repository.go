package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"photo-studio-backend/internal/models"
)

const photoColumns = `id, session_id, title, storage_path, content_type, size_bytes, sequence, created_at`

type PhotoRepository struct {
	db *sqlx.DB
}

func NewPhotoRepository(db *sqlx.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create inserts a photo. The caller assigns ID and Sequence; CreatedAt is
// filled from the database.
func (r *PhotoRepository) Create(ctx context.Context, p *models.Photo) error {
	const query = `
		INSERT INTO photos (id, session_id, title, storage_path, content_type, size_bytes, sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID, p.SessionID, p.Title, p.StoragePath, p.ContentType, p.SizeBytes, p.Sequence,
	).Scan(&p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

func (r *PhotoRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Photo, error) {
	query := `SELECT ` + photoColumns + ` FROM photos WHERE session_id = $1 ORDER BY sequence, created_at`

	var photos []models.Photo
	if err := r.db.SelectContext(ctx, &photos, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

// ListByIDs returns the photos that still exist among ids, in upload order.
// Unknown ids are silently absent from the result.
func (r *PhotoRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Photo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `SELECT ` + photoColumns + ` FROM photos WHERE id = ANY($1::uuid[]) ORDER BY sequence, created_at`

	var photos []models.Photo
	if err := r.db.SelectContext(ctx, &photos, query, pq.Array(raw)); err != nil {
		return nil, fmt.Errorf("failed to list photos by id: %w", err)
	}
	return photos, nil
}
