package models

import "time"

type PhotoResponse struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Title       string    `json:"title"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Sequence    int64     `json:"sequence"`
	CreatedAt   time.Time `json:"created_at"`
}

type PhotosResponse struct {
	Photos []PhotoResponse `json:"photos"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func NewPhotoResponse(p *Photo) PhotoResponse {
	return PhotoResponse{
		ID:          p.ID.String(),
		SessionID:   p.SessionID.String(),
		Title:       p.Title,
		StoragePath: p.StoragePath,
		ContentType: p.ContentType,
		SizeBytes:   p.SizeBytes,
		Sequence:    p.Sequence,
		CreatedAt:   p.CreatedAt,
	}
}
