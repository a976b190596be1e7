package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Order statuses. Only paid and fulfilled orders can be downloaded.
const (
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusFulfilled = "fulfilled"
	OrderStatusRejected  = "rejected"
	OrderStatusCancelled = "cancelled"
)

var validate = validator.New()

type Order struct {
	ID               uuid.UUID      `db:"id" validate:"required"`
	SessionID        uuid.UUID      `db:"session_id" validate:"required"`
	SessionName      sql.NullString `db:"session_name"`
	Status           string         `db:"status" validate:"required,oneof=pending paid fulfilled rejected cancelled"`
	PublicToken      string         `db:"public_token" validate:"required"`
	SelectedPhotoIDs pq.StringArray `db:"selected_photo_ids" validate:"dive,uuid"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// Validate checks a row once when it enters the service. Downstream code
// trusts the result.
func (o *Order) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid order %s: %w", o.ID, err)
	}
	return nil
}

// Downloadable reports whether the order's payment allows a download.
func (o *Order) Downloadable() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusFulfilled
}

// PhotoIDs parses the selection. Validate has already rejected malformed ids.
func (o *Order) PhotoIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(o.SelectedPhotoIDs))
	for _, raw := range o.SelectedPhotoIDs {
		if id, err := uuid.Parse(raw); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

type Session struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	PhotoCounter int64     `db:"photo_counter"`
	CreatedAt    time.Time `db:"created_at"`
}

type Photo struct {
	ID          uuid.UUID `db:"id"`
	SessionID   uuid.UUID `db:"session_id"`
	Title       string    `db:"title"`
	StoragePath string    `db:"storage_path"`
	ContentType string    `db:"content_type"`
	SizeBytes   int64     `db:"size_bytes"`
	Sequence    int64     `db:"sequence"`
	CreatedAt   time.Time `db:"created_at"`
}
