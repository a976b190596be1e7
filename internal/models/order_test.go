package models_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"photo-studio-backend/internal/models"
)

func validOrder() *models.Order {
	return &models.Order{
		ID:               uuid.New(),
		SessionID:        uuid.New(),
		Status:           models.OrderStatusPaid,
		PublicToken:      "c2VjcmV0LXRva2Vu",
		SelectedPhotoIDs: pq.StringArray{uuid.NewString(), uuid.NewString()},
	}
}

func TestOrderValidate(t *testing.T) {
	assert.NoError(t, validOrder().Validate())

	tests := []struct {
		name   string
		mutate func(*models.Order)
	}{
		{"unknown status", func(o *models.Order) { o.Status = "shipped" }},
		{"empty status", func(o *models.Order) { o.Status = "" }},
		{"missing token", func(o *models.Order) { o.PublicToken = "" }},
		{"malformed photo id", func(o *models.Order) { o.SelectedPhotoIDs = pq.StringArray{"photo-1"} }},
		{"zero id", func(o *models.Order) { o.ID = uuid.Nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validOrder()
			tt.mutate(o)
			assert.Error(t, o.Validate())
		})
	}
}

func TestOrderDownloadable(t *testing.T) {
	for status, want := range map[string]bool{
		models.OrderStatusPending:   false,
		models.OrderStatusPaid:      true,
		models.OrderStatusFulfilled: true,
		models.OrderStatusRejected:  false,
		models.OrderStatusCancelled: false,
	} {
		o := validOrder()
		o.Status = status
		assert.Equal(t, want, o.Downloadable(), status)
	}
}

func TestOrderPhotoIDs(t *testing.T) {
	o := validOrder()
	ids := o.PhotoIDs()
	assert.Len(t, ids, 2)
	assert.Equal(t, o.SelectedPhotoIDs[0], ids[0].String())
}
