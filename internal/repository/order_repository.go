package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"photo-studio-backend/internal/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderRepository reads orders and records their fulfilment.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetOrder loads an order together with its session name.
func (r *OrderRepository) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	const query = `
		SELECT o.id, o.session_id, s.name AS session_name, o.status, o.public_token,
		       o.selected_photo_ids, o.created_at, o.updated_at
		FROM orders o
		LEFT JOIN sessions s ON s.id = o.session_id
		WHERE o.id = $1`

	var order models.Order
	if err := r.db.GetContext(ctx, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// MarkFulfilled moves a paid order to fulfilled. It reports false when the
// order was not in paid state, which makes repeat downloads a no-op.
func (r *OrderRepository) MarkFulfilled(ctx context.Context, id uuid.UUID) (bool, error) {
	const query = `
		UPDATE orders
		SET status = 'fulfilled', updated_at = NOW()
		WHERE id = $1 AND status = 'paid'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to fulfil order %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
