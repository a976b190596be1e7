package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// Sequencer hands out the per-session upload sequence numbers that order
// photos inside an archive. Each call returns a number no other call for
// the same session has seen.
type Sequencer interface {
	Next(ctx context.Context, sessionID uuid.UUID) (int64, error)
}

// SessionCounter increments sessions.photo_counter in a single statement,
// so Postgres row locking serialises concurrent uploads.
type SessionCounter struct {
	db *sqlx.DB
}

func NewSessionCounter(db *sqlx.DB) *SessionCounter {
	return &SessionCounter{db: db}
}

func (c *SessionCounter) Next(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	const query = `
		UPDATE sessions
		SET photo_counter = photo_counter + 1
		WHERE id = $1
		RETURNING photo_counter`

	var next int64
	if err := c.db.GetContext(ctx, &next, query, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to advance photo counter: %w", err)
	}
	return next, nil
}

// RedisSequencer uses INCR on one key per session.
type RedisSequencer struct {
	client redis.Cmdable
	prefix string
}

func NewRedisSequencer(client redis.Cmdable) *RedisSequencer {
	return &RedisSequencer{client: client, prefix: "photo-studio:session-seq:"}
}

func (s *RedisSequencer) Next(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	next, err := s.client.Incr(ctx, s.prefix+sessionID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to advance photo counter: %w", err)
	}
	return next, nil
}
