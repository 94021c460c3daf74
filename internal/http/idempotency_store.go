package httpapi

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/course-advisor-backend/internal/http/middleware"
	"github.com/tbourn/course-advisor-backend/internal/repo"
)

// idempotencyStore keeps recorded responses in the local SQLite database.
type idempotencyStore struct {
	db *gorm.DB
}

// NewIdempotencyStore adapts the repo idempotency table to
// middleware.IdempotencyStore.
func NewIdempotencyStore(db *gorm.DB) middleware.IdempotencyStore {
	return idempotencyStore{db: db}
}

func (s idempotencyStore) Lookup(ctx context.Context, scope, key string, now time.Time) (*middleware.Recorded, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, middleware.ErrNoRecord
	}
	if err != nil {
		return nil, err
	}
	return &middleware.Recorded{Status: rec.Status, Body: []byte(rec.Body)}, nil
}

// Save records rec. A concurrent request that recorded the same key first
// wins; its response is the one replayed.
func (s idempotencyStore) Save(ctx context.Context, scope, key string, rec middleware.Recorded, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, rec.Status, rec.Body, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}
