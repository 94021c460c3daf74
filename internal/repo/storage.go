package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/course-advisor-backend/internal/credentials"
	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// ClientStorage is a durable key/value store on the client_storage table.
// It satisfies credentials.Storage.
type ClientStorage struct {
	db *gorm.DB
}

// NewClientStorage returns a ClientStorage using db.
func NewClientStorage(db *gorm.DB) *ClientStorage {
	return &ClientStorage{db: db}
}

var _ credentials.Storage = (*ClientStorage)(nil)

// GetItem returns the value stored under key, or credentials.ErrNotFound.
func (s *ClientStorage) GetItem(ctx context.Context, key string) (string, error) {
	var it domain.StoredItem
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", credentials.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return it.Value, nil
}

// SetItem upserts value under key.
func (s *ClientStorage) SetItem(ctx context.Context, key, value string) error {
	it := domain.StoredItem{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&it).Error
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *ClientStorage) RemoveItem(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("key = ?", key).Delete(&domain.StoredItem{}).Error
}
