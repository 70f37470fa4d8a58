package idempotency

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/entrega-app/entrega-backend/pkg/db/models"
)

// Store persists captured responses keyed by request fingerprint.
type Store interface {
	Find(ctx context.Context, fingerprint string) (*models.IdempotencyKey, error)
	// Save inserts the record unless the fingerprint already exists.
	// Returns (false, nil) when a concurrent writer won the race; the
	// unique index on fingerprint is the sole dedup mechanism.
	Save(ctx context.Context, record *models.IdempotencyKey) (bool, error)
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type store struct {
	db *gorm.DB
}

// NewStore builds an idempotency store bound to the provided DB.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Find(ctx context.Context, fingerprint string) (*models.IdempotencyKey, error) {
	var record models.IdempotencyKey
	err := s.db.WithContext(ctx).
		Where("fingerprint = ?", fingerprint).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *store) Save(ctx context.Context, record *models.IdempotencyKey) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "fingerprint"}},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *store) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IdempotencyKey{})
	return result.RowsAffected, result.Error
}
