package stores

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type storeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error)
}

// Service exposes read-through cached store lookups.
type Service struct {
	repo  storeRepository
	cache *cache.Cache
	logg  *logger.Logger
}

func NewService(repo storeRepository, cacheLayer *cache.Cache, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("stores service requires a repository")
	}
	return &Service{repo: repo, cache: cacheLayer, logg: logg}, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error) {
	key := s.cache.StoreKey(id)
	var cached models.Store
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	s.cache.SetJSON(ctx, key, store, s.cache.EntityTTL())
	return store, nil
}

// ListByOwner returns the merchant's stores. Owner listings are small and
// rarely read, so they skip the cache.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Store, error) {
	stores, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stores by owner")
	}
	return stores, nil
}
