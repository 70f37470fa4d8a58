package products

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/internal/inventory"
	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type productRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActiveByStore(ctx context.Context, storeID uuid.UUID) ([]models.Product, error)
	UpdatePrice(ctx context.Context, id uuid.UUID, priceCents int) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog reads and the admin write paths that adjust
// listings. Stock moves exclusively through the inventory ledger so the
// non-negative guarantee holds on this path too.
type Service struct {
	repo  productRepository
	tx    txRunner
	cache *cache.Cache
	logg  *logger.Logger
}

func NewService(repo productRepository, tx txRunner, cacheLayer *cache.Cache, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("products service requires a repository")
	}
	if tx == nil {
		return nil, errors.New("products service requires a transaction runner")
	}
	return &Service{repo: repo, tx: tx, cache: cacheLayer, logg: logg}, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	key := s.cache.ProductKey(id)
	var cached models.Product
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	s.cache.SetJSON(ctx, key, product, s.cache.EntityTTL())
	return product, nil
}

func (s *Service) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Product, error) {
	key := s.cache.StoreProductsKey(storeID)
	var cached []models.Product
	if s.cache.GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	listings, err := s.repo.ListActiveByStore(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list store products")
	}
	s.cache.SetJSON(ctx, key, listings, s.cache.EntityTTL())
	return listings, nil
}

// AdjustStock moves stock by delta through the ledger: positive restocks,
// negative removes. A removal larger than the current balance fails the same
// way an oversized reservation does.
func (s *Service) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock delta must be non-zero")
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if delta > 0 {
			return inventory.Release(ctx, tx, []inventory.Line{{ProductID: productID, Quantity: delta}})
		}
		return inventory.Reserve(ctx, tx, []inventory.Line{{ProductID: productID, Quantity: -delta}})
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx, s.cache.ProductKeys(productID, product.StoreID)...)

	updated, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
	}
	return updated, nil
}

// UpdatePrice sets a new unit price. Existing order items keep the price
// captured at purchase time.
func (s *Service) UpdatePrice(ctx context.Context, productID uuid.UUID, priceCents int) (*models.Product, error) {
	if priceCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}

	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if err := s.repo.UpdatePrice(ctx, productID, priceCents); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update price")
	}

	s.cache.Invalidate(ctx, s.cache.ProductKeys(productID, product.StoreID)...)

	product.PriceCents = priceCents
	return product, nil
}
