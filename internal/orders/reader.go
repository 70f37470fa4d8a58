package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/pkg/auth"
	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type storeLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
}

// Reader serves scoped order reads. Orders hidden from the caller by scoping
// rules surface as NotFound rather than Forbidden, so the API does not leak
// which order ids exist.
type Reader struct {
	repo   Repository
	stores storeLoader
	cache  *cache.Cache
	logg   *logger.Logger
}

func NewReader(repo Repository, stores storeLoader, cacheLayer *cache.Cache, logg *logger.Logger) (*Reader, error) {
	if repo == nil {
		return nil, errors.New("order reader requires a repository")
	}
	if stores == nil {
		return nil, errors.New("order reader requires a store loader")
	}
	return &Reader{repo: repo, stores: stores, cache: cacheLayer, logg: logg}, nil
}

// Get loads one order and enforces visibility for the actor.
func (r *Reader) Get(ctx context.Context, orderID uuid.UUID, actor auth.Actor) (*models.Order, error) {
	order, err := r.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	visible, err := r.visibleTo(ctx, order, actor)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// ListForCustomer returns the customer's own orders, newest first.
func (r *Reader) ListForCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	listings, err := r.repo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders")
	}
	return listings, nil
}

// ListForStore returns a store's orders after verifying the actor may see
// them: the owning merchant or an admin.
func (r *Reader) ListForStore(ctx context.Context, storeID uuid.UUID, actor auth.Actor) ([]models.Order, error) {
	if actor.Role != enums.UserRoleAdmin {
		store, err := r.stores.GetByID(ctx, storeID)
		if err != nil {
			return nil, err
		}
		if actor.Role != enums.UserRoleMerchant || store.OwnerID != actor.ID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "store access denied")
		}
	}

	listings, err := r.repo.ListByStore(ctx, storeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list store orders")
	}
	return listings, nil
}

func (r *Reader) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	key := r.cache.OrderKey(orderID)
	var cached models.Order
	if r.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	order, err := r.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	r.cache.SetJSON(ctx, key, order, r.cache.OrderTTL())
	return order, nil
}

func (r *Reader) visibleTo(ctx context.Context, order *models.Order, actor auth.Actor) (bool, error) {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return true, nil
	case enums.UserRoleCustomer:
		return order.CustomerID == actor.ID, nil
	case enums.UserRoleDriver:
		return order.DriverID != nil && *order.DriverID == actor.ID, nil
	case enums.UserRoleMerchant:
		store, err := r.stores.GetByID(ctx, order.StoreID)
		if err != nil {
			typed := pkgerrors.As(err)
			if typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				return false, nil
			}
			return false, err
		}
		return store.OwnerID == actor.ID, nil
	default:
		return false, nil
	}
}
