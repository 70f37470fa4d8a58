package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/internal/inventory"
	"github.com/entrega-app/entrega-backend/internal/notifications"
	"github.com/entrega-app/entrega-backend/pkg/auth"
	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

// StateMachine applies status transitions under the role capability table.
// Every transition runs inside a transaction holding an exclusive lock on
// the order row; cache invalidation and notifications happen only after
// commit.
type StateMachine struct {
	repo     Repository
	tx       txRunner
	cache    *cache.Cache
	notifier notifications.Notifier
	logg     *logger.Logger
}

// NewStateMachine builds the order state machine.
func NewStateMachine(repo Repository, tx txRunner, cacheLayer *cache.Cache, notifier notifications.Notifier, logg *logger.Logger) (*StateMachine, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &StateMachine{repo: repo, tx: tx, cache: cacheLayer, notifier: notifier, logg: logg}, nil
}

// Transition moves the order to input.Target on behalf of input.Actor.
// Cancellation additionally releases reserved stock and clears the driver
// binding.
func (s *StateMachine) Transition(ctx context.Context, input TransitionInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Actor.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown status %q", input.Target))
	}

	var updated models.Order
	var previous enums.OrderStatus
	var previousDriver *uuid.UUID

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, input.OrderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
		}

		if err := s.authorize(ctx, tx, order, input.Actor); err != nil {
			return err
		}
		if !CanTransition(input.Actor.Role, order.Status, input.Target) {
			return pkgerrors.InvalidTransition(order.Status.String(), input.Target.String())
		}

		previous = order.Status
		previousDriver = order.DriverID

		updates := map[string]any{"status": input.Target, "updated_at": time.Now().UTC()}
		var items []models.OrderItem
		if input.Target == enums.OrderStatusCancelled {
			items, err = repo.FindItems(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order items")
			}
			if len(items) > 0 {
				if err := inventory.Release(ctx, tx, inventory.LinesFromItems(items)); err != nil {
					return err
				}
			}
			updates["driver_id"] = nil
			updates["assigned_at"] = nil
		}

		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "updating order status")
		}

		updated = *order
		updated.Status = input.Target
		if input.Target == enums.OrderStatusCancelled {
			updated.DriverID = nil
			updated.AssignedAt = nil
			updated.Items = items
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, &updated, previous, previousDriver)
	return &updated, nil
}

// authorize enforces the ownership rules layered on the capability table:
// a driver may only touch an order assigned to them, a merchant only orders
// for a store they own.
func (s *StateMachine) authorize(ctx context.Context, tx *gorm.DB, order *models.Order, actor auth.Actor) error {
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleDriver:
		if order.DriverID == nil || *order.DriverID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to this driver")
		}
		return nil
	case enums.UserRoleMerchant:
		var store models.Store
		err := tx.WithContext(ctx).First(&store, "id = ?", order.StoreID).Error
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading store")
		}
		if store.OwnerID != actor.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to this merchant")
		}
		return nil
	case enums.UserRoleCustomer:
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers cannot change order status")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("role %q cannot change order status", actor.Role))
	}
}

func (s *StateMachine) afterCommit(ctx context.Context, order *models.Order, previous enums.OrderStatus, previousDriver *uuid.UUID) {
	if s.cache != nil {
		driverID := order.DriverID
		if driverID == nil {
			driverID = previousDriver
		}
		s.cache.Invalidate(ctx, s.cache.OrderKeys(order.ID, driverID)...)
		if order.Status == enums.OrderStatusCancelled {
			// Released stock changes every touched product snapshot.
			keys := []string{s.cache.StoreProductsKey(order.StoreID)}
			for _, item := range order.Items {
				keys = append(keys, s.cache.ProductKey(item.ProductID))
			}
			s.cache.Invalidate(ctx, keys...)
		}
	}

	if s.notifier != nil {
		s.notifier.OrderStatusChanged(ctx, notifications.OrderEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			StoreID:    order.StoreID,
			DriverID:   order.DriverID,
			Previous:   previous,
			Current:    order.Status,
			OccurredAt: time.Now().UTC(),
		})
	}
}
