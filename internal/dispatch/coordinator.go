package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/internal/notifications"
	"github.com/entrega-app/entrega-backend/internal/orders"
	"github.com/entrega-app/entrega-backend/pkg/cache"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Coordinator owns driver assignment. Accept and the reclaim sweep use the
// same discipline: an exclusive lock on the order row for the duration of
// the check-and-set, never held across cache or notification calls.
type Coordinator struct {
	repo     orders.Repository
	tx       txRunner
	cache    *cache.Cache
	notifier notifications.Notifier
	logg     *logger.Logger
	expiry   time.Duration
	now      func() time.Time
}

// Params collects the coordinator dependencies.
type Params struct {
	Repo             orders.Repository
	Tx               txRunner
	Cache            *cache.Cache
	Notifier         notifications.Notifier
	Logger           *logger.Logger
	AssignmentExpiry time.Duration
	Now              func() time.Time
}

const defaultAssignmentExpiry = 10 * time.Minute

// NewCoordinator builds the dispatch coordinator.
func NewCoordinator(params Params) (*Coordinator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	expiry := params.AssignmentExpiry
	if expiry <= 0 {
		expiry = defaultAssignmentExpiry
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Coordinator{
		repo:     params.Repo,
		tx:       params.Tx,
		cache:    params.Cache,
		notifier: params.Notifier,
		logg:     params.Logger,
		expiry:   expiry,
		now:      now,
	}, nil
}

// Accept binds the order to the driver. It succeeds when the order is
// unassigned and still open, or when the current assignment is older than
// the expiry window and may be stolen. At most one driver ever holds a
// non-expired assignment: losers fail on the row lock recheck.
func (c *Coordinator) Accept(ctx context.Context, orderID, driverID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "driver identity missing")
	}

	var accepted models.Order
	var previous enums.OrderStatus
	var evicted *uuid.UUID

	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading order")
		}

		now := c.now()
		if err := c.checkAcceptable(order, driverID, now); err != nil {
			return err
		}

		previous = order.Status
		evicted = order.DriverID

		updates := map[string]any{
			"driver_id":   driverID,
			"status":      enums.OrderStatusAssigned,
			"assigned_at": now,
			"updated_at":  now,
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "assigning driver")
		}

		accepted = *order
		accepted.DriverID = &driverID
		accepted.Status = enums.OrderStatusAssigned
		accepted.AssignedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.afterCommit(ctx, &accepted, previous, evicted)
	return &accepted, nil
}

// checkAcceptable encodes the acceptance rule: open and unassigned, or
// assigned but past the expiry window.
func (c *Coordinator) checkAcceptable(order *models.Order, driverID uuid.UUID, now time.Time) error {
	switch order.Status {
	case enums.OrderStatusPending, enums.OrderStatusConfirmed:
		if order.DriverID == nil {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "order already has a driver")
	case enums.OrderStatusAssigned:
		if order.DriverID != nil && *order.DriverID == driverID {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already assigned to this driver")
		}
		if order.AssignedAt != nil && now.Sub(*order.AssignedAt) > c.expiry {
			// Stale assignment: steal it.
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "order already assigned to another driver")
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("order in status %s cannot be accepted", order.Status))
	}
}

// ReclaimStale reverts every assignment older than the expiry window back to
// confirmed with the driver cleared. Each order is re-read under the row
// lock so a pickup that lands between the scan and the sweep wins. Returns
// the number of reclaimed orders; per-order failures are aggregated and do
// not stop the sweep.
func (c *Coordinator) ReclaimStale(ctx context.Context) (int, error) {
	cutoff := c.now().Add(-c.expiry)

	ids, err := c.repo.ListStaleAssignedIDs(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scanning stale assignments: %w", err)
	}

	var reclaimed int
	var errs error
	for _, id := range ids {
		ok, err := c.reclaimOne(ctx, id, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reclaim order %s: %w", id, err))
			continue
		}
		if ok {
			reclaimed++
		}
	}
	return reclaimed, errs
}

func (c *Coordinator) reclaimOne(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error) {
	var reverted models.Order
	var previousDriver *uuid.UUID
	reclaimed := false

	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)

		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		// Recheck under lock: the driver may have picked up, or another
		// driver may have stolen the assignment, since the scan.
		if order.Status != enums.OrderStatusAssigned ||
			order.AssignedAt == nil ||
			!order.AssignedAt.Before(cutoff) {
			return nil
		}

		previousDriver = order.DriverID
		updates := map[string]any{
			"driver_id":   nil,
			"status":      enums.OrderStatusConfirmed,
			"assigned_at": nil,
			"updated_at":  c.now(),
		}
		if err := repo.Update(ctx, order.ID, updates); err != nil {
			return err
		}

		reverted = *order
		reverted.DriverID = nil
		reverted.Status = enums.OrderStatusConfirmed
		reverted.AssignedAt = nil
		reclaimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !reclaimed {
		return false, nil
	}

	if c.logg != nil {
		logCtx := c.logg.WithOrderID(ctx, reverted.ID.String())
		c.logg.Info(logCtx, "stale assignment reclaimed")
	}
	c.afterCommit(ctx, &reverted, enums.OrderStatusAssigned, previousDriver)
	return true, nil
}

// afterCommit invalidates the caches touched by an assignment change and
// emits the status-change event. Runs strictly outside the row lock.
func (c *Coordinator) afterCommit(ctx context.Context, order *models.Order, previous enums.OrderStatus, evictedDriver *uuid.UUID) {
	if c.cache != nil {
		keys := c.cache.OrderKeys(order.ID, order.DriverID)
		if evictedDriver != nil && (order.DriverID == nil || *evictedDriver != *order.DriverID) {
			keys = append(keys,
				c.cache.DriverDeliveriesKey(*evictedDriver),
				c.cache.DriverStatsKey(*evictedDriver))
		}
		c.cache.Invalidate(ctx, keys...)
	}

	if c.notifier != nil {
		c.notifier.OrderStatusChanged(ctx, notifications.OrderEvent{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			StoreID:    order.StoreID,
			DriverID:   order.DriverID,
			Previous:   previous,
			Current:    order.Status,
			OccurredAt: c.now(),
		})
	}
}
