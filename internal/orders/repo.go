package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error)
	ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Order, error)
	ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error)
	ListAvailable(ctx context.Context) ([]models.Order, error)
	ListStaleAssignedIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate loads the order under an exclusive row lock. The lock is
// held until the surrounding transaction commits; callers must not perform
// cache or notification calls while holding it. SQLite has no row locks, so
// the clause is applied on Postgres only; SQLite writers serialize on the
// database lock instead.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var order models.Order
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "customer_id = ?", customerID)
}

func (r *repository) ListByStore(ctx context.Context, storeID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "store_id = ?", storeID)
}

func (r *repository) ListByDriver(ctx context.Context, driverID uuid.UUID) ([]models.Order, error) {
	return r.list(ctx, "driver_id = ?", driverID)
}

// ListAvailable returns orders a driver may accept: confirmed and unassigned.
func (r *repository) ListAvailable(ctx context.Context) ([]models.Order, error) {
	return r.list(ctx, "status = ? AND driver_id IS NULL", enums.OrderStatusConfirmed)
}

// ListStaleAssignedIDs returns ids of orders assigned before the cutoff.
// Only ids are fetched; the reclaimer re-reads each row under lock before
// mutating it.
func (r *repository) ListStaleAssignedIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND assigned_at IS NOT NULL AND assigned_at < ?", enums.OrderStatusAssigned, cutoff).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) list(ctx context.Context, cond string, args ...any) ([]models.Order, error) {
	var list []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where(cond, args...).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
