package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/pkg/db/models"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
)

// Line is a single stock mutation request.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Reserve decrements stock for every line inside the caller's transaction.
// Each decrement is one conditional UPDATE guarded by the current balance, so
// two concurrent reservations can never drive stock negative: the second
// writer matches zero rows and fails. The caller is expected to roll back the
// surrounding transaction on error, which undoes any earlier lines.
func Reserve(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction is required")
	}
	if err := validateLines(lines); err != nil {
		return err
	}

	for _, line := range lines {
		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND is_active = ? AND stock >= ?", line.ProductID, true, line.Quantity).
			Update("stock", gorm.Expr("stock - ?", line.Quantity))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "reserving stock")
		}
		if result.RowsAffected == 0 {
			return reservationFailure(ctx, tx, line)
		}
	}
	return nil
}

// Release returns stock to the products referenced by lines. Used when a
// reserved order is cancelled.
func Release(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction is required")
	}
	if err := validateLines(lines); err != nil {
		return err
	}

	for _, line := range lines {
		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", line.ProductID).
			Update("stock", gorm.Expr("stock + ?", line.Quantity))
		if result.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, result.Error, "releasing stock")
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
		}
	}
	return nil
}

// LinesFromItems converts frozen order items back into ledger lines.
func LinesFromItems(items []models.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func validateLines(lines []Line) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be positive for product %s", line.ProductID))
		}
	}
	return nil
}

// reservationFailure distinguishes a missing/inactive product from an
// insufficient balance after a zero-row conditional update.
func reservationFailure(ctx context.Context, tx *gorm.DB, line Line) error {
	var product models.Product
	err := tx.WithContext(ctx).First(&product, "id = ?", line.ProductID).Error
	if err == gorm.ErrRecordNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", line.ProductID))
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading product after failed reservation")
	}
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not available", product.Name)).
			WithDetails(map[string]any{"product": product.Name})
	}
	return pkgerrors.InsufficientStock(product.Name, line.Quantity, product.Stock)
}
