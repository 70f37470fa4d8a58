package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/pkg/db/models"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
)

func TestReserveDecrementsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := seedProduct(t, db, "espresso beans", 5)
	productB := seedProduct(t, db, "oat milk", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []Line{
			{ProductID: productA, Quantity: 3},
			{ProductID: productB, Quantity: 1},
		})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if got := loadStock(t, db, productA); got != 2 {
		t.Fatalf("expected stock 2, got %d", got)
	}
	if got := loadStock(t, db, productB); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestReserveInsufficientStockRollsBackEarlierLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	productA := seedProduct(t, db, "espresso beans", 5)
	productB := seedProduct(t, db, "oat milk", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []Line{
			{ProductID: productA, Quantity: 2},
			{ProductID: productB, Quantity: 4},
		})
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}

	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["product"] != "oat milk" || details["requested"] != 4 || details["available"] != 1 {
		t.Fatalf("unexpected details %v", details)
	}

	// The transaction rolled back, so the first line's decrement is undone.
	if got := loadStock(t, db, productA); got != 5 {
		t.Fatalf("expected rollback to restore stock 5, got %d", got)
	}
}

func TestReserveRejectsInactiveProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := models.Product{ID: uuid.New(), StoreID: uuid.New(), Name: "retired item", Stock: 10, IsActive: false}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []Line{{ProductID: product.ID, Quantity: 1}})
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for inactive product, got %v", err)
	}
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(context.Background(), tx, []Line{{ProductID: uuid.New(), Quantity: 1}})
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestReserveInvalidQuantity(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	err := Reserve(context.Background(), db, []Line{{ProductID: uuid.New(), Quantity: 0}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestReleaseRestoresStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, "espresso beans", 2)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Release(ctx, tx, []Line{{ProductID: product, Quantity: 3}})
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := loadStock(t, db, product); got != 5 {
		t.Fatalf("expected stock 5 after release, got %d", got)
	}
}

func TestLinesFromItems(t *testing.T) {
	t.Parallel()

	productID := uuid.New()
	lines := LinesFromItems([]models.OrderItem{
		{ProductID: productID, Quantity: 2, ProductName: "espresso beans"},
	})
	if len(lines) != 1 || lines[0].ProductID != productID || lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", lines)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, stock int) uuid.UUID {
	t.Helper()
	product := models.Product{
		ID:         uuid.New(),
		StoreID:    uuid.New(),
		Name:       name,
		PriceCents: 500,
		Stock:      stock,
		IsActive:   true,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product.ID
}

func loadStock(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return product.Stock
}
