package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		store_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price_cents INTEGER NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error
	require.NoError(t, err)
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, storeID uuid.UUID, name string, priceCents, stock int, active bool) uuid.UUID {
	t.Helper()

	id := uuid.New()
	err := db.Exec(
		`INSERT INTO products (id, store_id, name, price_cents, stock, is_active) VALUES (?, ?, ?, ?, ?, ?)`,
		id, storeID, name, priceCents, stock, active,
	).Error
	require.NoError(t, err)
	return id
}

func newService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	service, err := NewService(NewRepository(db), gormTxRunner{db: db}, nil, nil)
	require.NoError(t, err)
	return service
}

func TestGetByID(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newService(t, db)

	id := seedProduct(t, db, uuid.New(), "empanadas", 800, 12, true)

	product, err := service.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "empanadas", product.Name)
	assert.Equal(t, 800, product.PriceCents)
	assert.Equal(t, 12, product.Stock)
}

func TestListByStoreSkipsInactive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newService(t, db)
	storeID := uuid.New()

	seedProduct(t, db, storeID, "arepas", 600, 5, true)
	seedProduct(t, db, storeID, "descontinuado", 100, 0, false)
	seedProduct(t, db, uuid.New(), "ajeno", 300, 2, true)

	listings, err := service.ListByStore(context.Background(), storeID)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "arepas", listings[0].Name)
}

func TestAdjustStockRestocks(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newService(t, db)

	id := seedProduct(t, db, uuid.New(), "cafe molido", 1500, 3, true)

	product, err := service.AdjustStock(context.Background(), id, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock)
}

func TestAdjustStockRemovalGuardedByBalance(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newService(t, db)

	id := seedProduct(t, db, uuid.New(), "cafe molido", 1500, 3, true)

	_, err := service.AdjustStock(context.Background(), id, -5)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	product, err := service.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 3, product.Stock, "failed removal must not touch stock")
}

func TestAdjustStockRejectsZeroDelta(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newService(t, db)
	id := seedProduct(t, db, uuid.New(), "pan", 200, 1, true)

	_, err := service.AdjustStock(context.Background(), id, 0)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestUpdatePrice(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newService(t, db)

	id := seedProduct(t, db, uuid.New(), "queso fresco", 900, 4, true)

	product, err := service.UpdatePrice(context.Background(), id, 1100)
	require.NoError(t, err)
	assert.Equal(t, 1100, product.PriceCents)

	reloaded, err := service.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1100, reloaded.PriceCents)
}

func TestUpdatePriceRejectsNonPositive(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service := newService(t, db)
	id := seedProduct(t, db, uuid.New(), "pan", 200, 1, true)

	_, err := service.UpdatePrice(context.Background(), id, 0)
	require.Error(t, err)

	_, err = service.UpdatePrice(context.Background(), uuid.New(), 500)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
