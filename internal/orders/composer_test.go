package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
)

func TestSubmitSplitsCartByMerchant(t *testing.T) {
	db := setupOrdersTestDB(t)
	ctx := context.Background()

	customer := seedUser(t, db, enums.UserRoleCustomer, nil)
	merchantA := seedUser(t, db, enums.UserRoleMerchant, nil)
	merchantB := seedUser(t, db, enums.UserRoleMerchant, nil)
	storeA := seedStore(t, db, merchantA.ID)
	storeB := seedStore(t, db, merchantB.ID)
	beans := seedCatalogProduct(t, db, storeA.ID, "espresso beans", 1200, 10)
	milk := seedCatalogProduct(t, db, storeB.ID, "oat milk", 350, 5)

	composer, err := NewComposer(NewRepository(db), gormTxRunner{db: db}, nil, nil)
	require.NoError(t, err)

	created, err := composer.Submit(ctx, customer.ID, CartSubmission{
		Items: []CartItemInput{
			{ProductID: beans.ID, Quantity: 2},
			{ProductID: milk.ID, Quantity: 3},
		},
		DeliveryAddress: "12 Hill Road",
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	// Orders come back sorted by store id ascending.
	assert.True(t, created[0].StoreID.String() < created[1].StoreID.String())

	byStore := map[uuid.UUID]models.Order{}
	for _, order := range created {
		byStore[order.StoreID] = order
	}
	orderA := byStore[storeA.ID]
	orderB := byStore[storeB.ID]

	assert.Equal(t, 2*1200, orderA.TotalCents)
	assert.Equal(t, 3*350, orderB.TotalCents)
	assert.Equal(t, enums.OrderStatusPending, orderA.Status)
	assert.Equal(t, "12 Hill Road", orderA.DeliveryAddress)
	require.Len(t, orderA.Items, 1)
	assert.Equal(t, "espresso beans", orderA.Items[0].ProductName)
	assert.Equal(t, 1200, orderA.Items[0].PriceAtPurchaseCents)

	// One reservation per line.
	assert.Equal(t, 8, productStock(t, db, beans.ID))
	assert.Equal(t, 2, productStock(t, db, milk.ID))
}

func TestSubmitPriceSnapshotSurvivesPriceChange(t *testing.T) {
	db := setupOrdersTestDB(t)
	ctx := context.Background()

	customer := seedUser(t, db, enums.UserRoleCustomer, nil)
	merchant := seedUser(t, db, enums.UserRoleMerchant, nil)
	store := seedStore(t, db, merchant.ID)
	product := seedCatalogProduct(t, db, store.ID, "espresso beans", 1000, 10)

	composer, err := NewComposer(NewRepository(db), gormTxRunner{db: db}, nil, nil)
	require.NoError(t, err)

	created, err := composer.Submit(ctx, customer.ID, CartSubmission{
		Items: []CartItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)

	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", product.ID).Update("price_cents", 9999).Error)

	loaded, err := NewRepository(db).FindByID(ctx, created[0].ID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, 1000, loaded.Items[0].PriceAtPurchaseCents)
	assert.Equal(t, 2000, loaded.TotalCents)
}

func TestSubmitAllOrNothingOnInsufficientStock(t *testing.T) {
	db := setupOrdersTestDB(t)
	ctx := context.Background()

	customer := seedUser(t, db, enums.UserRoleCustomer, nil)
	merchantA := seedUser(t, db, enums.UserRoleMerchant, nil)
	merchantB := seedUser(t, db, enums.UserRoleMerchant, nil)
	storeA := seedStore(t, db, merchantA.ID)
	storeB := seedStore(t, db, merchantB.ID)
	beans := seedCatalogProduct(t, db, storeA.ID, "espresso beans", 1200, 10)
	milk := seedCatalogProduct(t, db, storeB.ID, "oat milk", 350, 1)

	composer, err := NewComposer(NewRepository(db), gormTxRunner{db: db}, nil, nil)
	require.NoError(t, err)

	_, err = composer.Submit(ctx, customer.ID, CartSubmission{
		Items: []CartItemInput{
			{ProductID: beans.ID, Quantity: 2},
			{ProductID: milk.ID, Quantity: 5},
		},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	// Nothing persisted, nothing reserved.
	var orderCount int64
	require.NoError(t, db.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Zero(t, orderCount)
	assert.Equal(t, 10, productStock(t, db, beans.ID))
	assert.Equal(t, 1, productStock(t, db, milk.ID))
}

func TestSubmitMissingProductAborts(t *testing.T) {
	db := setupOrdersTestDB(t)
	ctx := context.Background()

	customer := seedUser(t, db, enums.UserRoleCustomer, nil)
	merchant := seedUser(t, db, enums.UserRoleMerchant, nil)
	store := seedStore(t, db, merchant.ID)
	product := seedCatalogProduct(t, db, store.ID, "espresso beans", 1200, 10)

	composer, err := NewComposer(NewRepository(db), gormTxRunner{db: db}, nil, nil)
	require.NoError(t, err)

	_, err = composer.Submit(ctx, customer.ID, CartSubmission{
		Items: []CartItemInput{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: uuid.New(), Quantity: 1},
		},
	})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, 10, productStock(t, db, product.ID))
}

func TestSubmitAddressFallbackChain(t *testing.T) {
	db := setupOrdersTestDB(t)
	ctx := context.Background()

	profileAddress := "7 Default Street"
	withDefault := seedUser(t, db, enums.UserRoleCustomer, &profileAddress)
	withoutDefault := seedUser(t, db, enums.UserRoleCustomer, nil)
	merchant := seedUser(t, db, enums.UserRoleMerchant, nil)
	store := seedStore(t, db, merchant.ID)
	product := seedCatalogProduct(t, db, store.ID, "espresso beans", 1200, 10)

	composer, err := NewComposer(NewRepository(db), gormTxRunner{db: db}, nil, nil)
	require.NoError(t, err)

	created, err := composer.Submit(ctx, withDefault.ID, CartSubmission{
		Items: []CartItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, profileAddress, created[0].DeliveryAddress)

	created, err = composer.Submit(ctx, withoutDefault.ID, CartSubmission{
		Items: []CartItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, fallbackAddress, created[0].DeliveryAddress)

	created, err = composer.Submit(ctx, withDefault.ID, CartSubmission{
		Items:           []CartItemInput{{ProductID: product.ID, Quantity: 1}},
		DeliveryAddress: "explicit wins",
	})
	require.NoError(t, err)
	assert.Equal(t, "explicit wins", created[0].DeliveryAddress)
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	db := setupOrdersTestDB(t)
	composer, err := NewComposer(NewRepository(db), gormTxRunner{db: db}, nil, nil)
	require.NoError(t, err)

	_, err = composer.Submit(context.Background(), uuid.New(), CartSubmission{})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}
