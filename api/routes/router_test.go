package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/entrega-app/entrega-backend/internal/dispatch"
	"github.com/entrega-app/entrega-backend/internal/idempotency"
	"github.com/entrega-app/entrega-backend/internal/orders"
	"github.com/entrega-app/entrega-backend/internal/products"
	"github.com/entrega-app/entrega-backend/internal/stores"
	"github.com/entrega-app/entrega-backend/internal/users"
	pkgauth "github.com/entrega-app/entrega-backend/pkg/auth"
	"github.com/entrega-app/entrega-backend/pkg/config"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "router-test-secret", Issuer: "entrega-test"}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupRouterDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	statements := []string{
		`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL,
  role TEXT NOT NULL DEFAULT 'customer',
  default_address TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE stores (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  category TEXT,
  tags TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE products (
  id TEXT PRIMARY KEY,
  store_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price_cents INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  store_id TEXT NOT NULL,
  driver_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  total_cents INTEGER NOT NULL DEFAULT 0,
  delivery_address TEXT NOT NULL,
  note TEXT,
  assigned_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  price_at_purchase_cents INTEGER NOT NULL
);`,
		`CREATE TABLE idempotency_keys (
  id TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL UNIQUE,
  response_status INTEGER NOT NULL,
  response_body BLOB,
  content_type TEXT,
  created_at DATETIME NOT NULL
);`,
	}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newTestHandler(t *testing.T, db *gorm.DB) http.Handler {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "routes-test"})
	tx := gormTxRunner{db: db}
	repo := orders.NewRepository(db)

	composer, err := orders.NewComposer(repo, tx, nil, nil)
	require.NoError(t, err)
	state, err := orders.NewStateMachine(repo, tx, nil, nil, nil)
	require.NoError(t, err)
	storeSvc, err := stores.NewService(stores.NewRepository(db), nil, nil)
	require.NoError(t, err)
	reader, err := orders.NewReader(repo, storeSvc, nil, nil)
	require.NoError(t, err)
	coordinator, err := dispatch.NewCoordinator(dispatch.Params{Repo: repo, Tx: tx})
	require.NoError(t, err)
	userSvc, err := users.NewService(users.NewRepository(db), nil, nil)
	require.NoError(t, err)
	productSvc, err := products.NewService(products.NewRepository(db), tx, nil, nil)
	require.NoError(t, err)
	guard, err := idempotency.NewGuard(idempotency.GuardParams{
		Store:  idempotency.NewStore(db),
		Logger: logg,
	})
	require.NoError(t, err)

	cfg := &config.Config{JWT: testJWT}
	cfg.App.Env = "test"

	return NewRouter(Deps{
		Config:   cfg,
		Logger:   logg,
		Guard:    guard,
		Composer: composer,
		State:    state,
		Reader:   reader,
		Dispatch: coordinator,
		Users:    userSvc,
		Stores:   storeSvc,
		Products: productSvc,
	})
}

func mintToken(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()

	token, err := pkgauth.MintAccessToken(testJWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Role:   role,
	})
	require.NoError(t, err)
	return token
}

func seedRouterUser(t *testing.T, db *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	user := models.User{
		ID:       uuid.New(),
		Name:     "user " + uuid.NewString()[:8],
		Email:    uuid.NewString() + "@example.com",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func TestHealthLive(t *testing.T) {
	handler := newTestHandler(t, setupRouterDB(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Entrega-Env"))
}

func TestAPIRequiresAuthentication(t *testing.T) {
	handler := newTestHandler(t, setupRouterDB(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDispatchRoutesRequireDriverRole(t *testing.T) {
	db := setupRouterDB(t)
	handler := newTestHandler(t, db)
	customer := seedRouterUser(t, db, enums.UserRoleCustomer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dispatch/available", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, customer.ID, enums.UserRoleCustomer))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSubmissionFlowEndToEnd(t *testing.T) {
	db := setupRouterDB(t)
	handler := newTestHandler(t, db)

	customer := seedRouterUser(t, db, enums.UserRoleCustomer)
	merchant := seedRouterUser(t, db, enums.UserRoleMerchant)
	driver := seedRouterUser(t, db, enums.UserRoleDriver)

	store := models.Store{ID: uuid.New(), OwnerID: merchant.ID, Name: "Bodega Central"}
	require.NoError(t, db.Create(&store).Error)
	product := models.Product{ID: uuid.New(), StoreID: store.ID, Name: "tamales", PriceCents: 700, Stock: 10, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	customerToken := mintToken(t, customer.ID, enums.UserRoleCustomer)
	body := fmt.Sprintf(`{"items":[{"product_id":"%s","quantity":3}],"delivery_address":"Calle 9 #12"}`, product.ID)

	submit := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+customerToken)
		req.Header.Set("Idempotency-Key", key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := submit("cart-1")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	var envelope struct {
		Data struct {
			Orders []struct {
				ID         uuid.UUID `json:"id"`
				Status     string    `json:"status"`
				TotalCents int       `json:"total_cents"`
			} `json:"orders"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Orders, 1)
	assert.Equal(t, "pending", envelope.Data.Orders[0].Status)
	assert.Equal(t, 2100, envelope.Data.Orders[0].TotalCents)
	orderID := envelope.Data.Orders[0].ID

	// Same key replays the stored response without composing a second order.
	replay := submit("cart-1")
	assert.Equal(t, first.Body.String(), replay.Body.String())
	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// Merchant confirms.
	confirmReq := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/transition", strings.NewReader(`{"status":"confirmed"}`))
	confirmReq.Header.Set("Authorization", "Bearer "+mintToken(t, merchant.ID, enums.UserRoleMerchant))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, confirmReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Driver accepts.
	acceptReq := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/orders/"+orderID.String()+"/accept", nil)
	acceptReq.Header.Set("Authorization", "Bearer "+mintToken(t, driver.ID, enums.UserRoleDriver))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, acceptReq)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A second driver arrives too late.
	late := seedRouterUser(t, db, enums.UserRoleDriver)
	lateReq := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/orders/"+orderID.String()+"/accept", nil)
	lateReq.Header.Set("Authorization", "Bearer "+mintToken(t, late.ID, enums.UserRoleDriver))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, lateReq)
	assert.Equal(t, http.StatusConflict, rec.Code)

	var stored models.Order
	require.NoError(t, db.First(&stored, "id = ?", orderID).Error)
	require.NotNil(t, stored.DriverID)
	assert.Equal(t, driver.ID, *stored.DriverID)
}
