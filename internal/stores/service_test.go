package stores

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:stores_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.Exec(`CREATE TABLE stores (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT,
		tags TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`).Error
	require.NoError(t, err)
	return db
}

func seedStore(t *testing.T, db *gorm.DB, ownerID uuid.UUID, name string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	err := db.Exec(
		`INSERT INTO stores (id, owner_id, name, category) VALUES (?, ?, ?, ?)`,
		id, ownerID, name, "grocery",
	).Error
	require.NoError(t, err)
	return id
}

func TestGetByID(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service, err := NewService(NewRepository(db), nil, nil)
	require.NoError(t, err)

	owner := uuid.New()
	id := seedStore(t, db, owner, "La Esquina")

	store, err := service.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "La Esquina", store.Name)
	assert.Equal(t, owner, store.OwnerID)
}

func TestGetByIDUnknownStore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service, err := NewService(NewRepository(db), nil, nil)
	require.NoError(t, err)

	_, err = service.GetByID(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestListByOwnerScopesToOwner(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	service, err := NewService(NewRepository(db), nil, nil)
	require.NoError(t, err)

	owner := uuid.New()
	seedStore(t, db, owner, "Bodega Norte")
	seedStore(t, db, owner, "Bodega Sur")
	seedStore(t, db, uuid.New(), "Ajena")

	stores, err := service.ListByOwner(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, stores, 2)
	assert.Equal(t, "Bodega Norte", stores[0].Name)
	assert.Equal(t, "Bodega Sur", stores[1].Name)
}
