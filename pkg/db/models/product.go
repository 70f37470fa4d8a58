package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a merchant listing. Stock is mutated exclusively by the
// inventory ledger; the column carries a CHECK (stock >= 0) constraint so a
// negative balance can never be committed even under concurrent writers.
type Product struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	StoreID    uuid.UUID `gorm:"column:store_id;type:uuid;not null;index" json:"store_id"`
	Name       string    `gorm:"column:name;not null" json:"name"`
	PriceCents int       `gorm:"column:price_cents;not null" json:"price_cents"`
	Stock      int       `gorm:"column:stock;not null;default:0;check:stock >= 0" json:"stock"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
