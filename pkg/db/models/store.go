package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Store is a merchant storefront. OwnerID references the merchant user.
type Store struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OwnerID   uuid.UUID      `gorm:"column:owner_id;type:uuid;not null;index" json:"owner_id"`
	Name      string         `gorm:"column:name;not null" json:"name"`
	Category  string         `gorm:"column:category" json:"category"`
	Tags      pq.StringArray `gorm:"column:tags;type:text[]" json:"tags,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
