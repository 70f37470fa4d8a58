package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/entrega-app/entrega-backend/pkg/enums"
)

// User is any platform actor: customer, merchant, driver or admin.
type User struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Email          string         `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Role           enums.UserRole `gorm:"column:role;type:text;not null;default:'customer'" json:"role"`
	DefaultAddress *string        `gorm:"column:default_address" json:"default_address,omitempty"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
