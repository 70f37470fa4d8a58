package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/entrega-app/entrega-backend/pkg/enums"
)

// Order is a single-merchant order produced by splitting a customer cart.
// AssignedAt is set iff Status is assigned; the dispatch coordinator and the
// reclaimer are the only writers of DriverID/AssignedAt after creation.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CustomerID      uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index" json:"customer_id"`
	StoreID         uuid.UUID         `gorm:"column:store_id;type:uuid;not null;index" json:"store_id"`
	DriverID        *uuid.UUID        `gorm:"column:driver_id;type:uuid;index" json:"driver_id,omitempty"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending';index" json:"status"`
	TotalCents      int               `gorm:"column:total_cents;not null" json:"total_cents"`
	DeliveryAddress string            `gorm:"column:delivery_address;not null" json:"delivery_address"`
	Note            *string           `gorm:"column:note" json:"note,omitempty"`
	AssignedAt      *time.Time        `gorm:"column:assigned_at" json:"assigned_at,omitempty"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
