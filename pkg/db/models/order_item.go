package models

import (
	"github.com/google/uuid"
)

// OrderItem is a cart line frozen at composition time. PriceAtPurchaseCents
// and ProductName are snapshots; later product edits never touch them.
type OrderItem struct {
	ID                   uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID              uuid.UUID `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID            uuid.UUID `gorm:"column:product_id;type:uuid;not null" json:"product_id"`
	ProductName          string    `gorm:"column:product_name;not null" json:"product_name"`
	Quantity             int       `gorm:"column:quantity;not null" json:"quantity"`
	PriceAtPurchaseCents int       `gorm:"column:price_at_purchase_cents;not null" json:"price_at_purchase_cents"`
}
