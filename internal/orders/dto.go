package orders

import (
	"github.com/google/uuid"

	"github.com/entrega-app/entrega-backend/pkg/auth"
	"github.com/entrega-app/entrega-backend/pkg/enums"
)

// CartItemInput is one requested cart line.
type CartItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// CartSubmission is the customer's full cart. Address resolution falls back
// to the customer's profile default when DeliveryAddress is empty.
type CartSubmission struct {
	Items           []CartItemInput `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string          `json:"delivery_address"`
	Note            *string         `json:"note,omitempty"`
}

// TransitionInput carries a status-change request through the state machine.
type TransitionInput struct {
	OrderID uuid.UUID
	Actor   auth.Actor
	Target  enums.OrderStatus
}
