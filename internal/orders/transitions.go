package orders

import "github.com/entrega-app/entrega-backend/pkg/enums"

// transitionTable maps actor role -> current status -> permitted targets.
// Edges absent from the table are rejected regardless of who asks. Ownership
// checks (driver must hold the order, merchant must own the store) are
// enforced by the state machine on top of this table.
var transitionTable = map[enums.UserRole]map[enums.OrderStatus][]enums.OrderStatus{
	enums.UserRoleAdmin: {
		enums.OrderStatusPending:   {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
		enums.OrderStatusConfirmed: {enums.OrderStatusAssigned, enums.OrderStatusCancelled},
		enums.OrderStatusAssigned:  {enums.OrderStatusPickedUp, enums.OrderStatusCancelled},
		enums.OrderStatusPickedUp:  {enums.OrderStatusInTransit, enums.OrderStatusCancelled},
		enums.OrderStatusInTransit: {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	},
	enums.UserRoleDriver: {
		enums.OrderStatusAssigned:  {enums.OrderStatusPickedUp},
		enums.OrderStatusPickedUp:  {enums.OrderStatusInTransit},
		enums.OrderStatusInTransit: {enums.OrderStatusDelivered},
	},
	enums.UserRoleMerchant: {
		enums.OrderStatusPending: {enums.OrderStatusConfirmed},
	},
}

// CanTransition reports whether the role may move an order from current to
// target.
func CanTransition(role enums.UserRole, current, target enums.OrderStatus) bool {
	edges, ok := transitionTable[role]
	if !ok {
		return false
	}
	for _, candidate := range edges[current] {
		if candidate == target {
			return true
		}
	}
	return false
}
