package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/entrega-app/entrega-backend/api/middleware"
	"github.com/entrega-app/entrega-backend/api/responses"
	"github.com/entrega-app/entrega-backend/api/validators"
	"github.com/entrega-app/entrega-backend/internal/orders"
	"github.com/entrega-app/entrega-backend/pkg/db/models"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

// SubmitOrder handles cart submission: one multi-merchant cart in, one order
// per merchant out.
func SubmitOrder(composer *orders.Composer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if composer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order composer unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		var payload orders.CartSubmission
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := composer.Submit(r.Context(), actor.ID, payload)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newSubmissionResponse(created))
	}
}

// TransitionOrder applies a status change on behalf of the authenticated
// actor.
func TransitionOrder(sm *orders.StateMachine, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sm == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "state machine unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target, err := enums.ParseOrderStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status").
				WithDetails(map[string]any{"status": payload.Status}))
			return
		}

		updated, err := sm.Transition(r.Context(), orders.TransitionInput{
			OrderID: orderID,
			Actor:   actor,
			Target:  target,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(*updated))
	}
}

// OrderDetail returns one order, scoped to what the actor may see.
func OrderDetail(reader *orders.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order reader unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		orderID, err := validators.UUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := reader.Get(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(*order))
	}
}

// MyOrders lists the authenticated customer's orders.
func MyOrders(reader *orders.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order reader unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		listings, err := reader.ListForCustomer(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(listings))
	}
}

// StoreOrders lists a store's orders for its owner or an admin.
func StoreOrders(reader *orders.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order reader unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		storeID, err := validators.UUIDParam(r, "storeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		listings, err := reader.ListForStore(r.Context(), storeID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(listings))
	}
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type submissionResponse struct {
	Orders []orderResponse `json:"orders"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	CustomerID      uuid.UUID           `json:"customer_id"`
	StoreID         uuid.UUID           `json:"store_id"`
	DriverID        *uuid.UUID          `json:"driver_id,omitempty"`
	Status          string              `json:"status"`
	TotalCents      int                 `json:"total_cents"`
	DeliveryAddress string              `json:"delivery_address"`
	Note            *string             `json:"note,omitempty"`
	AssignedAt      *time.Time          `json:"assigned_at,omitempty"`
	Items           []orderItemResponse `json:"items,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderItemResponse struct {
	ProductID            uuid.UUID `json:"product_id"`
	ProductName          string    `json:"product_name"`
	Quantity             int       `json:"quantity"`
	PriceAtPurchaseCents int       `json:"price_at_purchase_cents"`
}

func newSubmissionResponse(created []models.Order) submissionResponse {
	resp := submissionResponse{Orders: make([]orderResponse, 0, len(created))}
	for _, order := range created {
		resp.Orders = append(resp.Orders, newOrderResponse(order))
	}
	return resp
}

func newOrderListResponse(listings []models.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(listings))
	for _, order := range listings {
		resp = append(resp, newOrderResponse(order))
	}
	return resp
}

func newOrderResponse(order models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID:            item.ProductID,
			ProductName:          item.ProductName,
			Quantity:             item.Quantity,
			PriceAtPurchaseCents: item.PriceAtPurchaseCents,
		})
	}
	return orderResponse{
		ID:              order.ID,
		CustomerID:      order.CustomerID,
		StoreID:         order.StoreID,
		DriverID:        order.DriverID,
		Status:          string(order.Status),
		TotalCents:      order.TotalCents,
		DeliveryAddress: order.DeliveryAddress,
		Note:            order.Note,
		AssignedAt:      order.AssignedAt,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}
