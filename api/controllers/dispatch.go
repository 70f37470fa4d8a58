package controllers

import (
	"net/http"

	"github.com/entrega-app/entrega-backend/api/middleware"
	"github.com/entrega-app/entrega-backend/api/responses"
	"github.com/entrega-app/entrega-backend/api/validators"
	"github.com/entrega-app/entrega-backend/internal/dispatch"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

// AcceptOrder claims an order for the authenticated driver. Exactly one of
// any set of racing drivers wins; the rest receive a conflict.
func AcceptOrder(coordinator *dispatch.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coordinator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch coordinator unavailable"))
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

		accepted, err := coordinator.Accept(r.Context(), orderID, actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderResponse(*accepted))
	}
}

// AvailableOrders lists confirmed, unassigned orders oldest first.
func AvailableOrders(coordinator *dispatch.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coordinator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch coordinator unavailable"))
			return
		}

		listings, err := coordinator.AvailableOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(listings))
	}
}

// MyDeliveries lists the authenticated driver's orders.
func MyDeliveries(coordinator *dispatch.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coordinator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch coordinator unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		deliveries, err := coordinator.DriverDeliveries(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newOrderListResponse(deliveries))
	}
}

// MyDriverStats returns the authenticated driver's aggregated statistics.
func MyDriverStats(coordinator *dispatch.Coordinator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coordinator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatch coordinator unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		stats, err := coordinator.DriverStatistics(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, stats)
	}
}
