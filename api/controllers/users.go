package controllers

import (
	"net/http"

	"github.com/entrega-app/entrega-backend/api/middleware"
	"github.com/entrega-app/entrega-backend/api/responses"
	"github.com/entrega-app/entrega-backend/internal/users"
	pkgerrors "github.com/entrega-app/entrega-backend/pkg/errors"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

// Me returns the authenticated user's profile.
func Me(svc *users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing identity"))
			return
		}

		user, err := svc.GetByID(r.Context(), actor.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// ActiveDrivers lists drivers currently available for dispatch. Admin only.
func ActiveDrivers(svc *users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "user service unavailable"))
			return
		}

		drivers, err := svc.ActiveDrivers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, drivers)
	}
}
