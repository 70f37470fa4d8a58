package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/entrega-app/entrega-backend/api/controllers"
	"github.com/entrega-app/entrega-backend/api/middleware"
	"github.com/entrega-app/entrega-backend/internal/dispatch"
	"github.com/entrega-app/entrega-backend/internal/idempotency"
	"github.com/entrega-app/entrega-backend/internal/orders"
	"github.com/entrega-app/entrega-backend/internal/products"
	"github.com/entrega-app/entrega-backend/internal/stores"
	"github.com/entrega-app/entrega-backend/internal/users"
	"github.com/entrega-app/entrega-backend/pkg/config"
	"github.com/entrega-app/entrega-backend/pkg/enums"
	"github.com/entrega-app/entrega-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the router wires into controllers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       pinger
	Redis    pinger
	Guard    *idempotency.Guard
	Composer *orders.Composer
	State    *orders.StateMachine
	Reader   *orders.Reader
	Dispatch *dispatch.Coordinator
	Users    *users.Service
	Stores   *stores.Service
	Products *products.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Get("/me", controllers.Me(deps.Users, logg))

		r.Route("/stores/{storeId}", func(r chi.Router) {
			r.Get("/", controllers.StoreDetail(deps.Stores, logg))
			r.Get("/products", controllers.StoreProducts(deps.Products, logg))
			r.Get("/orders", controllers.StoreOrders(deps.Reader, logg))
		})
		r.Get("/products/{productId}", controllers.ProductDetail(deps.Products, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.Idempotency(deps.Guard, logg)).Post("/", controllers.SubmitOrder(deps.Composer, logg))
			r.Get("/", controllers.MyOrders(deps.Reader, logg))
			r.Get("/{orderId}", controllers.OrderDetail(deps.Reader, logg))
			r.Post("/{orderId}/transition", controllers.TransitionOrder(deps.State, logg))
		})

		r.Route("/dispatch", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleDriver, logg))
			r.Get("/available", controllers.AvailableOrders(deps.Dispatch, logg))
			r.Post("/orders/{orderId}/accept", controllers.AcceptOrder(deps.Dispatch, logg))
			r.Get("/deliveries", controllers.MyDeliveries(deps.Dispatch, logg))
			r.Get("/stats", controllers.MyDriverStats(deps.Dispatch, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.UserRoleAdmin, logg))
			r.Get("/drivers/active", controllers.ActiveDrivers(deps.Users, logg))
			r.Post("/products/{productId}/stock", controllers.AdjustStock(deps.Products, logg))
			r.Put("/products/{productId}/price", controllers.UpdatePrice(deps.Products, logg))
		})
	})

	return r
}
