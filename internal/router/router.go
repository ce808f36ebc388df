package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oilmill/api/internal/config"
	"github.com/oilmill/api/internal/database"
	"github.com/oilmill/api/internal/enum"
	"github.com/oilmill/api/internal/handler"
	mw "github.com/oilmill/api/internal/middleware"
	"github.com/oilmill/api/internal/service"
	"github.com/oilmill/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket feed (authenticates via token query param)
	r.Get("/ws/sales", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// User management is owner-only
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner))
			handler.NewUserHandler(queries).RegisterRoutes(r)
		})

		handler.NewMaterialHandler(queries, pool, func(db database.DBTX) handler.MaterialStore {
			return database.New(db)
		}).RegisterRoutes(r)

		handler.NewProductHandler(queries, pool, func(db database.DBTX) handler.ProductStore {
			return database.New(db)
		}).RegisterRoutes(r)

		saleService := service.NewSaleService(pool, func(db database.DBTX) service.SaleStore {
			return database.New(db)
		})
		handler.NewSaleHandler(queries, saleService, hub).RegisterRoutes(r)

		handler.NewPaymentHandler(queries, pool, func(db database.DBTX) handler.PaymentStore {
			return database.New(db)
		}, hub).RegisterRoutes(r)

		handler.NewExpenseHandler(queries, pool, func(db database.DBTX) handler.ExpenseStore {
			return database.New(db)
		}).RegisterRoutes(r)

		handler.NewMiscIncomeHandler(queries, pool, func(db database.DBTX) handler.MiscIncomeStore {
			return database.New(db)
		}).RegisterRoutes(r)

		handler.NewReportHandler(queries).RegisterRoutes(r)
		handler.NewAuditHandler(queries).RegisterRoutes(r)
	})

	return r
}
