package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mr-daebak/api/internal/config"
	"github.com/mr-daebak/api/internal/database"
	"github.com/mr-daebak/api/internal/enum"
	"github.com/mr-daebak/api/internal/guard"
	"github.com/mr-daebak/api/internal/handler"
	mw "github.com/mr-daebak/api/internal/middleware"
	"github.com/mr-daebak/api/internal/service"
	"github.com/mr-daebak/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",     // SvelteKit dev server
			"https://mrdaebak.kr",       // Production frontend
			"https://stg.mrdaebak.kr",   // Staging frontend
			"https://staff.mrdaebak.kr", // Staff console
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// --- Services ---

	inventoryService := service.NewInventoryService(queries, cfg.NearTermDays)

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(
		pool, queries, newOrderStore, inventoryService,
		time.Duration(cfg.MinLeadHours)*time.Hour,
	)

	gateway := service.NewCardGateway()
	newChangeStore := func(db database.DBTX) service.ChangeRequestStore {
		return database.New(db)
	}
	changeService := service.NewChangeRequestService(pool, newChangeStore, inventoryService, gateway)

	newScheduleStore := func(db database.DBTX) service.ScheduleStore {
		return database.New(db)
	}
	schedulingService := service.NewSchedulingService(
		pool, queries, newScheduleStore, cfg.ShiftStartHour, cfg.ShiftEndHour,
	)

	submissionGuard := guard.NewRegistry(time.Duration(cfg.OrderCooldownSeconds) * time.Second)

	// --- Handlers ---

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	menuHandler := handler.NewMenuHandler(queries)
	orderHandler := handler.NewOrderHandler(orderService, queries, submissionGuard, hub)
	changeHandler := handler.NewChangeRequestHandler(changeService, queries, hub)
	inventoryHandler := handler.NewInventoryHandler(inventoryService)
	boardHandler := handler.NewBoardHandler(orderService, queries, hub)
	scheduleHandler := handler.NewScheduleHandler(schedulingService, hub)
	adminHandler := handler.NewAdminHandler(queries, hub)
	reportsHandler := handler.NewReportsHandler(queries)

	// --- Public routes ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler.RegisterRoutes(r)
	menuHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// --- Protected routes ---

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		authHandler.RegisterProtectedRoutes(r)
		orderHandler.RegisterRoutes(r)
		changeHandler.RegisterRoutes(r)
		inventoryHandler.RegisterRoutes(r)

		// Staff routes (employee or admin)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireStaff)
			boardHandler.RegisterRoutes(r)
			scheduleHandler.RegisterRoutes(r)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			adminHandler.RegisterRoutes(r)
			changeHandler.RegisterAdminRoutes(r)
			inventoryHandler.RegisterAdminRoutes(r)
			scheduleHandler.RegisterAdminRoutes(r)
			reportsHandler.RegisterAdminRoutes(r)
		})
	})

	return r
}
