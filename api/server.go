/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, echoed in logs
  2. RealIP:        Client address behind proxies
  3. accessLog:     One logrus entry per request
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for a frontend
  6. authenticate:  Bearer token to caller

ROUTE GROUPS:
  /health                       Liveness and dependency check
  /api/events/*                 Public reads, staff writes
  /api/vacations/*              Authenticated
  /api/work-time/*              Authenticated
  /api/work-time-statistic(s)/* Authenticated (staff checked by the engine)
  /api/team-statistics/*        Authenticated (staff checked by the engine)

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: accessLog, authenticate, requireAuth
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/shopspring/decimal"
)

func init() {
	// Hours and percentages are JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// RouterOptions tune the router.
type RouterOptions struct {
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(h.authenticate)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		// Event routes
		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.ListEvents)
			r.Get("/{id}", h.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(h.requireAuth)
				r.Post("/", h.CreateEvent)
				r.Put("/{id}", h.ReplaceEvent)
				r.Patch("/{id}", h.PatchEvent)
				r.Delete("/{id}", h.DeleteEvent)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)

			r.Get("/me", h.Me)

			// Vacation routes
			r.Route("/vacations", func(r chi.Router) {
				r.Get("/", h.ListVacations)
				r.Post("/", h.RequestVacation)
				r.Get("/balance", h.GetVacationBalance)
				r.Get("/{id}", h.GetVacation)
				r.Put("/{id}", h.UpdateVacation)
				r.Patch("/{id}", h.UpdateVacation)
				r.Delete("/{id}", h.CancelVacation)
			})

			// Work time routes
			r.Route("/work-time", func(r chi.Router) {
				r.Get("/", h.ListWorkSessions)
				r.Get("/status", h.WorkStatus)
				r.Post("/check-in", h.CheckIn)
				r.Post("/check-out", h.CheckOut)
				r.Get("/{id}", h.GetWorkSession)
			})

			// Statistics routes
			r.Get("/work-time-statistics", h.ListUsersWithStats)
			r.Get("/work-time-statistics/{user_id}", h.GetUserStats)
			r.Get("/work-time-statistic/arrive-and-leave-times/{user_id}", h.GetArrivalAndLeaving)
			r.Get("/work-time-statistic/{period}/{user_id}", h.GetPeriodHours)
			r.Get("/team-statistics/work-to-leave-time-average", h.GetTeamWorkToLeave)
		})
	})

	return r
}
