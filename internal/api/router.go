package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baharkarakas/pix-credits/internal/api/handlers"
	"github.com/baharkarakas/pix-credits/internal/api/httpx"
	"github.com/baharkarakas/pix-credits/internal/config"
	"github.com/baharkarakas/pix-credits/internal/middleware"
	"github.com/baharkarakas/pix-credits/internal/services"
)

type Deps struct {
	Cfg        config.Config
	Auth       *middleware.AuthMiddleware
	UserSvc    *services.UserService
	BalanceSvc *services.BalanceService
	Payments   *handlers.PaymentsHandler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	// gateway notifications; unauthenticated on purpose, everything in the
	// body is re-verified against the gateway before any state changes
	r.Post("/webhooks/payments", d.Payments.Webhook)

	authHandler := handlers.NewAuthHandler(d.UserSvc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(d.Auth.Auth)

			r.Get("/balances/current", func(w http.ResponseWriter, r *http.Request) {
				uid, _ := middleware.UserID(r.Context())
				b, err := d.BalanceSvc.Current(r.Context(), uid)
				if err != nil {
					httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
					return
				}
				httpx.WriteJSON(w, http.StatusOK, b)
			})

			r.Post("/payments", d.Payments.Create)
			r.Get("/payments", d.Payments.ListMine)
			r.Get("/payments/{id}", d.Payments.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole("admin"))
				r.Post("/admin/gateway/credentials", d.Payments.ValidateCredentials)
			})
		})
	})

	return r
}
