package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
	"github.com/sitepass/subscription-whitelist/internal/handler/http/middleware"
	"github.com/sitepass/subscription-whitelist/internal/pkg/jwt"
)

// RouterConfig carries what the router needs besides the handlers.
type RouterConfig struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	CallbackToken  string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

type Handlers struct {
	Subscription SubscriptionHandler
	Invoice      InvoiceHandler
	Whitelist    WhitelistHandler
	Job          JobHandler
	Export       ExportHandler
	Hook         HookHandler
}

func NewRouter(cfg RouterConfig, JWTService jwt.Service, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.CallbackTokenHeader},
		ExposedHeaders:   []string{"Content-Disposition"},
		MaxAge:           300,
	}))

	r.Use(httplog.RequestLogger(logger, &httplog.Options{
		Level:  slog.LevelDebug,
		Schema: httplog.SchemaECS,
	}))

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {

		r.Get("/pay/{invoiceID}", h.Invoice.ViewPaymentLink)

		r.Route("/hooks", func(r chi.Router) {
			r.Use(middleware.CallbackToken(cfg.CallbackToken))
			r.Post("/purchase-completed", h.Hook.PurchaseCompleted)
			r.Post("/payment-confirmed", h.Hook.PaymentConfirmed)
		})

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/me", func(r chi.Router) {
				r.Get("/subscription", h.Subscription.GetMySubscription)
				r.Post("/url", h.Whitelist.SubmitURL)
				r.Get("/urls", h.Whitelist.ListMyURLs)
			})

			// Admin only
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly)

				r.Route("/subscriptions", func(r chi.Router) {
					r.Get("/", h.Subscription.List)
					r.Post("/", h.Subscription.Create)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", h.Subscription.Get)
						r.Delete("/", h.Subscription.Delete)
						r.Post("/pause", h.Subscription.Pause)
						r.Post("/activate", h.Subscription.Activate)
						r.Get("/invoices", h.Invoice.ListBySubscription)
						r.Post("/invoices", h.Invoice.Create)
					})
				})

				r.Delete("/urls/{id}", h.Whitelist.RemoveURL)

				r.Route("/whitelist", func(r chi.Router) {
					r.Get("/", h.Whitelist.Show)
					r.Post("/refresh", h.Whitelist.Refresh)
				})

				r.Route("/jobs", func(r chi.Router) {
					r.Get("/", h.Job.List)
					r.Post("/{name}/run", h.Job.Run)
				})

				r.Get("/export/{type}", h.Export.Export)
			})
		})
	})
	return r
}
