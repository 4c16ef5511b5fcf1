package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ploop3/Natours/internal/domain"
	"github.com/ploop3/Natours/internal/query"
	"github.com/ploop3/Natours/internal/service"
	"github.com/ploop3/Natours/pkg/health"
	"github.com/ploop3/Natours/pkg/middleware"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Tours    *service.TourService
	Reviews  *service.ReviewService
	Bookings *service.BookingService
}

// Options tune the router.
type Options struct {
	ServiceName string
	CORS        middleware.CORSConfig
	// RateLimit requests per RateWindow per client IP on /api. Zero disables
	// the limiter.
	RateLimit  int
	RateWindow time.Duration
	CookieTTL  time.Duration
	// ListMaxAge is the public cache lifetime of tour listings, in seconds.
	ListMaxAge int
}

// NewRouter creates a chi router with every API route registered.
func NewRouter(
	svc Services,
	gate *middleware.Gate,
	healthHandler *health.Handler,
	logger *slog.Logger,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.CORS(opts.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(opts.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(opts.ServiceName))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	authH := NewAuthHandler(svc.Auth, opts.CookieTTL, logger)
	userH := NewUserHandler(svc.Users, logger)
	tourH := NewTourHandler(svc.Tours, logger)
	reviewH := NewReviewHandler(svc.Reviews, logger)
	bookingH := NewBookingHandler(svc.Bookings, logger)

	protect := gate.Protect
	restrictTo := middleware.RequireRole

	r.Route("/api/v1", func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(middleware.RateLimit(opts.RateLimit, opts.RateWindow, logger))
		}

		r.Group(func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Route("/users", func(r chi.Router) {
				r.Use(middleware.NoStore)

				r.Post("/signup", authH.Signup)
				r.Post("/login", authH.Login)
				r.Get("/logout", authH.Logout)
				r.Post("/forgotPassword", authH.ForgotPassword)
				r.Patch("/resetPassword/{token}", authH.ResetPassword)

				r.Group(func(r chi.Router) {
					r.Use(protect)

					r.Patch("/updateMyPassword", authH.UpdatePassword)
					r.Get("/me", userH.Me)
					r.Patch("/updateMe", userH.UpdateMe)
					r.Delete("/deleteMe", userH.DeleteMe)

					r.Group(func(r chi.Router) {
						r.Use(restrictTo(domain.RoleAdmin))

						r.Get("/", userH.list())
						r.Post("/", userH.Create)
						r.Get("/{id}", userH.get())
						r.Patch("/{id}", userH.update())
						r.Delete("/{id}", userH.delete())
					})
				})
			})

			r.Route("/tours", func(r chi.Router) {
				r.With(gate.Optional, middleware.CacheControl(opts.ListMaxAge)).Get("/", tourH.list())
				r.With(middleware.CacheControl(opts.ListMaxAge)).Get("/top-5-cheap", tourH.list(query.TopCheap))
				r.Get("/tour-stats", tourH.Stats)
				r.Get("/search", tourH.Search)
				r.Get("/tours-within/{distance}/center/{latlng}/unit/{unit}", tourH.ToursWithin)
				r.Get("/distances/{latlng}/unit/{unit}", tourH.Distances)
				r.With(protect, restrictTo(domain.RoleAdmin, domain.RoleLeadGuide, domain.RoleGuide)).
					Get("/monthly-plan/{year}", tourH.MonthlyPlan)
				r.Get("/{id}", tourH.get())

				r.Group(func(r chi.Router) {
					r.Use(protect, restrictTo(domain.RoleAdmin, domain.RoleLeadGuide))

					r.Post("/", tourH.create())
					r.Patch("/{id}", tourH.update())
					r.Delete("/{id}", tourH.delete())
				})

				r.Route("/{id}/reviews", reviewRoutes(reviewH, protect))
			})

			r.Route("/reviews", reviewRoutes(reviewH, protect))

			r.Route("/bookings", func(r chi.Router) {
				// Signed by the checkout provider instead of carrying a token.
				r.Post("/checkout-webhook", bookingH.Webhook)

				r.Group(func(r chi.Router) {
					r.Use(protect)

					r.Get("/checkout-session/{tourId}", bookingH.CheckoutSession)
					r.Get("/my", bookingH.MyTours)

					r.Group(func(r chi.Router) {
						r.Use(restrictTo(domain.RoleAdmin, domain.RoleLeadGuide))

						r.Get("/", bookingH.list())
						r.Post("/", bookingH.create())
						r.Get("/{id}", bookingH.get())
						r.Patch("/{id}", bookingH.update())
						r.Delete("/{id}", bookingH.delete())
					})
				})
			})
		})
	})

	return r
}

// reviewRoutes registers the review routes, shared by /reviews and
// /tours/{id}/reviews.
func reviewRoutes(h *ReviewHandler, protect func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Use(protect)

		r.Get("/", h.List)
		r.Get("/{reviewId}", h.Get)
		r.With(middleware.RequireRole(domain.RoleUser)).Post("/", h.Create)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleUser, domain.RoleAdmin))

			r.Patch("/{reviewId}", h.Update)
			r.Delete("/{reviewId}", h.Delete)
		})
	}
}
