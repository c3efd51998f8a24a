package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/auth"
	"github.com/frahmantamala/room-rental/internal/booking"
	"github.com/frahmantamala/room-rental/internal/notification"
	"github.com/frahmantamala/room-rental/internal/payment"
	"github.com/frahmantamala/room-rental/internal/reconcile"
	"github.com/frahmantamala/room-rental/internal/room"
	"github.com/frahmantamala/room-rental/internal/transport/middleware"
	"github.com/frahmantamala/room-rental/internal/transport/swagger"
	"github.com/frahmantamala/room-rental/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/go-redis/redis/v8"
)

type Handlers struct {
	Auth         *auth.Handler
	User         *user.Handler
	Room         *room.Handler
	Booking      *booking.Handler
	Payment      *payment.Handler
	Reconcile    *reconcile.Handler
	Notification *notification.Handler
}

type RouterOptions struct {
	DB             *sql.DB
	Redis          *redis.Client
	AllowedOrigins string
	OpenAPISpec    string
	// RequestValidator is applied to every API route when set.
	RequestValidator func(http.Handler) http.Handler
	Logger           *slog.Logger
}

func RegisterAllRoutes(router chi.Router, h Handlers, opts RouterOptions) {
	healthHandler := NewHealthHandler(opts.DB, opts.Redis)

	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.TraceID)
	router.Use(middleware.RecoveryMiddleware(opts.Logger))
	router.Use(middleware.CORS(opts.AllowedOrigins))

	if opts.OpenAPISpec != "" {
		router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, opts.OpenAPISpec)
		})
		router.Handle("/swagger/*", swagger.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.LoggingMiddleware(opts.Logger))
		if opts.RequestValidator != nil {
			r.Use(opts.RequestValidator)
		}

		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", h.Auth.Login)
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.Post("/logout", h.Auth.Logout)
		})

		// Gateway callbacks authenticate by signature, not by bearer token.
		r.Get("/payments/vnpay/return", h.Reconcile.Return)
		r.Get("/payments/vnpay/ipn", h.Reconcile.IPN)
		r.Post("/payments/vnpay/ipn", h.Reconcile.IPN)

		r.Get("/rooms", h.Room.GetRooms)
		r.Get("/rooms/{id}", h.Room.GetRoom)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			pr.Get("/users/me", h.User.GetCurrentUser)

			pr.Route("/bookings", func(br chi.Router) {
				br.Post("/", h.Booking.CreateBooking)
				br.Get("/", h.Booking.ListBookings)
				br.Get("/{id}", h.Booking.GetBooking)
				br.Patch("/{id}/confirm", h.Booking.ConfirmBooking)
				br.Patch("/{id}/status", h.Booking.SetStatus)
				br.Patch("/{id}/cancel", h.Booking.CancelBooking)
				br.Post("/{id}/installments/{month}/payment", h.Payment.CreateInstallment)
			})

			pr.Get("/payments", h.Payment.ListPayments)
			pr.Get("/payments/stats", h.Payment.GetStats)
			pr.Get("/payments/{id}", h.Payment.GetPayment)
			pr.Post("/payments/{id}/checkout", h.Reconcile.Checkout)
			pr.Post("/payments/{id}/refund", h.Payment.RequestRefund)
			pr.Post("/payments/{id}/bank-transfer", h.Payment.ConfirmBankTransfer)

			pr.Group(func(adm chi.Router) {
				adm.Use(h.Auth.RequireRole(internal.RoleAdmin))
				adm.Post("/payments/{id}/refund/complete", h.Payment.CompleteRefund)
				adm.Post("/payments/backfill", h.Payment.Backfill)
			})

			pr.Get("/notifications", h.Notification.ListNotifications)
			pr.Patch("/notifications/{id}/read", h.Notification.MarkRead)
		})
	})
}
