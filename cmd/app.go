package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/frahmantamala/room-rental/internal/auth"
	"github.com/frahmantamala/room-rental/internal/booking"
	bookingrepo "github.com/frahmantamala/room-rental/internal/booking/postgres"
	"github.com/frahmantamala/room-rental/internal/core/database"
	"github.com/frahmantamala/room-rental/internal/core/events"
	"github.com/frahmantamala/room-rental/internal/core/lock"
	"github.com/frahmantamala/room-rental/internal/notification"
	notificationrepo "github.com/frahmantamala/room-rental/internal/notification/postgres"
	"github.com/frahmantamala/room-rental/internal/payment"
	paymentrepo "github.com/frahmantamala/room-rental/internal/payment/postgres"
	"github.com/frahmantamala/room-rental/internal/paymentgateway"
	"github.com/frahmantamala/room-rental/internal/reconcile"
	"github.com/frahmantamala/room-rental/internal/room"
	roomrepo "github.com/frahmantamala/room-rental/internal/room/postgres"
	"github.com/frahmantamala/room-rental/internal/transport/rest"
	"github.com/frahmantamala/room-rental/internal/user"
	userrepo "github.com/frahmantamala/room-rental/internal/user/postgres"
	"github.com/frahmantamala/room-rental/pkg/logger"
	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// App is the wired service graph shared by the server and the workers.
type App struct {
	Config *internal.Config
	Logger *slog.Logger

	SQL   *sqlx.DB
	Gorm  *gorm.DB
	Redis *redis.Client

	Bus        *events.EventBus
	Dispatcher *notification.Dispatcher

	Users         *user.Service
	Rooms         *room.Service
	Bookings      *booking.Service
	Payments      *payment.Service
	Reconciler    *reconcile.Service
	Notifications *notification.Service
	Auth          *auth.Service

	UserRepo    *userrepo.UserRepository
	RoomRepo    *roomrepo.RoomRepository
	BookingRepo *bookingrepo.BookingRepository
	PaymentRepo *paymentrepo.PaymentRepository
}

func newApp(cfg *internal.Config) (*App, error) {
	lg := logger.LoggerWrapper()

	sqlDB, gormDB, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app := &App{
		Config:      cfg,
		Logger:      lg,
		SQL:         sqlDB,
		Gorm:        gormDB,
		Bus:         events.NewEventBus(lg),
		UserRepo:    userrepo.NewUserRepository(gormDB),
		RoomRepo:    roomrepo.NewRoomRepository(gormDB),
		BookingRepo: bookingrepo.NewBookingRepository(gormDB),
		PaymentRepo: paymentrepo.NewPaymentRepository(gormDB),
	}

	var locker lock.Locker = lock.NoopLocker{}
	if cfg.Redis.Enabled {
		app.Redis = lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		locker = lock.NewRedisLocker(app.Redis, cfg.Redis.LockTTL, lg)
	}

	var mailer notification.Mailer
	if nc := cfg.Notification; nc.SMTPHost != "" {
		mailer = notification.NewSMTPMailer(notification.SMTPConfig{
			Host:     nc.SMTPHost,
			Port:     nc.SMTPPort,
			User:     nc.SMTPUser,
			Password: nc.SMTPPassword,
			From:     nc.FromAddress,
		})
	}

	notificationRepo := notificationrepo.NewNotificationRepository(gormDB)
	app.Dispatcher = notification.NewDispatcher(notification.DispatcherConfig{
		MaxWorkers:   cfg.Notification.MaxWorkers,
		JobQueueSize: cfg.Notification.JobQueueSize,
	}, notificationRepo, mailer, lg)
	app.Notifications = notification.NewService(notificationRepo, lg)

	tx := database.NewTransactor(gormDB)

	app.Users = user.NewService(app.UserRepo, lg)
	app.Rooms = room.NewService(app.RoomRepo, lg)
	app.Payments = payment.NewService(
		app.PaymentRepo,
		paymentrepo.NewStatsRepository(sqlDB),
		app.BookingRepo,
		tx,
		app.Dispatcher,
		app.Bus,
		lg,
	)
	app.Bookings = booking.NewService(
		app.BookingRepo,
		app.RoomRepo,
		app.Payments,
		tx,
		locker,
		app.Dispatcher,
		app.Bus,
		lg,
		cfg.Booking.PendingTTL,
	)

	codec := paymentgateway.NewCodec(paymentgateway.Config{
		TmnCode:    cfg.Gateway.TmnCode,
		HashSecret: cfg.Gateway.HashSecret,
		PayURL:     cfg.Gateway.PayURL,
		ReturnURL:  cfg.Gateway.ReturnURL,
	})
	app.Reconciler = reconcile.NewService(reconcile.Deps{
		Payments:    app.Payments,
		Bookings:    app.BookingRepo,
		Deposits:    app.Bookings,
		Users:       app.UserRepo,
		Rooms:       app.RoomRepo,
		Gateway:     codec,
		Tx:          tx,
		Notifier:    app.Dispatcher,
		Publisher:   app.Bus,
		FrontendURL: cfg.Gateway.FrontendURL,
	}, lg)

	app.Auth = auth.NewService(
		app.UserRepo,
		auth.NewJWTTokenGenerator(
			cfg.Security.JWTAccessSecret,
			cfg.Security.JWTRefreshSecret,
			cfg.Security.AccessTokenDuration,
			cfg.Security.RefreshTokenDuration,
		),
		cfg.Security.AccessTokenDuration,
		lg,
	)

	notification.NewEmailSubscriber(app.UserRepo, app.PaymentRepo, app.BookingRepo, app.Dispatcher, lg).Register(app.Bus)

	return app, nil
}

func (a *App) Handlers() rest.Handlers {
	return rest.Handlers{
		Auth:         auth.NewHandler(a.Auth, a.Logger),
		User:         user.NewHandler(a.Users, a.Logger),
		Room:         room.NewHandler(a.Rooms, a.Logger),
		Booking:      booking.NewHandler(a.Bookings, a.Logger),
		Payment:      payment.NewHandler(a.Payments, a.Logger),
		Reconcile:    reconcile.NewHandler(a.Reconciler, a.Logger),
		Notification: notification.NewHandler(a.Notifications, a.Logger),
	}
}

// Close lets event handlers enqueue their last emails, then stops the
// notification workers before the pools go away.
func (a *App) Close() {
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Bus.Drain(drainCtx); err != nil {
		a.Logger.Warn("event handlers still running at shutdown", "error", err)
	}
	a.Dispatcher.Shutdown()
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("redis close error", "error", err)
		}
	}
	if err := a.SQL.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}
